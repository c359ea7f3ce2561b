package quotes

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/shopspring/decimal"
)

// StaticSource serves fixed prices. It backs offline runs and demos.
type StaticSource struct {
	mu     sync.RWMutex
	quotes map[string]domain.Quote
}

var _ domain.QuoteSource = (*StaticSource)(nil)

// NewStaticSource creates a static source with the given quotes
func NewStaticSource(quotes ...domain.Quote) *StaticSource {
	s := &StaticSource{quotes: make(map[string]domain.Quote)}
	for _, q := range quotes {
		s.Set(q)
	}
	return s
}

// ParseStaticQuotes reads "SYM=price,SYM=price" into quotes.
func ParseStaticQuotes(list string) ([]domain.Quote, error) {
	var out []domain.Quote
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		symbol, raw, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("static quote %q: expected SYMBOL=PRICE", part)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil || !price.IsPositive() {
			return nil, fmt.Errorf("static quote %q: price must be a positive decimal", part)
		}
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		out = append(out, domain.Quote{Symbol: symbol, Name: symbol, Price: price})
	}
	return out, nil
}

// Set adds or replaces a quote
func (s *StaticSource) Set(q domain.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[strings.ToUpper(q.Symbol)] = q
}

// Lookup returns the stored quote for symbol
func (s *StaticSource) Lookup(_ context.Context, symbol string) (domain.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[strings.ToUpper(symbol)]
	if !ok {
		return domain.Quote{}, fmt.Errorf("%s: %w", symbol, domain.ErrSymbolNotFound)
	}
	return q, nil
}
