package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/shopspring/decimal"
)

// MockQuoteSource is a mock implementation of domain.QuoteSource for testing.
// Prices can be changed between calls; unknown symbols report domain.ErrSymbolNotFound.
type MockQuoteSource struct {
	mu     sync.RWMutex
	quotes map[string]domain.Quote
	failed map[string]error
	err    error
	calls  int
}

var _ domain.QuoteSource = (*MockQuoteSource)(nil)

// NewMockQuoteSource creates a new mock quote source seeded with quotes
func NewMockQuoteSource(quotes ...domain.Quote) *MockQuoteSource {
	m := &MockQuoteSource{
		quotes: make(map[string]domain.Quote),
		failed: make(map[string]error),
	}
	for _, q := range quotes {
		m.quotes[q.Symbol] = q
	}
	return m
}

// SetPrice sets the price returned for symbol
func (m *MockQuoteSource) SetPrice(symbol string, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.quotes[symbol]
	q.Symbol = symbol
	if q.Name == "" {
		q.Name = symbol
	}
	q.Price = price
	m.quotes[symbol] = q
}

// SetSymbolError makes lookups of symbol fail with err
func (m *MockQuoteSource) SetSymbolError(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failed, symbol)
		return
	}
	m.failed[symbol] = err
}

// SetError makes every lookup fail with err
func (m *MockQuoteSource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the number of lookups performed
func (m *MockQuoteSource) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Lookup returns the configured quote for symbol
func (m *MockQuoteSource) Lookup(_ context.Context, symbol string) (domain.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.err != nil {
		return domain.Quote{}, m.err
	}
	if err, ok := m.failed[symbol]; ok {
		return domain.Quote{}, err
	}
	q, ok := m.quotes[symbol]
	if !ok {
		return domain.Quote{}, fmt.Errorf("symbol %q: %w", symbol, domain.ErrSymbolNotFound)
	}
	return q, nil
}
