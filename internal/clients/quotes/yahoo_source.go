package quotes

import (
	"context"
	"fmt"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
)

// yahooTicker is the subset of *ticker.Ticker used here.
type yahooTicker interface {
	Price() (price float64, name string, err error)
	Close()
}

// YahooSource looks up quotes through go-yfinance
type YahooSource struct {
	open func(symbol string) (yahooTicker, error)
	log  zerolog.Logger
}

var _ domain.QuoteSource = (*YahooSource)(nil)

// NewYahooSource creates a new Yahoo Finance quote source
func NewYahooSource(log zerolog.Logger) *YahooSource {
	return &YahooSource{
		open: openYahooTicker,
		log:  log.With().Str("client", "yahoo").Logger(),
	}
}

// Lookup fetches the current price of symbol. go-yfinance is not context
// aware, so the call runs in a goroutine and ctx only bounds the wait.
func (s *YahooSource) Lookup(ctx context.Context, symbol string) (domain.Quote, error) {
	type result struct {
		quote domain.Quote
		err   error
	}
	done := make(chan result, 1)

	go func() {
		q, err := s.lookup(symbol)
		done <- result{q, err}
	}()

	select {
	case <-ctx.Done():
		return domain.Quote{}, fmt.Errorf("yahoo lookup %s: %w: %w", symbol, domain.ErrQuoteUnavailable, ctx.Err())
	case r := <-done:
		return r.quote, r.err
	}
}

func (s *YahooSource) lookup(symbol string) (domain.Quote, error) {
	t, err := s.open(symbol)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("failed to create ticker: %w: %w", domain.ErrQuoteUnavailable, err)
	}
	defer t.Close()

	price, name, err := t.Price()
	if err != nil {
		s.log.Debug().Err(err).Str("symbol", symbol).Msg("Yahoo request failed")
		return domain.Quote{}, fmt.Errorf("yahoo lookup %s: %w: %w", symbol, domain.ErrQuoteUnavailable, err)
	}
	if price <= 0 {
		return domain.Quote{}, fmt.Errorf("%s has no usable price: %w", symbol, domain.ErrSymbolNotFound)
	}
	if name == "" {
		name = symbol
	}

	return domain.Quote{
		Symbol: symbol,
		Name:   name,
		Price:  decimal.NewFromFloat(price),
	}, nil
}

// goYahooTicker adapts *ticker.Ticker.
type goYahooTicker struct {
	t *ticker.Ticker
}

func openYahooTicker(symbol string) (yahooTicker, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return nil, err
	}
	return goYahooTicker{t: t}, nil
}

func (g goYahooTicker) Close() {
	g.t.Close()
}

// Price prefers the regular market price, then pre/post market, then the
// info endpoint's current price and previous close.
func (g goYahooTicker) Price() (float64, string, error) {
	var name string
	info, infoErr := g.t.Info()
	if infoErr == nil && info != nil {
		name = info.LongName
		if name == "" {
			name = info.ShortName
		}
	}

	quote, err := g.t.Quote()
	if err == nil && quote != nil {
		for _, p := range []float64{quote.RegularMarketPrice, quote.PreMarketPrice, quote.PostMarketPrice} {
			if p > 0 {
				return p, name, nil
			}
		}
	}

	if infoErr == nil && info != nil {
		if info.CurrentPrice > 0 {
			return info.CurrentPrice, name, nil
		}
		if info.RegularMarketPreviousClose > 0 {
			return info.RegularMarketPreviousClose, name, nil
		}
	}
	if err != nil {
		return 0, name, err
	}
	if infoErr != nil {
		return 0, name, infoErr
	}
	return 0, name, nil
}
