package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Quote is a point-in-time price for a symbol.
type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

// QuoteSource resolves a symbol to its current price.
//
// Implementations return an error wrapping ErrSymbolNotFound when the
// provider does not know the symbol and ErrQuoteUnavailable when the provider
// could not be asked (network failure, bad response). Callers that do not
// care about the cause treat both as "cannot price". Quotes are never cached
// across requests.
type QuoteSource interface {
	Lookup(ctx context.Context, symbol string) (Quote, error)
}

// QuoteSourceFunc adapts a function to QuoteSource.
type QuoteSourceFunc func(ctx context.Context, symbol string) (Quote, error)

// Lookup calls f.
func (f QuoteSourceFunc) Lookup(ctx context.Context, symbol string) (Quote, error) {
	return f(ctx, symbol)
}
