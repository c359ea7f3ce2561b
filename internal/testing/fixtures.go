package testing

import (
	"github.com/aristath/stockfolio/internal/domain"
	"github.com/shopspring/decimal"
)

// NewQuoteFixtures returns a set of test quotes for use in tests
func NewQuoteFixtures() []domain.Quote {
	return []domain.Quote{
		{Symbol: "AAPL", Name: "Apple Inc.", Price: decimal.RequireFromString("100.00")},
		{Symbol: "MSFT", Name: "Microsoft Corporation", Price: decimal.RequireFromString("250.50")},
		{Symbol: "NFLX", Name: "Netflix, Inc.", Price: decimal.RequireFromString("412.25")},
	}
}

// Dec parses a decimal literal, panicking on malformed input. Test-only.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
