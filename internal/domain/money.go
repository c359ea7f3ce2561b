package domain

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatUSD renders an amount the way the web pages always showed money ($1,234.56).
func FormatUSD(amount decimal.Decimal) string {
	cur := money.GetCurrency(money.USD)
	cents := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(cents, money.USD).Display()
}

// ParseMoney parses a decimal amount as stored in the ledger.
func ParseMoney(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
