// Package ledger holds the append-only transaction log and account cash
// balances. The transaction log is the only source of truth for positions.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Account is a trading account with its cash balance.
type Account struct {
	ID        int64           `json:"id"`
	Username  string          `json:"username"`
	Hash      string          `json:"-"`
	Cash      decimal.Decimal `json:"cash"`
	CreatedAt time.Time       `json:"created_at"`
}

// TradeSide is derived from the sign of a transaction quantity.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// Transaction is an immutable ledger entry.
// Quantity and Total are signed: positive for buys, negative for sells.
type Transaction struct {
	ID         int64           `json:"id"`
	AccountID  int64           `json:"account_id"`
	Symbol     string          `json:"symbol"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Total      decimal.Decimal `json:"total"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// Side reports whether the transaction bought or sold shares.
func (t Transaction) Side() TradeSide {
	if t.Quantity < 0 {
		return TradeSideSell
	}
	return TradeSideBuy
}

// NewTransaction builds a transaction whose total is quantity × price.
func NewTransaction(accountID int64, symbol string, quantity int64, price decimal.Decimal, at time.Time) Transaction {
	return Transaction{
		AccountID:  accountID,
		Symbol:     NormalizeSymbol(symbol),
		Quantity:   quantity,
		Price:      price,
		Total:      price.Mul(decimal.NewFromInt(quantity)),
		ExecutedAt: at,
	}
}

// Validate checks the invariants every stored transaction must hold.
func (t Transaction) Validate() error {
	if t.Symbol == "" || t.Symbol != NormalizeSymbol(t.Symbol) {
		return fmt.Errorf("symbol must be non-empty and normalized, got %q", t.Symbol)
	}
	if t.Quantity == 0 {
		return fmt.Errorf("quantity must not be zero")
	}
	if !t.Price.IsPositive() {
		return fmt.Errorf("price must be positive, got %s", t.Price)
	}
	if !t.Total.Equal(t.Price.Mul(decimal.NewFromInt(t.Quantity))) {
		return fmt.Errorf("total %s does not equal quantity %d x price %s", t.Total, t.Quantity, t.Price)
	}
	return nil
}

// NormalizeSymbol trims and upper-cases a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
