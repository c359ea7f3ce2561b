// Package portfolio derives positions from the ledger and values them
// against live quotes.
package portfolio

import (
	"context"
	"sort"

	"github.com/aristath/stockfolio/internal/modules/ledger"
	"github.com/shopspring/decimal"
)

// avgCostPlaces bounds the precision of weighted-average cost basis.
const avgCostPlaces = 8

// Position is the net holding of one symbol, derived from the ledger.
type Position struct {
	Symbol   string          `json:"symbol"`
	Quantity int64           `json:"quantity"`
	AvgCost  decimal.Decimal `json:"avg_cost"`
	Invested decimal.Decimal `json:"invested"`
}

// Open reports whether any shares are still held.
func (p Position) Open() bool {
	return p.Quantity > 0
}

// TransactionLister is the read side of the ledger the aggregator needs.
type TransactionLister interface {
	ListTransactions(ctx context.Context, accountID int64) ([]ledger.Transaction, error)
}

// Aggregator turns an account's transaction log into positions.
type Aggregator struct {
	transactions TransactionLister
}

// NewAggregator creates a position aggregator over a ledger.
func NewAggregator(transactions TransactionLister) *Aggregator {
	return &Aggregator{transactions: transactions}
}

// PositionsFor returns one position per symbol ever traded, ordered by symbol.
func (a *Aggregator) PositionsFor(ctx context.Context, accountID int64) ([]Position, error) {
	txns, err := a.transactions.ListTransactions(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return Aggregate(txns), nil
}

// HeldQuantity returns the net quantity of symbol, 0 if never traded.
func (a *Aggregator) HeldQuantity(ctx context.Context, accountID int64, symbol string) (int64, error) {
	txns, err := a.transactions.ListTransactions(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return HeldQuantity(txns, symbol), nil
}

// HeldSymbols returns the symbols with a positive net quantity, ordered.
func (a *Aggregator) HeldSymbols(ctx context.Context, accountID int64) ([]string, error) {
	positions, err := a.PositionsFor(ctx, accountID)
	if err != nil {
		return nil, err
	}
	symbols := make([]string, 0, len(positions))
	for _, p := range positions {
		if p.Open() {
			symbols = append(symbols, p.Symbol)
		}
	}
	return symbols, nil
}

// Aggregate groups transactions by symbol.
//
// Quantity is the sum of signed quantities. AvgCost is the quantity-weighted
// average over buys only and Invested is the sum of buy totals, so sells never
// move the cost basis.
func Aggregate(txns []ledger.Transaction) []Position {
	type acc struct {
		quantity  int64
		boughtQty int64
		invested  decimal.Decimal
	}
	bySymbol := make(map[string]*acc)

	for _, t := range txns {
		a, ok := bySymbol[t.Symbol]
		if !ok {
			a = &acc{invested: decimal.Zero}
			bySymbol[t.Symbol] = a
		}
		a.quantity += t.Quantity
		if t.Quantity > 0 {
			a.boughtQty += t.Quantity
			a.invested = a.invested.Add(t.Total)
		}
	}

	positions := make([]Position, 0, len(bySymbol))
	for symbol, a := range bySymbol {
		avg := decimal.Zero
		if a.boughtQty > 0 {
			avg = a.invested.DivRound(decimal.NewFromInt(a.boughtQty), avgCostPlaces)
		}
		positions = append(positions, Position{
			Symbol:   symbol,
			Quantity: a.quantity,
			AvgCost:  avg,
			Invested: a.invested,
		})
	}

	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })
	return positions
}

// HeldQuantity sums the signed quantities of one symbol.
func HeldQuantity(txns []ledger.Transaction, symbol string) int64 {
	symbol = ledger.NormalizeSymbol(symbol)
	var held int64
	for _, t := range txns {
		if t.Symbol == symbol {
			held += t.Quantity
		}
	}
	return held
}
