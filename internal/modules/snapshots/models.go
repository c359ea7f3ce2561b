// Package snapshots records point-in-time net worth of every account and
// derives performance statistics from the series.
package snapshots

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

// PositionValue is one priced position inside a snapshot. Amounts are kept
// as decimal strings so the blob round-trips exactly.
type PositionValue struct {
	Symbol   string `msgpack:"s" json:"symbol"`
	Quantity int64  `msgpack:"q" json:"quantity"`
	Price    string `msgpack:"p" json:"price"`
	Value    string `msgpack:"v" json:"value"`
}

// Snapshot is the valuation of an account at TakenAt.
type Snapshot struct {
	ID            int64           `json:"id"`
	AccountID     int64           `json:"account_id"`
	TakenAt       time.Time       `json:"taken_at"`
	Cash          decimal.Decimal `json:"cash"`
	HoldingsValue decimal.Decimal `json:"holdings_value"`
	NetWorth      decimal.Decimal `json:"net_worth"`
	Positions     []PositionValue `json:"positions"`
}

func encodePositions(positions []PositionValue) ([]byte, error) {
	if len(positions) == 0 {
		return nil, nil
	}
	b, err := msgpack.Marshal(positions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode positions: %w", err)
	}
	return b, nil
}

func decodePositions(blob []byte) ([]PositionValue, error) {
	positions := make([]PositionValue, 0)
	if len(blob) == 0 {
		return positions, nil
	}
	if err := msgpack.Unmarshal(blob, &positions); err != nil {
		return nil, fmt.Errorf("failed to decode positions: %w", err)
	}
	return positions, nil
}
