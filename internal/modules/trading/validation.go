package trading

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/modules/ledger"
)

// MaxQuantity is the largest number of shares accepted in one order.
const MaxQuantity int64 = 1_000_000_000

// ParseQuantity converts user input to a share count. Anything that is not a
// base-10 integer in [1, MaxQuantity] is domain.ErrInvalidInput.
func ParseQuantity(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("quantity is required: %w", domain.ErrInvalidInput)
	}
	qty, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("quantity %q is not a whole number: %w", raw, domain.ErrInvalidInput)
	}
	if err := ValidateQuantity(qty); err != nil {
		return 0, err
	}
	return qty, nil
}

// ValidateQuantity checks an already numeric share count.
func ValidateQuantity(qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive, got %d: %w", qty, domain.ErrInvalidInput)
	}
	if qty > MaxQuantity {
		return fmt.Errorf("quantity %d exceeds %d: %w", qty, MaxQuantity, domain.ErrInvalidInput)
	}
	return nil
}

// ParseSymbol normalizes a ticker symbol; blank input is domain.ErrInvalidInput.
func ParseSymbol(raw string) (string, error) {
	symbol := ledger.NormalizeSymbol(raw)
	if symbol == "" {
		return "", fmt.Errorf("symbol is required: %w", domain.ErrInvalidInput)
	}
	return symbol, nil
}
