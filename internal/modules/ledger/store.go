package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/shopspring/decimal"
)

// Store is the durable home of accounts and their transaction logs.
//
// Reads outside InTx see committed data only (read-committed). InTx is the
// only way to change cash or append transactions: implementations lock the
// account for the duration of fn so that two units of work on the same
// account never interleave, and commit both the append and the cash update or
// neither.
//
// Persistence failures are reported wrapping domain.ErrStoreUnavailable.
type Store interface {
	CreateAccount(ctx context.Context, username, hash string, cash decimal.Decimal) (Account, error)
	GetAccount(ctx context.Context, accountID int64) (Account, error)
	FindAccountByUsername(ctx context.Context, username string) (Account, error)
	ListAccountIDs(ctx context.Context) ([]int64, error)

	ReadCashBalance(ctx context.Context, accountID int64) (decimal.Decimal, error)
	// ListTransactions returns the account's transactions ordered by
	// executed_at, then id.
	ListTransactions(ctx context.Context, accountID int64) ([]Transaction, error)

	InTx(ctx context.Context, accountID int64, fn func(tx Tx) error) error
}

// Tx is a unit of work scoped to one account.
type Tx interface {
	ReadCashBalance(ctx context.Context) (decimal.Decimal, error)
	WriteCashBalance(ctx context.Context, cash decimal.Decimal) error
	// AppendTransaction stores t and returns it with its id. ExecutedAt is
	// raised to the account's latest timestamp when the clock went backwards.
	AppendTransaction(ctx context.Context, t Transaction) (Transaction, error)
	ListTransactions(ctx context.Context) ([]Transaction, error)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

func accountNotFound(accountID int64) error {
	return fmt.Errorf("account %d: %w", accountID, domain.ErrAccountNotFound)
}

// monotonic returns at, or last when at is earlier.
func monotonic(at, last time.Time) time.Time {
	if at.Before(last) {
		return last
	}
	return at
}

func prepareAppend(accountID int64, t Transaction) (Transaction, error) {
	t.AccountID = accountID
	t.Symbol = NormalizeSymbol(t.Symbol)
	if t.ExecutedAt.IsZero() {
		t.ExecutedAt = time.Now()
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("invalid transaction: %w: %w", domain.ErrInvalidInput, err)
	}
	return t, nil
}
