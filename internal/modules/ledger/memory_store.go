package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process Store. Units of work are serialized by a
// single mutex and staged until fn returns without error.
type MemoryStore struct {
	mu           sync.Mutex
	accounts     map[int64]*Account
	transactions map[int64][]Transaction
	nextAccount  int64
	nextTxn      int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[int64]*Account),
		transactions: make(map[int64][]Transaction),
	}
}

func (s *MemoryStore) CreateAccount(_ context.Context, username, hash string, cash decimal.Decimal) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.Username == username {
			return Account{}, fmt.Errorf("username %q: %w", username, domain.ErrUsernameTaken)
		}
	}

	s.nextAccount++
	account := &Account{ID: s.nextAccount, Username: username, Hash: hash, Cash: cash, CreatedAt: time.Now()}
	s.accounts[account.ID] = account
	return *account, nil
}

func (s *MemoryStore) GetAccount(_ context.Context, accountID int64) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return Account{}, accountNotFound(accountID)
	}
	return *a, nil
}

func (s *MemoryStore) FindAccountByUsername(_ context.Context, username string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.Username == username {
			return *a, nil
		}
	}
	return Account{}, fmt.Errorf("username %q: %w", username, domain.ErrAccountNotFound)
}

func (s *MemoryStore) ListAccountIDs(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.accounts))
	for id := range s.accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemoryStore) ReadCashBalance(_ context.Context, accountID int64) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return decimal.Zero, accountNotFound(accountID)
	}
	return a.Cash, nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, accountID int64) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[accountID]; !ok {
		return nil, accountNotFound(accountID)
	}
	return append([]Transaction{}, s.transactions[accountID]...), nil
}

func (s *MemoryStore) InTx(ctx context.Context, accountID int64, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return accountNotFound(accountID)
	}

	staged := &memTx{
		store:     s,
		accountID: accountID,
		cash:      a.Cash,
		committed: s.transactions[accountID],
	}
	if err := fn(staged); err != nil {
		return err
	}

	a.Cash = staged.cash
	s.transactions[accountID] = append(s.transactions[accountID], staged.appended...)
	s.nextTxn += int64(len(staged.appended))
	return nil
}

// memTx runs with MemoryStore.mu held.
type memTx struct {
	store     *MemoryStore
	accountID int64
	cash      decimal.Decimal
	committed []Transaction
	appended  []Transaction
}

func (t *memTx) ReadCashBalance(context.Context) (decimal.Decimal, error) {
	return t.cash, nil
}

func (t *memTx) WriteCashBalance(_ context.Context, cash decimal.Decimal) error {
	t.cash = cash
	return nil
}

func (t *memTx) AppendTransaction(_ context.Context, txn Transaction) (Transaction, error) {
	txn, err := prepareAppend(t.accountID, txn)
	if err != nil {
		return txn, err
	}

	all := t.all()
	if len(all) > 0 {
		txn.ExecutedAt = monotonic(txn.ExecutedAt, all[len(all)-1].ExecutedAt)
	}
	txn.ID = t.store.nextTxn + int64(len(t.appended)) + 1
	t.appended = append(t.appended, txn)
	return txn, nil
}

func (t *memTx) ListTransactions(context.Context) ([]Transaction, error) {
	return t.all(), nil
}

func (t *memTx) all() []Transaction {
	out := make([]Transaction, 0, len(t.committed)+len(t.appended))
	out = append(out, t.committed...)
	return append(out, t.appended...)
}
