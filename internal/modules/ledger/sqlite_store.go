package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/stockfolio/internal/database"
	"github.com/aristath/stockfolio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// transactionsColumns is the column list scanned by scanTransaction.
const transactionsColumns = `id, account_id, symbol, price, quantity, total, executed_at`

// querier is the subset of *sql.DB and *sql.Tx the store needs.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// SQLiteStore is the Store backed by ledger.db.
//
// The ledger connection is opened with _txlock=immediate, so every InTx holds
// the database write lock from BEGIN to COMMIT.
type SQLiteStore struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new ledger store on ledger.db
func NewSQLiteStore(ledgerDB *sql.DB, log zerolog.Logger) *SQLiteStore {
	return &SQLiteStore{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "ledger").Logger(),
	}
}

// CreateAccount inserts a new account with its opening cash balance.
func (s *SQLiteStore) CreateAccount(ctx context.Context, username, hash string, cash decimal.Decimal) (Account, error) {
	now := time.Now()
	result, err := s.ledgerDB.ExecContext(ctx,
		`INSERT INTO accounts (username, hash, cash, created_at) VALUES (?, ?, ?, ?)`,
		username, hash, cash.String(), now.Unix(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return Account{}, fmt.Errorf("username %q: %w", username, domain.ErrUsernameTaken)
		}
		return Account{}, unavailable("failed to create account", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return Account{}, unavailable("failed to read account id", err)
	}

	s.log.Info().Int64("account_id", id).Str("username", username).Msg("Account created")

	return Account{ID: id, Username: username, Hash: hash, Cash: cash, CreatedAt: time.Unix(now.Unix(), 0)}, nil
}

// GetAccount retrieves an account by id.
func (s *SQLiteStore) GetAccount(ctx context.Context, accountID int64) (Account, error) {
	row := s.ledgerDB.QueryRowContext(ctx,
		`SELECT id, username, hash, cash, created_at FROM accounts WHERE id = ?`, accountID)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, accountNotFound(accountID)
	}
	if err != nil {
		return Account{}, unavailable("failed to get account", err)
	}
	return account, nil
}

// FindAccountByUsername retrieves an account by its unique username.
func (s *SQLiteStore) FindAccountByUsername(ctx context.Context, username string) (Account, error) {
	row := s.ledgerDB.QueryRowContext(ctx,
		`SELECT id, username, hash, cash, created_at FROM accounts WHERE username = ?`, username)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, fmt.Errorf("username %q: %w", username, domain.ErrAccountNotFound)
	}
	if err != nil {
		return Account{}, unavailable("failed to find account", err)
	}
	return account, nil
}

// ListAccountIDs returns every account id in ascending order.
func (s *SQLiteStore) ListAccountIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.ledgerDB.QueryContext(ctx, `SELECT id FROM accounts ORDER BY id`)
	if err != nil {
		return nil, unavailable("failed to list accounts", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, unavailable("failed to scan account id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("error iterating accounts", err)
	}
	return ids, nil
}

// ReadCashBalance returns the committed cash balance.
func (s *SQLiteStore) ReadCashBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	return readCash(ctx, s.ledgerDB, accountID)
}

// ListTransactions returns the committed transactions of an account.
func (s *SQLiteStore) ListTransactions(ctx context.Context, accountID int64) ([]Transaction, error) {
	return listTransactions(ctx, s.ledgerDB, accountID)
}

// InTx runs fn inside one immediate SQLite transaction.
func (s *SQLiteStore) InTx(ctx context.Context, accountID int64, fn func(tx Tx) error) error {
	var fnErr error
	err := database.WithTransactionContext(ctx, s.ledgerDB, func(tx *sql.Tx) error {
		// Fail early for unknown accounts so fn never runs against nothing.
		if _, err := readCash(ctx, tx, accountID); err != nil {
			fnErr = err
			return err
		}
		fnErr = fn(&sqliteTx{q: tx, accountID: accountID})
		return fnErr
	})
	if err != nil {
		if fnErr != nil {
			return fnErr
		}
		return unavailable("ledger transaction", err)
	}
	return nil
}

type sqliteTx struct {
	q         querier
	accountID int64
}

func (t *sqliteTx) ReadCashBalance(ctx context.Context) (decimal.Decimal, error) {
	return readCash(ctx, t.q, t.accountID)
}

func (t *sqliteTx) WriteCashBalance(ctx context.Context, cash decimal.Decimal) error {
	result, err := t.q.ExecContext(ctx, `UPDATE accounts SET cash = ? WHERE id = ?`, cash.String(), t.accountID)
	if err != nil {
		return unavailable("failed to write cash balance", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return unavailable("failed to write cash balance", err)
	}
	if n == 0 {
		return accountNotFound(t.accountID)
	}
	return nil
}

func (t *sqliteTx) AppendTransaction(ctx context.Context, txn Transaction) (Transaction, error) {
	txn, err := prepareAppend(t.accountID, txn)
	if err != nil {
		return txn, err
	}

	var last sql.NullInt64
	if err := t.q.QueryRowContext(ctx,
		`SELECT MAX(executed_at) FROM transactions WHERE account_id = ?`, t.accountID,
	).Scan(&last); err != nil {
		return txn, unavailable("failed to read last transaction time", err)
	}
	if last.Valid {
		txn.ExecutedAt = monotonic(txn.ExecutedAt, time.Unix(0, last.Int64))
	}

	result, err := t.q.ExecContext(ctx,
		`INSERT INTO transactions (account_id, symbol, price, quantity, total, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		txn.AccountID, txn.Symbol, txn.Price.String(), txn.Quantity, txn.Total.String(), txn.ExecutedAt.UnixNano(),
	)
	if err != nil {
		return txn, unavailable("failed to append transaction", err)
	}
	if txn.ID, err = result.LastInsertId(); err != nil {
		return txn, unavailable("failed to read transaction id", err)
	}
	return txn, nil
}

func (t *sqliteTx) ListTransactions(ctx context.Context) ([]Transaction, error) {
	return listTransactions(ctx, t.q, t.accountID)
}

func readCash(ctx context.Context, q querier, accountID int64) (decimal.Decimal, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT cash FROM accounts WHERE id = ?`, accountID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, accountNotFound(accountID)
	}
	if err != nil {
		return decimal.Zero, unavailable("failed to read cash balance", err)
	}
	cash, err := domain.ParseMoney(raw)
	if err != nil {
		return decimal.Zero, unavailable("corrupt cash balance", err)
	}
	return cash, nil
}

func listTransactions(ctx context.Context, q querier, accountID int64) ([]Transaction, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+transactionsColumns+` FROM transactions
		 WHERE account_id = ?
		 ORDER BY executed_at ASC, id ASC`, accountID)
	if err != nil {
		return nil, unavailable("failed to list transactions", err)
	}
	defer rows.Close()

	transactions := make([]Transaction, 0)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, unavailable("failed to scan transaction", err)
		}
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("error iterating transactions", err)
	}
	return transactions, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row scanner) (Transaction, error) {
	var txn Transaction
	var price, total string
	var executedAt int64

	if err := row.Scan(&txn.ID, &txn.AccountID, &txn.Symbol, &price, &txn.Quantity, &total, &executedAt); err != nil {
		return txn, err
	}

	var err error
	if txn.Price, err = domain.ParseMoney(price); err != nil {
		return txn, fmt.Errorf("transaction %d price: %w", txn.ID, err)
	}
	if txn.Total, err = domain.ParseMoney(total); err != nil {
		return txn, fmt.Errorf("transaction %d total: %w", txn.ID, err)
	}
	txn.ExecutedAt = time.Unix(0, executedAt)
	return txn, nil
}

func scanAccount(row scanner) (Account, error) {
	var account Account
	var cash string
	var createdAt int64

	if err := row.Scan(&account.ID, &account.Username, &account.Hash, &cash, &createdAt); err != nil {
		return account, err
	}

	var err error
	if account.Cash, err = domain.ParseMoney(cash); err != nil {
		return account, fmt.Errorf("account %d cash: %w", account.ID, err)
	}
	account.CreatedAt = time.Unix(createdAt, 0)
	return account, nil
}
