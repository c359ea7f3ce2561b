package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// postgresSchema keeps money as unscaled NUMERIC so stored values are
// exactly the decimals written. Ledger rows are append-only.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id BIGSERIAL PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	hash TEXT NOT NULL,
	cash NUMERIC NOT NULL CHECK (cash >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS transactions (
	id BIGSERIAL PRIMARY KEY,
	account_id BIGINT NOT NULL REFERENCES accounts(id),
	symbol TEXT NOT NULL CHECK (length(symbol) > 0),
	price NUMERIC NOT NULL CHECK (price > 0),
	quantity BIGINT NOT NULL CHECK (quantity <> 0),
	total NUMERIC NOT NULL,
	executed_at TIMESTAMPTZ NOT NULL
);

ALTER TABLE accounts ALTER COLUMN cash TYPE NUMERIC;
ALTER TABLE transactions ALTER COLUMN price TYPE NUMERIC;
ALTER TABLE transactions ALTER COLUMN total TYPE NUMERIC;

CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id, executed_at, id);
CREATE INDEX IF NOT EXISTS idx_transactions_account_symbol ON transactions(account_id, symbol);

CREATE OR REPLACE FUNCTION transactions_append_only() RETURNS trigger AS $$
BEGIN
	RAISE EXCEPTION 'transactions are append-only';
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS transactions_no_update ON transactions;
CREATE TRIGGER transactions_no_update
	BEFORE UPDATE ON transactions
	FOR EACH ROW EXECUTE FUNCTION transactions_append_only();

DROP TRIGGER IF EXISTS transactions_no_delete ON transactions;
CREATE TRIGGER transactions_no_delete
	BEFORE DELETE ON transactions
	FOR EACH ROW EXECUTE FUNCTION transactions_append_only();
`

// uniqueViolation is the Postgres SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// PostgresStore is the Store for deployments that keep the ledger in
// Postgres. InTx locks the account row with SELECT ... FOR UPDATE.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string, log zerolog.Logger) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	s := &PostgresStore{pool: pool, log: log.With().Str("repo", "ledger_pg").Logger()}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) CreateAccount(ctx context.Context, username, hash string, cash decimal.Decimal) (Account, error) {
	account := Account{Username: username, Hash: hash, Cash: cash}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO accounts (username, hash, cash) VALUES ($1, $2, $3::numeric) RETURNING id, created_at`,
		username, hash, cash.String(),
	).Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Account{}, fmt.Errorf("username %q: %w", username, domain.ErrUsernameTaken)
		}
		return Account{}, unavailable("failed to create account", err)
	}

	s.log.Info().Int64("account_id", account.ID).Str("username", username).Msg("Account created")
	return account, nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, accountID int64) (Account, error) {
	account, err := s.scanAccount(s.pool.QueryRow(ctx,
		`SELECT id, username, hash, cash::text, created_at FROM accounts WHERE id = $1`, accountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, accountNotFound(accountID)
	}
	if err != nil {
		return Account{}, unavailable("failed to get account", err)
	}
	return account, nil
}

func (s *PostgresStore) FindAccountByUsername(ctx context.Context, username string) (Account, error) {
	account, err := s.scanAccount(s.pool.QueryRow(ctx,
		`SELECT id, username, hash, cash::text, created_at FROM accounts WHERE username = $1`, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, fmt.Errorf("username %q: %w", username, domain.ErrAccountNotFound)
	}
	if err != nil {
		return Account{}, unavailable("failed to find account", err)
	}
	return account, nil
}

func (s *PostgresStore) ListAccountIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM accounts ORDER BY id`)
	if err != nil {
		return nil, unavailable("failed to list accounts", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, unavailable("failed to list accounts", err)
	}
	return ids, nil
}

func (s *PostgresStore) ReadCashBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	return pgReadCash(ctx, s.pool, accountID, false)
}

func (s *PostgresStore) ListTransactions(ctx context.Context, accountID int64) ([]Transaction, error) {
	return pgListTransactions(ctx, s.pool, accountID)
}

// InTx runs fn in a read-committed transaction holding the account row lock.
func (s *PostgresStore) InTx(ctx context.Context, accountID int64, fn func(tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return unavailable("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := pgReadCash(ctx, tx, accountID, true); err != nil {
		return err
	}

	if err := fn(&pgTx{tx: tx, accountID: accountID}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return unavailable("failed to commit transaction", err)
	}
	return nil
}

// pgQuerier is satisfied by *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgTx struct {
	tx        pgx.Tx
	accountID int64
}

func (t *pgTx) ReadCashBalance(ctx context.Context) (decimal.Decimal, error) {
	return pgReadCash(ctx, t.tx, t.accountID, false)
}

func (t *pgTx) WriteCashBalance(ctx context.Context, cash decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx, `UPDATE accounts SET cash = $1::numeric WHERE id = $2`, cash.String(), t.accountID)
	if err != nil {
		return unavailable("failed to write cash balance", err)
	}
	if tag.RowsAffected() == 0 {
		return accountNotFound(t.accountID)
	}
	return nil
}

func (t *pgTx) AppendTransaction(ctx context.Context, txn Transaction) (Transaction, error) {
	txn, err := prepareAppend(t.accountID, txn)
	if err != nil {
		return txn, err
	}

	var last *time.Time
	if err := t.tx.QueryRow(ctx,
		`SELECT MAX(executed_at) FROM transactions WHERE account_id = $1`, t.accountID,
	).Scan(&last); err != nil {
		return txn, unavailable("failed to read last transaction time", err)
	}
	if last != nil {
		txn.ExecutedAt = monotonic(txn.ExecutedAt, *last)
	}

	err = t.tx.QueryRow(ctx,
		`INSERT INTO transactions (account_id, symbol, price, quantity, total, executed_at)
		 VALUES ($1, $2, $3::numeric, $4, $5::numeric, $6) RETURNING id`,
		txn.AccountID, txn.Symbol, txn.Price.String(), txn.Quantity, txn.Total.String(), txn.ExecutedAt,
	).Scan(&txn.ID)
	if err != nil {
		return txn, unavailable("failed to append transaction", err)
	}
	return txn, nil
}

func (t *pgTx) ListTransactions(ctx context.Context) ([]Transaction, error) {
	return pgListTransactions(ctx, t.tx, t.accountID)
}

func pgReadCash(ctx context.Context, q pgQuerier, accountID int64, forUpdate bool) (decimal.Decimal, error) {
	query := `SELECT cash::text FROM accounts WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var raw string
	err := q.QueryRow(ctx, query, accountID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
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

func pgListTransactions(ctx context.Context, q pgQuerier, accountID int64) ([]Transaction, error) {
	rows, err := q.Query(ctx,
		`SELECT id, account_id, symbol, price::text, quantity, total::text, executed_at
		 FROM transactions WHERE account_id = $1
		 ORDER BY executed_at ASC, id ASC`, accountID)
	if err != nil {
		return nil, unavailable("failed to list transactions", err)
	}
	defer rows.Close()

	transactions := make([]Transaction, 0)
	for rows.Next() {
		var txn Transaction
		var price, total string
		if err := rows.Scan(&txn.ID, &txn.AccountID, &txn.Symbol, &price, &txn.Quantity, &total, &txn.ExecutedAt); err != nil {
			return nil, unavailable("failed to scan transaction", err)
		}
		if txn.Price, err = domain.ParseMoney(price); err != nil {
			return nil, unavailable("corrupt transaction price", err)
		}
		if txn.Total, err = domain.ParseMoney(total); err != nil {
			return nil, unavailable("corrupt transaction total", err)
		}
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("error iterating transactions", err)
	}
	return transactions, nil
}

func (s *PostgresStore) scanAccount(row pgx.Row) (Account, error) {
	var account Account
	var cash string
	if err := row.Scan(&account.ID, &account.Username, &account.Hash, &cash, &account.CreatedAt); err != nil {
		return account, err
	}
	var err error
	if account.Cash, err = domain.ParseMoney(cash); err != nil {
		return account, fmt.Errorf("account %d cash: %w", account.ID, err)
	}
	return account, nil
}
