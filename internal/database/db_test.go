package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedgerDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "ledger.db"),
		Profile: ProfileLedger,
		Name:    "ledger",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate())
	return db
}

func TestBuildConnectionString_Profiles(t *testing.T) {
	ledger := buildConnectionString("/tmp/ledger.db", ProfileLedger)
	assert.Contains(t, ledger, "synchronous(FULL)")
	assert.Contains(t, ledger, "_txlock=immediate")
	assert.Contains(t, ledger, "busy_timeout(5000)")

	cache := buildConnectionString("/tmp/cache.db", ProfileCache)
	assert.Contains(t, cache, "synchronous(OFF)")
	assert.NotContains(t, cache, "_txlock")
}

func TestMigrate_IsIdempotent(t *testing.T) {
	db := newLedgerDB(t)

	require.NoError(t, db.Migrate())

	var count int
	err := db.Conn().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('accounts', 'transactions')`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "x.db"), Name: "scratch"})
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Migrate())
	assert.Equal(t, ProfileStandard, db.Profile())
}

func TestLedgerSchema_TransactionsAreAppendOnly(t *testing.T) {
	db := newLedgerDB(t)
	now := time.Now().Unix()

	_, err := db.Conn().Exec(`INSERT INTO accounts (username, hash, cash, created_at) VALUES ('alice', 'x', '10000', ?)`, now)
	require.NoError(t, err)
	_, err = db.Conn().Exec(`INSERT INTO transactions (account_id, symbol, price, quantity, total, executed_at) VALUES (1, 'AAPL', '100', 10, '1000', ?)`, now)
	require.NoError(t, err)

	_, err = db.Conn().Exec(`UPDATE transactions SET quantity = 20 WHERE id = 1`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append-only")

	_, err = db.Conn().Exec(`DELETE FROM transactions WHERE id = 1`)
	require.Error(t, err)
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := newLedgerDB(t)
	boom := errors.New("boom")

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO accounts (username, hash, cash, created_at) VALUES ('bob', 'x', '1', 0)`); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&count))
	assert.Zero(t, count)
}

func TestWithTransaction_RecoversPanic(t *testing.T) {
	db := newLedgerDB(t)

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		panic("kaboom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestWithTransaction_NilDB(t *testing.T) {
	err := WithTransaction(nil, func(tx *sql.Tx) error { return nil })
	assert.Error(t, err)
}

func TestHealthAndCheckpoint(t *testing.T) {
	db := newLedgerDB(t)
	ctx := context.Background()

	assert.NoError(t, db.QuickCheck(ctx))
	assert.NoError(t, db.HealthCheck(ctx))
	assert.NoError(t, db.WALCheckpoint(""))
	assert.Error(t, db.WALCheckpoint("SOMETIMES"))
}

func TestBackupTo(t *testing.T) {
	db := newLedgerDB(t)
	dest := filepath.Join(t.TempDir(), "copy.db")

	require.NoError(t, db.BackupTo(context.Background(), dest))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	assert.Error(t, db.BackupTo(context.Background(), dest), "existing destination must not be overwritten")
}
