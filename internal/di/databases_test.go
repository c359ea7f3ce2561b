package di

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aristath/stockfolio/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		DataDir:       t.TempDir(),
		LedgerDriver:  config.DriverSQLite,
		QuoteProvider: config.ProviderStatic,
		StaticQuotes:  "AAPL=100,MSFT=250.50",
	}
	cfg.InitialCash = mustDecimal(t, "10000")
	cfg.LockTTL = defaultDuration
	cfg.SessionTTL = defaultDuration
	cfg.JobTimeout = defaultDuration
	cfg.SnapshotSchedule = "@every 1h"
	cfg.MaintenanceSchedule = "0 0 3 * * *"
	return cfg
}

func TestInitializeDatabases(t *testing.T) {
	cfg := testConfig(t)

	container, err := InitializeDatabases(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	require.NotNil(t, container.LedgerDB)
	require.NotNil(t, container.CacheDB)
	require.NotNil(t, container.HistoryDB)
	assert.NotNil(t, container.LedgerStore)

	assert.Equal(t, filepath.Join(cfg.DataDir, "ledger.db"), container.LedgerDB.Path())
	assert.Equal(t, filepath.Join(cfg.DataDir, "cache.db"), container.CacheDB.Path())
	assert.Equal(t, filepath.Join(cfg.DataDir, "history.db"), container.HistoryDB.Path())

	dbs := container.Databases()
	assert.Len(t, dbs, 3)
	for name, db := range dbs {
		assert.NoError(t, db.QuickCheck(context.Background()), name)
	}
}

func TestInitializeDatabases_LedgerIsUsable(t *testing.T) {
	cfg := testConfig(t)

	container, err := InitializeDatabases(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	account, err := container.LedgerStore.CreateAccount(context.Background(), "alice", "hash", cfg.InitialCash)
	require.NoError(t, err)

	cash, err := container.LedgerStore.ReadCashBalance(context.Background(), account.ID)
	require.NoError(t, err)
	assert.True(t, cash.Equal(cfg.InitialCash))
}

func TestContainerClose_Nil(t *testing.T) {
	var c *Container
	assert.NotPanics(t, func() { c.Close() })
}
