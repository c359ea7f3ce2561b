package di

import (
	"context"
	"fmt"

	"github.com/aristath/stockfolio/internal/config"
	"github.com/aristath/stockfolio/internal/database"
	"github.com/aristath/stockfolio/internal/modules/ledger"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens and migrates the SQLite databases and the ledger
// store selected by cfg.LedgerDriver.
func InitializeDatabases(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// cache.db - login sessions
	cacheDB, err := openDatabase(cfg.CachePath(), database.ProfileCache, "cache")
	if err != nil {
		return nil, err
	}
	container.CacheDB = cacheDB

	// history.db - net worth snapshots
	historyDB, err := openDatabase(cfg.HistoryPath(), database.ProfileStandard, "history")
	if err != nil {
		container.Close()
		return nil, err
	}
	container.HistoryDB = historyDB

	switch cfg.LedgerDriver {
	case config.DriverPostgres:
		store, err := ledger.NewPostgresStore(ctx, cfg.DatabaseDSN, log)
		if err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to initialize postgres ledger: %w", err)
		}
		container.postgresStore = store
		container.LedgerStore = store

	default:
		// ledger.db - accounts and the append-only transaction log
		ledgerDB, err := openDatabase(cfg.LedgerPath(), database.ProfileLedger, "ledger")
		if err != nil {
			container.Close()
			return nil, err
		}
		container.LedgerDB = ledgerDB
		container.LedgerStore = ledger.NewSQLiteStore(ledgerDB.Conn(), log)
	}

	log.Info().
		Str("ledger_driver", cfg.LedgerDriver).
		Str("data_dir", cfg.DataDir).
		Msg("Databases initialized")

	return container, nil
}

func openDatabase(path string, profile database.DatabaseProfile, name string) (*database.DB, error) {
	db, err := database.New(database.Config{Path: path, Profile: profile, Name: name})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s database: %w", name, err)
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate %s database: %w", name, err)
	}
	return db, nil
}
