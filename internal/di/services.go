package di

import (
	"github.com/aristath/stockfolio/internal/config"
	"github.com/aristath/stockfolio/internal/events"
	"github.com/aristath/stockfolio/internal/modules/accounts"
	"github.com/aristath/stockfolio/internal/modules/portfolio"
	"github.com/aristath/stockfolio/internal/modules/snapshots"
	"github.com/aristath/stockfolio/internal/modules/trading"
	"github.com/aristath/stockfolio/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeServices creates repositories and services on top of the
// databases and clients already in container.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) {
	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	container.SessionRepo = accounts.NewSessionRepository(container.CacheDB.Conn(), log)
	container.SnapshotRepo = snapshots.NewSnapshotRepository(container.HistoryDB.Conn(), log)

	if container.RedisClient != nil {
		container.Locker = trading.NewRedisLocker(container.RedisClient, cfg.LockTTL, log)
	} else {
		container.Locker = trading.NewLocalLocker()
	}

	container.AccountService = accounts.NewAccountService(
		container.LedgerStore,
		container.SessionRepo,
		container.EventManager,
		cfg.InitialCash,
		cfg.SessionTTL,
		log,
	)
	container.PortfolioService = portfolio.NewPortfolioService(container.LedgerStore, container.QuoteSource, log)
	container.TradingService = trading.NewTradingService(
		container.LedgerStore,
		container.QuoteSource,
		container.Locker,
		container.EventManager,
		log,
	)
	container.SnapshotService = snapshots.NewSnapshotService(
		container.LedgerStore,
		container.PortfolioService,
		container.SnapshotRepo,
		container.EventManager,
		log,
	)

	backupSources := make(map[string]reliability.Backupable)
	for name, db := range container.Databases() {
		backupSources[name] = db
	}
	container.BackupService = reliability.NewBackupService(
		backupSources,
		container.ObjectStore,
		cfg.DataDir,
		container.EventManager,
		log,
	)
}
