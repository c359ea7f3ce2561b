// Package di provides dependency injection type definitions.
package di

import (
	"context"

	"github.com/aristath/stockfolio/internal/database"
	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/events"
	"github.com/aristath/stockfolio/internal/modules/accounts"
	"github.com/aristath/stockfolio/internal/modules/ledger"
	"github.com/aristath/stockfolio/internal/modules/portfolio"
	"github.com/aristath/stockfolio/internal/modules/snapshots"
	"github.com/aristath/stockfolio/internal/modules/trading"
	"github.com/aristath/stockfolio/internal/reliability"
	"github.com/aristath/stockfolio/internal/scheduler"
	"github.com/redis/go-redis/v9"
)

// Container holds all dependencies for the application. It is created by
// Wire and passed to the server and the CLI.
type Container struct {
	// Databases. LedgerDB is nil when the ledger lives in Postgres.
	LedgerDB  *database.DB
	CacheDB   *database.DB
	HistoryDB *database.DB

	// Clients
	RedisClient *redis.Client
	QuoteSource domain.QuoteSource
	ObjectStore reliability.ObjectStore

	// Repositories
	LedgerStore  ledger.Store
	SessionRepo  *accounts.SessionRepository
	SnapshotRepo *snapshots.SnapshotRepository

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Services
	Locker           trading.AccountLocker
	AccountService   *accounts.AccountService
	PortfolioService *portfolio.PortfolioService
	TradingService   *trading.TradingService
	SnapshotService  *snapshots.SnapshotService
	BackupService    *reliability.BackupService

	Scheduler *scheduler.Scheduler

	postgresStore *ledger.PostgresStore
}

// JobInstances holds the scheduled jobs so they can be triggered manually.
type JobInstances struct {
	Snapshot    scheduler.Job
	Maintenance scheduler.Job
	Backup      scheduler.Job // nil when backups are not configured
}

// ByName returns the registered jobs keyed by job name.
func (j *JobInstances) ByName() map[string]scheduler.Job {
	out := make(map[string]scheduler.Job)
	for _, job := range []scheduler.Job{j.Snapshot, j.Maintenance, j.Backup} {
		if job != nil {
			out[job.Name()] = job
		}
	}
	return out
}

// Databases returns the open SQLite databases keyed by name.
func (c *Container) Databases() map[string]*database.DB {
	out := make(map[string]*database.DB)
	for _, db := range []*database.DB{c.LedgerDB, c.CacheDB, c.HistoryDB} {
		if db != nil {
			out[db.Name()] = db
		}
	}
	return out
}

// Ping checks every backing store and returns the result keyed by name.
func (c *Container) Ping(ctx context.Context) map[string]error {
	out := make(map[string]error)
	for name, db := range c.Databases() {
		out[name] = db.QuickCheck(ctx)
	}
	if c.postgresStore != nil {
		out["ledger"] = c.postgresStore.Ping(ctx)
	}
	if c.RedisClient != nil {
		out["redis"] = c.RedisClient.Ping(ctx).Err()
	}
	return out
}

// Close stops the scheduler and releases every connection.
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.RedisClient != nil {
		_ = c.RedisClient.Close()
	}
	c.postgresStore.Close()
	for _, db := range c.Databases() {
		_ = db.Close()
	}
}
