package reliability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Maintainable is a SQLite database the maintenance job looks after
type Maintainable interface {
	WALCheckpoint(mode string) error
	QuickCheck(ctx context.Context) error
}

// SessionPruner removes expired login sessions
type SessionPruner interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SnapshotPruner removes old net worth snapshots
type SnapshotPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// MaintenanceJob checkpoints WAL files, pings every database and prunes
// expired sessions and old snapshots.
type MaintenanceJob struct {
	databases         map[string]Maintainable
	sessions          SessionPruner
	snapshots         SnapshotPruner
	snapshotRetention time.Duration
	now               func() time.Time
	log               zerolog.Logger
}

// NewMaintenanceJob creates a new maintenance job. sessions and snapshots may
// be nil; snapshotRetention 0 keeps snapshots forever.
func NewMaintenanceJob(
	databases map[string]Maintainable,
	sessions SessionPruner,
	snapshots SnapshotPruner,
	snapshotRetention time.Duration,
	log zerolog.Logger,
) *MaintenanceJob {
	return &MaintenanceJob{
		databases:         databases,
		sessions:          sessions,
		snapshots:         snapshots,
		snapshotRetention: snapshotRetention,
		now:               time.Now,
		log:               log.With().Str("job", "maintenance").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Run executes the maintenance job. A database failing its health check fails
// the run; checkpoint and pruning failures are only logged.
func (j *MaintenanceJob) Run(ctx context.Context) error {
	start := time.Now()

	names := make([]string, 0, len(j.databases))
	for name := range j.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	var unhealthy []string
	for _, name := range names {
		db := j.databases[name]
		if err := db.QuickCheck(ctx); err != nil {
			j.log.Error().Err(err).Str("database", name).Msg("Database health check failed")
			unhealthy = append(unhealthy, name)
			continue
		}
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Err(err).Str("database", name).Msg("WAL checkpoint failed")
		}
	}

	now := j.now()
	if j.sessions != nil {
		if n, err := j.sessions.DeleteExpired(ctx, now); err != nil {
			j.log.Warn().Err(err).Msg("Failed to prune sessions")
		} else if n > 0 {
			j.log.Info().Int64("sessions", n).Msg("Expired sessions pruned")
		}
	}
	if j.snapshots != nil && j.snapshotRetention > 0 {
		if _, err := j.snapshots.DeleteBefore(ctx, now.Add(-j.snapshotRetention)); err != nil {
			j.log.Warn().Err(err).Msg("Failed to prune snapshots")
		}
	}

	if len(unhealthy) > 0 {
		return fmt.Errorf("unhealthy databases: %v", unhealthy)
	}

	j.log.Info().Int("databases", len(names)).Dur("duration", time.Since(start)).Msg("Maintenance completed")
	return nil
}
