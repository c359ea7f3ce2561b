package di

import (
	"fmt"

	"github.com/aristath/stockfolio/internal/config"
	"github.com/aristath/stockfolio/internal/reliability"
	"github.com/aristath/stockfolio/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the background jobs and schedules them. The scheduler
// is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	container.Scheduler = scheduler.New(cfg.JobTimeout, log)

	maintained := make(map[string]reliability.Maintainable)
	for name, db := range container.Databases() {
		maintained[name] = db
	}

	jobs := &JobInstances{
		Snapshot: scheduler.NewSnapshotJob(container.SnapshotService),
		Maintenance: reliability.NewMaintenanceJob(
			maintained,
			container.SessionRepo,
			container.SnapshotRepo,
			cfg.SnapshotRetention,
			log,
		),
	}
	if container.ObjectStore != nil {
		jobs.Backup = reliability.NewBackupJob(container.BackupService, cfg.Backup.RetentionDays)
	}

	if err := container.Scheduler.AddJob(cfg.SnapshotSchedule, jobs.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to schedule %s: %w", jobs.Snapshot.Name(), err)
	}
	if err := container.Scheduler.AddJob(cfg.MaintenanceSchedule, jobs.Maintenance); err != nil {
		return nil, fmt.Errorf("failed to schedule %s: %w", jobs.Maintenance.Name(), err)
	}
	if jobs.Backup != nil {
		if err := container.Scheduler.AddJob(cfg.Backup.Schedule, jobs.Backup); err != nil {
			return nil, fmt.Errorf("failed to schedule %s: %w", jobs.Backup.Name(), err)
		}
	}

	return jobs, nil
}
