package scheduler

import (
	"context"

	"github.com/aristath/stockfolio/internal/events"
)

// Snapshotter takes a snapshot of every account
type Snapshotter interface {
	TakeAll(ctx context.Context) (events.SnapshotTakenData, error)
}

// SnapshotJob records the net worth of every account
type SnapshotJob struct {
	snapshots Snapshotter
}

// NewSnapshotJob creates a new snapshot job
func NewSnapshotJob(snapshots Snapshotter) *SnapshotJob {
	return &SnapshotJob{snapshots: snapshots}
}

// Name returns the job name
func (j *SnapshotJob) Name() string {
	return "net_worth_snapshot"
}

// Run executes the snapshot job
func (j *SnapshotJob) Run(ctx context.Context) error {
	_, err := j.snapshots.TakeAll(ctx)
	return err
}
