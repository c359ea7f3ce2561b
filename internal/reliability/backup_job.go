package reliability

import (
	"context"
)

// BackupJob uploads a backup and rotates old ones
type BackupJob struct {
	service       *BackupService
	retentionDays int
}

// NewBackupJob creates a new backup job
func NewBackupJob(service *BackupService, retentionDays int) *BackupJob {
	return &BackupJob{service: service, retentionDays: retentionDays}
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string {
	return "backup"
}

// Run executes the backup job
func (j *BackupJob) Run(ctx context.Context) error {
	if _, err := j.service.CreateAndUpload(ctx); err != nil {
		return err
	}
	_, err := j.service.RotateOldBackups(ctx, j.retentionDays)
	return err
}
