// Package awsbackup runs on-demand managed-backup jobs against a vault and
// reports the recovery points the service produced.
package awsbackup

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/clock"

	"redshift-dr/src/awsapi"
	"redshift-dr/src/retrier"
)

const (
	DefaultWaitTimeout  = time.Hour
	DefaultPollInterval = time.Minute
)

// Runner starts a backup job and waits for its terminal state.
type Runner struct {
	Backup awsapi.BackupAPI
	Retry  retrier.Executor
	Clock  clock.Clock
	Report func(format string, args ...any)
}

func (r *Runner) report(format string, args ...any) {
	if r.Report != nil {
		r.Report(format, args...)
	}
}

func (r *Runner) clock() clock.Clock {
	if r.Clock != nil {
		return r.Clock
	}
	return clock.WallClock
}

// Run starts a job for resourceARN into vault and blocks until the job
// reaches a terminal state or the ceiling passes. It returns the recovery
// point ARN the job produced.
func (r *Runner) Run(ctx context.Context, vault, resourceARN, roleARN string, waitTimeout, pollInterval time.Duration) (string, error) {
	if waitTimeout <= 0 {
		waitTimeout = DefaultWaitTimeout
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	var jobID string
	err := r.Retry.Run("start backup job", func() error {
		var startErr error
		jobID, startErr = r.Backup.StartBackupJob(ctx, vault, resourceARN, roleARN)
		return startErr
	})
	if err != nil {
		return "", err
	}
	r.report("backup job %s started for %s", jobID, resourceARN)

	clk := r.clock()
	deadline := clk.Now().Add(waitTimeout)
	for {
		job, err := r.Backup.DescribeBackupJob(ctx, jobID)
		if err != nil {
			r.report("describe backup job %s: %v", jobID, err)
		} else {
			switch job.State {
			case "COMPLETED":
				r.report("backup job %s completed: %s", jobID, job.RecoveryPointARN)
				return job.RecoveryPointARN, nil
			case "FAILED", "ABORTED", "EXPIRED":
				return "", fmt.Errorf("backup job %s ended in state %s", jobID, job.State)
			default:
				r.report("backup job %s state: %s", jobID, job.State)
			}
		}
		if clk.Now().After(deadline) {
			return "", fmt.Errorf("timed out after %s waiting for backup job %s", waitTimeout, jobID)
		}
		select {
		case <-clk.After(pollInterval):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// RecoveryPoints lists the vault's recovery points, newest first not
// guaranteed; callers sort if they care.
func (r *Runner) RecoveryPoints(ctx context.Context, vault string) ([]awsapi.RecoveryPoint, error) {
	var points []awsapi.RecoveryPoint
	err := r.Retry.Run("list recovery points", func() error {
		var listErr error
		points, listErr = r.Backup.ListRecoveryPoints(ctx, vault)
		return listErr
	})
	return points, err
}
