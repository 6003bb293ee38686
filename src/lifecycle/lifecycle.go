// Package lifecycle runs one backup invocation: create a manual snapshot,
// wait for it to become available, share it with the target account, and
// prune snapshots past the retention window.
//
// A single invocation is a straight line through
// create -> available -> shared -> pruned; any unrecoverable failure before
// the snapshot is available (or while sharing) fails the whole invocation,
// while pruning failures only degrade the result. Invocations are expected
// to run one at a time (a schedule tick or a manual run); overlapping runs
// against the same cluster are not coordinated.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/clock"

	"redshift-dr/src/account"
	"redshift-dr/src/awsapi"
	"redshift-dr/src/naming"
	"redshift-dr/src/retrier"
)

const (
	DefaultRetentionDays = 7
	DefaultWaitTimeout   = 15 * time.Minute
	DefaultPollInterval  = 30 * time.Second
)

// Config is the invocation input.
type Config struct {
	ClusterID     string
	TargetAccount string        // resolved account id to share with
	RetentionDays int           // snapshots older than this are pruned; 0 is meaningful
	WaitTimeout   time.Duration // wall-clock ceiling for the availability wait
	PollInterval  time.Duration
}

// Result is the structured invocation output, shaped for JSON consumers.
type Result struct {
	Status             string `json:"status"` // completed | failed
	SnapshotID         string `json:"snapshot_id,omitempty"`
	ClusterID          string `json:"cluster_identifier"`
	TargetAccount      string `json:"target_account_id"`
	Timestamp          string `json:"timestamp"`
	Shared             bool   `json:"shared"`
	CleanedUpSnapshots int    `json:"cleaned_up_snapshots"`
	Error              string `json:"error,omitempty"`
}

// TimeoutError reports that the availability wait hit its ceiling.
type TimeoutError struct {
	SnapshotID string
	Waited     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for snapshot %s to become available", e.Waited, e.SnapshotID)
}

// Manager orchestrates one invocation.
type Manager struct {
	Snapshots awsapi.SnapshotAPI
	Access    account.Coordinator
	Retry     retrier.Executor
	Clock     clock.Clock
	Report    func(format string, args ...any)
}

func (m *Manager) report(format string, args ...any) {
	if m.Report != nil {
		m.Report(format, args...)
	}
}

func (m *Manager) clock() clock.Clock {
	if m.Clock != nil {
		return m.Clock
	}
	return clock.WallClock
}

// Run executes the backup invocation and always returns a Result; the
// error mirrors Result.Error for callers that want to branch on it.
func (m *Manager) Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultWaitTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	clk := m.clock()
	started := clk.Now().UTC()
	res := Result{
		Status:        "failed",
		ClusterID:     cfg.ClusterID,
		TargetAccount: cfg.TargetAccount,
		Timestamp:     started.Format(time.RFC3339),
	}

	snapshotID := naming.SnapshotID(started)
	m.report("creating snapshot %s of cluster %s", snapshotID, cfg.ClusterID)
	err := m.Retry.Run("create snapshot", func() error {
		return m.Snapshots.CreateSnapshot(ctx, snapshotID, cfg.ClusterID, map[string]string{
			"Purpose":       "cross-account-backup",
			"CreatedBy":     naming.Prefix,
			"TargetAccount": cfg.TargetAccount,
		})
	})
	if err != nil {
		res.Error = err.Error()
		return res, err
	}
	res.SnapshotID = snapshotID

	if err := m.waitAvailable(ctx, snapshotID, cfg); err != nil {
		res.Error = err.Error()
		return res, err
	}
	m.report("snapshot %s is available", snapshotID)

	if err := m.Access.Grant(ctx, snapshotID, cfg.TargetAccount); err != nil {
		res.Error = fmt.Sprintf("share snapshot: %v", err)
		return res, err
	}
	res.Shared = true
	m.report("snapshot %s shared with account %s", snapshotID, cfg.TargetAccount)

	pruned := m.prune(ctx, cfg, snapshotID)
	res.CleanedUpSnapshots = pruned
	m.report("pruned %d snapshot(s) older than %d day(s)", pruned, cfg.RetentionDays)

	res.Status = "completed"
	return res, nil
}

// waitAvailable polls snapshot status until available, failed, or the
// wall-clock ceiling. Describe errors are tolerated and retried on the
// next poll, matching the provider's eventual consistency.
func (m *Manager) waitAvailable(ctx context.Context, snapshotID string, cfg Config) error {
	clk := m.clock()
	deadline := clk.Now().Add(cfg.WaitTimeout)
	for {
		snap, err := m.Snapshots.DescribeSnapshot(ctx, snapshotID)
		if err != nil {
			m.report("describe snapshot %s: %v", snapshotID, err)
		} else {
			switch snap.Status {
			case "available":
				return nil
			case "failed":
				return fmt.Errorf("snapshot %s entered failed state", snapshotID)
			default:
				m.report("snapshot %s status: %s", snapshotID, snap.Status)
			}
		}
		if clk.Now().After(deadline) {
			return &TimeoutError{SnapshotID: snapshotID, Waited: cfg.WaitTimeout}
		}
		select {
		case <-clk.After(cfg.PollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// prune deletes lifecycle snapshots strictly older than the retention
// cutoff. Age exactly equal to the cutoff is kept, so the snapshot created
// by this invocation always survives a zero-day retention. Failures are
// reported and skipped; the pass never aborts.
func (m *Manager) prune(ctx context.Context, cfg Config, justCreated string) int {
	var snaps []awsapi.Snapshot
	err := m.Retry.Run("list snapshots", func() error {
		var listErr error
		snaps, listErr = m.Snapshots.ListSnapshots(ctx)
		return listErr
	})
	if err != nil {
		m.report("could not list snapshots for pruning: %v", err)
		return 0
	}

	cutoff := m.clock().Now().Add(-time.Duration(cfg.RetentionDays) * 24 * time.Hour)
	pruned := 0
	for _, snap := range snaps {
		if !naming.IsLifecycleSnapshot(snap.ID) || snap.ID == justCreated {
			continue
		}
		if !snap.CreatedAt.Before(cutoff) {
			continue
		}
		m.report("deleting expired snapshot %s (created %s)", snap.ID, snap.CreatedAt.UTC().Format(time.RFC3339))
		err := m.Retry.Run("delete snapshot", func() error {
			return m.Snapshots.DeleteSnapshot(ctx, snap.ID)
		})
		switch {
		case err == nil, awsapi.IsNotFound(err):
			pruned++
		default:
			m.report("could not delete snapshot %s: %v", snap.ID, err)
		}
	}
	return pruned
}
