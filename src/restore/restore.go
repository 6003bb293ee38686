// Package restore brings a cluster back in the target account from a
// snapshot shared by the source account, optionally via an independent
// target-side copy.
package restore

import (
	"context"
	"time"

	"github.com/juju/clock"

	"redshift-dr/src/awsapi"
	"redshift-dr/src/naming"
	"redshift-dr/src/retrier"
)

// Options describes one restore.
type Options struct {
	SnapshotID    string
	ClusterID     string // identifier for the restored cluster
	SourceAccount string // owner of the shared snapshot
	SourceCluster string // cluster the snapshot was taken from
	SubnetGroup   string
	CopyFirst     bool // make a target-side copy and restore from that
}

// Restorer runs in the target account.
type Restorer struct {
	Client awsapi.Client
	Retry  retrier.Executor
	Clock  clock.Clock
	Report func(format string, args ...any)
}

func (r *Restorer) report(format string, args ...any) {
	if r.Report != nil {
		r.Report(format, args...)
	}
}

func (r *Restorer) now() time.Time {
	if r.Clock != nil {
		return r.Clock.Now()
	}
	return time.Now()
}

// Run restores opts.ClusterID from the shared snapshot. With CopyFirst the
// snapshot is first copied into the target account (the copy is then owned
// locally and survives source-side pruning) and the restore uses the copy.
func (r *Restorer) Run(ctx context.Context, opts Options) (string, error) {
	snapshotID := opts.SnapshotID
	owner := opts.SourceAccount

	if opts.CopyFirst {
		copyID := naming.CopiedSnapshotID(opts.SnapshotID, r.now())
		r.report("copying shared snapshot %s to %s", opts.SnapshotID, copyID)
		err := r.Retry.Run("copy snapshot", func() error {
			return r.Client.CopySnapshot(ctx, opts.SnapshotID, opts.SourceAccount, opts.SourceCluster, copyID)
		})
		if err != nil {
			return "", err
		}
		snapshotID = copyID
		owner = "" // the copy is owned by the target account
	}

	r.report("restoring cluster %s from snapshot %s", opts.ClusterID, snapshotID)
	err := r.Retry.Run("restore cluster", func() error {
		return r.Client.RestoreClusterFromSnapshot(ctx, opts.ClusterID, snapshotID, owner, opts.SubnetGroup)
	})
	if err != nil {
		return "", err
	}
	return snapshotID, nil
}
