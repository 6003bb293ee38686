package awsapi

import (
	"context"
	"time"
)

// Snapshot models a manual cluster snapshot in one account.
type Snapshot struct {
	ID            string
	ClusterID     string
	Status        string // creating | available | failed
	CreatedAt     time.Time
	OwnerAccount  string
	RestoreAccess []string // account ids authorized to restore
}

// Cluster models a running (or deleting) cluster.
type Cluster struct {
	ID     string
	Status string
}

// RecoveryPoint models a managed-backup artifact held in a vault. Its ARN
// is assigned by the service, never chosen by us.
type RecoveryPoint struct {
	ARN         string
	Vault       string
	ResourceARN string
	Status      string
	CreatedAt   time.Time
}

// BackupJob models an in-flight or finished backup job.
type BackupJob struct {
	ID               string
	State            string // CREATED | RUNNING | COMPLETED | FAILED | ABORTED | EXPIRED
	RecoveryPointARN string
}

// BackupPlan and BackupSelection model the plan/selection ownership pair.
// A selection cannot outlive its plan; deletion order is selections first.
type BackupPlan struct {
	ID   string
	Name string
}

type BackupSelection struct {
	ID     string
	Name   string
	PlanID string
}

// Stack models a deployment stack by name and status.
type Stack struct {
	Name   string
	Status string
}

// SnapshotAPI covers the warehouse snapshot control plane.
type SnapshotAPI interface {
	CreateSnapshot(ctx context.Context, snapshotID, clusterID string, tags map[string]string) error
	DescribeSnapshot(ctx context.Context, snapshotID string) (Snapshot, error)
	DeleteSnapshot(ctx context.Context, snapshotID string) error
	// ListSnapshots returns all manual snapshots visible in the account.
	ListSnapshots(ctx context.Context) ([]Snapshot, error)
	AuthorizeSnapshotAccess(ctx context.Context, snapshotID, account string) error
	RevokeSnapshotAccess(ctx context.Context, snapshotID, account string) error
	CopySnapshot(ctx context.Context, sourceID, sourceOwner, sourceCluster, targetID string) error
	RestoreClusterFromSnapshot(ctx context.Context, clusterID, snapshotID, ownerAccount, subnetGroup string) error
}

// ClusterAPI covers cluster lifecycle.
type ClusterAPI interface {
	DescribeCluster(ctx context.Context, clusterID string) (Cluster, error)
	// DeleteCluster issues an asynchronous deletion, skipping any final
	// snapshot. Completion must be confirmed via DescribeCluster.
	DeleteCluster(ctx context.Context, clusterID string) error
	ListClusters(ctx context.Context) ([]Cluster, error)
}

// BackupAPI covers the managed-backup control plane.
type BackupAPI interface {
	StartBackupJob(ctx context.Context, vault, resourceARN, roleARN string) (string, error)
	DescribeBackupJob(ctx context.Context, jobID string) (BackupJob, error)
	ListRecoveryPoints(ctx context.Context, vault string) ([]RecoveryPoint, error)
	DeleteRecoveryPoint(ctx context.Context, vault, arn string) error
	ListBackupPlans(ctx context.Context) ([]BackupPlan, error)
	ListBackupSelections(ctx context.Context, planID string) ([]BackupSelection, error)
	DeleteBackupSelection(ctx context.Context, planID, selectionID string) error
	DeleteBackupPlan(ctx context.Context, planID string) error
	// DeleteBackupVault fails while the vault still holds recovery points.
	DeleteBackupVault(ctx context.Context, vault string) error
}

// StackAPI covers deployment stack lifecycle, keyed by stack name.
type StackAPI interface {
	DescribeStack(ctx context.Context, name string) (Stack, error)
	// DeleteStack issues an asynchronous deletion; completion must be
	// confirmed via DescribeStack.
	DeleteStack(ctx context.Context, name string) error
}

// IdentityAPI resolves the calling account.
type IdentityAPI interface {
	CallerAccount(ctx context.Context) (string, error)
}

// Client is the full capability surface over one account's control planes.
// Keep it narrow and focused on what we actually call so it stays fakeable.
type Client interface {
	SnapshotAPI
	ClusterAPI
	BackupAPI
	StackAPI
	IdentityAPI
}
