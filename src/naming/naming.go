// Package naming holds the fixed resource-name conventions shared by the
// backup lifecycle and the teardown engine. Teardown discovers resources
// purely by listing and matching these names, so they must not change
// between the run that creates an artifact and the run that deletes it.
package naming

import (
	"strings"
	"time"
)

const (
	// Prefix is the project prefix carried by every resource we own.
	Prefix = "redshift-dr"

	// SnapshotPrefix is the prefix of manual snapshots created by the
	// lifecycle manager; the trailing part is a UTC timestamp.
	SnapshotPrefix = Prefix + "-snapshot-"

	// CopiedPrefix marks snapshot copies made in the target account.
	CopiedPrefix = "copied-"

	// SourceVault and TargetVault are the backup vault names in the
	// source and target accounts.
	SourceVault = Prefix + "-vault"
	TargetVault = Prefix + "-cross-account-vault"

	// PlanPrefix is the prefix of backup plans owned by this project.
	PlanPrefix = Prefix + "-plan"

	// SourceStack and TargetStack are the CloudFormation stack names.
	SourceStack = Prefix + "-source"
	TargetStack = Prefix + "-target"

	// DefaultCluster is the primary cluster identifier.
	DefaultCluster = Prefix + "-cluster"

	snapshotTimeLayout = "20060102-150405"
)

// RestoredClusterCandidates are the cluster identifiers a restore may have
// used in the target account. Teardown deletes these before touching any
// snapshot, since a snapshot backing a live restore cannot be deleted.
var RestoredClusterCandidates = []string{
	Prefix + "-restored-cluster",
	Prefix + "-restored-cluster-2",
}

// SnapshotID returns the snapshot identifier for a backup taken at now.
func SnapshotID(now time.Time) string {
	return SnapshotPrefix + now.UTC().Format(snapshotTimeLayout)
}

// CopiedSnapshotID returns the identifier for a target-account copy of
// sourceID made at now.
func CopiedSnapshotID(sourceID string, now time.Time) string {
	return CopiedPrefix + sourceID + "-" + now.UTC().Format(snapshotTimeLayout)
}

// IsLifecycleSnapshot reports whether id was created by the lifecycle
// manager (and is therefore subject to retention pruning).
func IsLifecycleSnapshot(id string) bool {
	return strings.HasPrefix(id, SnapshotPrefix)
}

// IsProjectSnapshot reports whether id belongs to this project, including
// target-account copies.
func IsProjectSnapshot(id string) bool {
	return IsLifecycleSnapshot(id) || strings.HasPrefix(id, CopiedPrefix)
}

// IsProjectPlan reports whether a backup plan name belongs to this project.
func IsProjectPlan(name string) bool {
	return strings.HasPrefix(name, PlanPrefix)
}

// BelongsToProject reports whether any resource name carries the project
// prefix. Used by the final teardown verification pass.
func BelongsToProject(name string) bool {
	return strings.HasPrefix(name, Prefix)
}

// SnapshotTime parses the timestamp embedded in a lifecycle snapshot
// identifier. The second return is false for names without one.
func SnapshotTime(id string) (time.Time, bool) {
	if !strings.HasPrefix(id, SnapshotPrefix) {
		return time.Time{}, false
	}
	t, err := time.Parse(snapshotTimeLayout, strings.TrimPrefix(id, SnapshotPrefix))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
