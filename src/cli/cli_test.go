package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"redshift-dr/src/awsapi"
	"redshift-dr/src/lifecycle"
	"redshift-dr/src/naming"
	"redshift-dr/src/version"
)

func runCLI(t *testing.T, fake *awsapi.FakeClient, args ...string) (string, string, error) {
	t.Helper()
	reset := SetConnectForTest(func(ctx context.Context, profile, region string) (awsapi.Client, error) {
		return fake, nil
	})
	defer reset()

	var stdout, stderr bytes.Buffer
	root := NewRootCmd(&stdout, &stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := runCLI(t, awsapi.NewFake(), "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if strings.TrimSpace(stdout) != version.Version {
		t.Errorf("got %q, want %q", stdout, version.Version)
	}
}

func TestBackupCommand_JSON(t *testing.T) {
	fake := awsapi.NewFake()
	fake.AccountID = "111111111111"
	fake.Clusters[naming.DefaultCluster] = &awsapi.Cluster{ID: naming.DefaultCluster, Status: "available"}

	stdout, _, err := runCLI(t, fake,
		"backup", "--target-account", "222222222222", "-o", "json")
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}

	var res lifecycle.Result
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, stdout)
	}
	if res.Status != "completed" {
		t.Errorf("status = %q, want completed", res.Status)
	}
	if !res.Shared {
		t.Error("snapshot was not shared")
	}
	if res.TargetAccount != "222222222222" {
		t.Errorf("target account = %q", res.TargetAccount)
	}
	if len(fake.Snapshots) != 1 {
		t.Errorf("expected exactly one snapshot, got %v", fake.Snapshots)
	}
}

func TestBackupCommand_DryRun(t *testing.T) {
	fake := awsapi.NewFake()
	fake.Clusters[naming.DefaultCluster] = &awsapi.Cluster{ID: naming.DefaultCluster, Status: "available"}

	stdout, _, err := runCLI(t, fake,
		"backup", "--target-account", "222222222222", "--dry-run")
	if err != nil {
		t.Fatalf("backup --dry-run failed: %v", err)
	}
	if !strings.Contains(stdout, "would create snapshot") {
		t.Errorf("missing dry-run preview: %q", stdout)
	}
	if len(fake.Snapshots) != 0 {
		t.Errorf("dry run created a snapshot: %v", fake.Ops)
	}
}

func TestBackupCommand_RequiresTargetAccount(t *testing.T) {
	_, _, err := runCLI(t, awsapi.NewFake(), "backup")
	if err == nil || !strings.Contains(err.Error(), "target account") {
		t.Fatalf("expected target-account error, got %v", err)
	}
}

func teardownFake() *awsapi.FakeClient {
	fake := awsapi.NewFake()
	fake.AccountID = "111111111111"
	snapID := naming.SnapshotID(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	fake.Snapshots[snapID] = &awsapi.Snapshot{ID: snapID, ClusterID: naming.DefaultCluster, Status: "available"}
	fake.Clusters[naming.DefaultCluster] = &awsapi.Cluster{ID: naming.DefaultCluster, Status: "available"}
	fake.Stacks[naming.SourceStack] = &awsapi.Stack{Name: naming.SourceStack, Status: "CREATE_COMPLETE"}
	fake.Stacks[naming.TargetStack] = &awsapi.Stack{Name: naming.TargetStack, Status: "CREATE_COMPLETE"}
	return fake
}

func TestTeardownCommand_DryRun(t *testing.T) {
	fake := teardownFake()

	stdout, _, err := runCLI(t, fake, "teardown", "--dry-run")
	if err != nil {
		t.Fatalf("teardown --dry-run failed: %v", err)
	}
	if !strings.Contains(stdout, "will delete:") {
		t.Errorf("missing preview: %q", stdout)
	}
	for _, op := range fake.Ops {
		if strings.HasPrefix(op, "Delete") {
			t.Errorf("dry run deleted something: %s", op)
		}
	}
	if len(fake.Stacks) != 2 || len(fake.Snapshots) != 1 {
		t.Error("dry run mutated state")
	}
}

func TestTeardownCommand_Force(t *testing.T) {
	fake := teardownFake()

	stdout, _, err := runCLI(t, fake,
		"teardown", "--force", "--settle", "0s", "--wait-timeout", "1s")
	if err != nil {
		t.Fatalf("teardown --force failed: %v\n%s", err, stdout)
	}
	if len(fake.Snapshots) != 0 || len(fake.Clusters) != 0 || len(fake.Stacks) != 0 {
		t.Errorf("resources remain: snapshots=%v clusters=%v stacks=%v",
			fake.Snapshots, fake.Clusters, fake.Stacks)
	}
	if !strings.Contains(stdout, "PHASE") {
		t.Errorf("missing summary table: %q", stdout)
	}
}

func TestTeardownCommand_NothingToDo(t *testing.T) {
	stdout, _, err := runCLI(t, awsapi.NewFake(), "teardown", "--force")
	if err != nil {
		t.Fatalf("teardown failed: %v", err)
	}
	if !strings.Contains(stdout, "nothing to tear down") {
		t.Errorf("unexpected output: %q", stdout)
	}
}

func TestRestoreCommand(t *testing.T) {
	fake := awsapi.NewFake()
	snapID := naming.SnapshotID(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	fake.Snapshots[snapID] = &awsapi.Snapshot{
		ID: snapID, ClusterID: naming.DefaultCluster, Status: "available",
		RestoreAccess: []string{"222222222222"},
	}

	stdout, _, err := runCLI(t, fake,
		"restore", "--snapshot", snapID, "--owner-account", "111111111111", "--yes")
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if _, ok := fake.Clusters[naming.RestoredClusterCandidates[0]]; !ok {
		t.Errorf("restored cluster missing: %v", fake.Clusters)
	}
	if !strings.Contains(stdout, snapID) {
		t.Errorf("output misses snapshot id: %q", stdout)
	}
}

func TestListCommand(t *testing.T) {
	fake := awsapi.NewFake()
	snapID := naming.SnapshotID(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	fake.Snapshots[snapID] = &awsapi.Snapshot{
		ID: snapID, ClusterID: naming.DefaultCluster, Status: "available",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	fake.Snapshots["unrelated-snapshot"] = &awsapi.Snapshot{ID: "unrelated-snapshot", Status: "available"}
	fake.Vaults[naming.SourceVault] = []awsapi.RecoveryPoint{
		{ARN: "arn:rp-1", Vault: naming.SourceVault, Status: "COMPLETED"},
	}

	stdout, _, err := runCLI(t, fake, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(stdout, snapID) {
		t.Errorf("snapshot missing from listing: %q", stdout)
	}
	if strings.Contains(stdout, "unrelated-snapshot") {
		t.Errorf("foreign snapshot listed: %q", stdout)
	}
	if !strings.Contains(stdout, "arn:rp-1") {
		t.Errorf("recovery point missing from listing: %q", stdout)
	}
}
