package teardown

import (
	"context"
	"strings"
	"testing"
	"time"

	"redshift-dr/src/awsapi"
	"redshift-dr/src/naming"
	"redshift-dr/src/retrier"
)

func testEngine(fake *awsapi.FakeClient) *Engine {
	return &Engine{
		Source:        fake,
		Target:        fake,
		TargetAccount: "222222222222",
		Retry:         retrier.Executor{Attempts: 2, Delay: time.Millisecond},
		PollInterval:  time.Millisecond,
		WaitTimeout:   time.Second,
	}
}

// populatedFake builds a fake holding every resource the pipeline creates.
func populatedFake(t *testing.T) (*awsapi.FakeClient, string) {
	t.Helper()
	fake := awsapi.NewFake()
	fake.AccountID = "111111111111"
	snapID := naming.SnapshotID(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	fake.Snapshots[snapID] = &awsapi.Snapshot{
		ID:            snapID,
		ClusterID:     naming.DefaultCluster,
		Status:        "available",
		CreatedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		RestoreAccess: []string{"222222222222"},
	}
	fake.Clusters[naming.DefaultCluster] = &awsapi.Cluster{ID: naming.DefaultCluster, Status: "available"}
	fake.Clusters[naming.RestoredClusterCandidates[0]] = &awsapi.Cluster{
		ID: naming.RestoredClusterCandidates[0], Status: "available",
	}
	fake.Vaults[naming.SourceVault] = []awsapi.RecoveryPoint{
		{ARN: "arn:rp-source-1", Vault: naming.SourceVault, Status: "COMPLETED"},
	}
	fake.Vaults[naming.TargetVault] = []awsapi.RecoveryPoint{
		{ARN: "arn:rp-target-1", Vault: naming.TargetVault, Status: "COMPLETED"},
	}
	fake.Plans = []awsapi.BackupPlan{{ID: "plan-1", Name: naming.PlanPrefix}}
	fake.Selections["plan-1"] = []awsapi.BackupSelection{{ID: "sel-1", Name: "cluster-selection", PlanID: "plan-1"}}
	fake.Stacks[naming.SourceStack] = &awsapi.Stack{Name: naming.SourceStack, Status: "CREATE_COMPLETE"}
	fake.Stacks[naming.TargetStack] = &awsapi.Stack{Name: naming.TargetStack, Status: "CREATE_COMPLETE"}
	return fake, snapID
}

func TestRun_RemovesEverything(t *testing.T) {
	fake, _ := populatedFake(t)
	engine := testEngine(fake)

	summary := engine.Run(context.Background())

	if !summary.Clean() {
		t.Fatalf("expected a clean summary, got %+v", summary)
	}
	if len(fake.Snapshots) != 0 {
		t.Errorf("snapshots remain: %v", fake.Snapshots)
	}
	if len(fake.Clusters) != 0 {
		t.Errorf("clusters remain: %v", fake.Clusters)
	}
	if len(fake.Vaults) != 0 {
		t.Errorf("vaults remain: %v", fake.Vaults)
	}
	if len(fake.Plans) != 0 {
		t.Errorf("plans remain: %v", fake.Plans)
	}
	if len(fake.Stacks) != 0 {
		t.Errorf("stacks remain: %v", fake.Stacks)
	}
}

func TestRun_OrderingInvariants(t *testing.T) {
	fake, snapID := populatedFake(t)
	fake.StackDeletePolls[naming.TargetStack] = 2
	engine := testEngine(fake)

	engine.Run(context.Background())

	mustIndex := func(op string) int {
		t.Helper()
		i := fake.OpIndex(op)
		if i < 0 {
			t.Fatalf("op %s never happened; ops: %v", op, fake.Ops)
		}
		return i
	}

	restoredDel := mustIndex("DeleteCluster:" + naming.RestoredClusterCandidates[0])
	snapDel := mustIndex("DeleteSnapshot:" + snapID)
	rpDel := mustIndex("DeleteRecoveryPoint:arn:rp-source-1")
	if restoredDel > snapDel {
		t.Errorf("restored cluster deleted after snapshot: %v", fake.Ops)
	}
	if restoredDel > rpDel {
		t.Errorf("restored cluster deleted after recovery point: %v", fake.Ops)
	}

	revoke := mustIndex("RevokeSnapshotAccess:" + snapID)
	if revoke > snapDel {
		t.Errorf("snapshot deleted before access was revoked: %v", fake.Ops)
	}

	selDel := mustIndex("DeleteBackupSelection:sel-1")
	planDel := mustIndex("DeleteBackupPlan:plan-1")
	if selDel > planDel {
		t.Errorf("plan deleted before its selection: %v", fake.Ops)
	}

	vaultDel := mustIndex("DeleteBackupVault:" + naming.SourceVault)
	if fake.LastOpIndex("DeleteRecoveryPoint:arn:rp-source-1") > vaultDel {
		t.Errorf("vault deleted before its recovery points: %v", fake.Ops)
	}

	clusterDel := mustIndex("DeleteCluster:" + naming.DefaultCluster)
	sourceStackDel := mustIndex("DeleteStack:" + naming.SourceStack)
	targetStackDel := mustIndex("DeleteStack:" + naming.TargetStack)
	if clusterDel > sourceStackDel {
		t.Errorf("source stack deleted before the primary cluster: %v", fake.Ops)
	}
	if targetStackDel > sourceStackDel {
		t.Errorf("source stack deleted before the target stack: %v", fake.Ops)
	}

	// the source stack must not go down until the target stack deletion
	// was observed to finish
	describes := 0
	for _, op := range fake.Ops[targetStackDel:sourceStackDel] {
		if op == "DescribeStack:"+naming.TargetStack {
			describes++
		}
	}
	if describes < 3 {
		t.Errorf("source stack deleted before target stack was confirmed gone (%d describes): %v", describes, fake.Ops)
	}
}

func TestRun_NothingToDelete(t *testing.T) {
	fake := awsapi.NewFake()
	engine := testEngine(fake)

	summary := engine.Run(context.Background())

	if !summary.Clean() {
		t.Fatalf("expected a clean summary on an empty account, got %+v", summary)
	}
	for _, op := range fake.Ops {
		if strings.HasPrefix(op, "DeleteSnapshot:") ||
			strings.HasPrefix(op, "DeleteRecoveryPoint:") ||
			strings.HasPrefix(op, "DeleteBackupPlan:") {
			t.Errorf("unexpected deletion on empty account: %s", op)
		}
	}
	skipped := 0
	for _, r := range summary.Results {
		if r.Outcome == Skipped {
			skipped++
		}
	}
	if skipped == 0 {
		t.Error("expected skipped phase results on an empty account")
	}
}

func TestRun_LockedRecoveryPointWarnsButContinues(t *testing.T) {
	fake, _ := populatedFake(t)
	fake.LockedRecoveryPoints["arn:rp-source-1"] = true
	engine := testEngine(fake)

	summary := engine.Run(context.Background())

	if summary.Clean() {
		t.Fatal("expected warnings for the locked recovery point")
	}
	warned := false
	for _, r := range summary.Results {
		if r.Phase == "recovery points" && r.Outcome == Warning {
			warned = true
		}
	}
	if !warned {
		t.Errorf("no recovery point warning in %+v", summary.Results)
	}
	// later phases still ran
	if len(fake.Plans) != 0 {
		t.Errorf("plans not deleted after vault warning: %v", fake.Plans)
	}
	if len(fake.Stacks) != 0 {
		t.Errorf("stacks not deleted after vault warning: %v", fake.Stacks)
	}
	// the source vault itself could not be deleted and must survive
	if _, ok := fake.Vaults[naming.SourceVault]; !ok {
		t.Error("non-empty source vault was deleted")
	}
}

func TestRun_StuckClusterBecomesLeftover(t *testing.T) {
	fake := awsapi.NewFake()
	fake.Clusters[naming.DefaultCluster] = &awsapi.Cluster{ID: naming.DefaultCluster, Status: "available"}
	fake.ClusterDeletePolls[naming.DefaultCluster] = 1 << 30
	engine := testEngine(fake)
	engine.WaitTimeout = 5 * time.Millisecond

	summary := engine.Run(context.Background())

	if summary.Clean() {
		t.Fatal("expected follow-up for the stuck cluster")
	}
	found := false
	for _, l := range summary.Leftovers {
		if strings.Contains(l, naming.DefaultCluster) {
			found = true
		}
	}
	if !found {
		t.Errorf("stuck cluster not listed as leftover: %v", summary.Leftovers)
	}
}

func TestPlan_ListsWithoutMutating(t *testing.T) {
	fake, snapID := populatedFake(t)
	engine := testEngine(fake)

	lines := engine.Plan(context.Background())

	joined := strings.Join(lines, "\n")
	for _, want := range []string{
		naming.RestoredClusterCandidates[0],
		snapID,
		naming.SourceVault,
		naming.TargetVault,
		naming.PlanPrefix,
		naming.DefaultCluster,
		naming.SourceStack,
		naming.TargetStack,
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("plan misses %s:\n%s", want, joined)
		}
	}
	for _, op := range fake.Ops {
		if strings.HasPrefix(op, "Delete") || strings.HasPrefix(op, "Revoke") {
			t.Errorf("plan mutated state: %s", op)
		}
	}
	if len(fake.Snapshots) != 1 || len(fake.Stacks) != 2 {
		t.Error("plan changed fake state")
	}
}
