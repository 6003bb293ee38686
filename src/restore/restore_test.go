package restore_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"redshift-dr/src/awsapi"
	"redshift-dr/src/restore"
	"redshift-dr/src/retrier"
)

func newRestorer(fake *awsapi.FakeClient) *restore.Restorer {
	return &restore.Restorer{
		Client: fake,
		Retry:  retrier.Executor{Attempts: 2, Delay: time.Millisecond},
	}
}

func baseOptions() restore.Options {
	return restore.Options{
		SnapshotID:    "redshift-dr-snapshot-20260101-000000",
		ClusterID:     "redshift-dr-restored-cluster",
		SourceAccount: "111122223333",
		SourceCluster: "redshift-dr-cluster",
		SubnetGroup:   "redshift-dr-target-subnets",
	}
}

func TestRun_RestoresFromSharedSnapshot(t *testing.T) {
	fake := awsapi.NewFake()
	r := newRestorer(fake)

	used, err := r.Run(context.Background(), baseOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if used != "redshift-dr-snapshot-20260101-000000" {
		t.Fatalf("restored from %q", used)
	}
	if _, ok := fake.Clusters["redshift-dr-restored-cluster"]; !ok {
		t.Fatalf("restored cluster not created")
	}
}

func TestRun_CopyFirstRestoresFromCopy(t *testing.T) {
	fake := awsapi.NewFake()
	fake.AccountID = "999900001111"
	r := newRestorer(fake)

	opts := baseOptions()
	opts.CopyFirst = true
	used, err := r.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(used, "copied-redshift-dr-snapshot-") {
		t.Fatalf("restored from %q, want a copied-* snapshot", used)
	}
	if _, ok := fake.Snapshots[used]; !ok {
		t.Fatalf("copy %q not present in target account", used)
	}
}

func TestRun_ExistingClusterFails(t *testing.T) {
	fake := awsapi.NewFake()
	fake.Clusters["redshift-dr-restored-cluster"] = &awsapi.Cluster{ID: "redshift-dr-restored-cluster", Status: "available"}
	r := newRestorer(fake)

	if _, err := r.Run(context.Background(), baseOptions()); !awsapi.IsConflict(err) {
		t.Fatalf("error = %v, want conflict", err)
	}
}
