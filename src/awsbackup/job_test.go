package awsbackup_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"redshift-dr/src/awsapi"
	"redshift-dr/src/awsbackup"
	"redshift-dr/src/naming"
	"redshift-dr/src/retrier"
)

const clusterARN = "arn:aws:redshift:eu-west-1:111122223333:cluster:redshift-dr-cluster"
const roleARN = "arn:aws:iam::111122223333:role/redshift-dr-backup-role"

func newRunner(fake *awsapi.FakeClient) *awsbackup.Runner {
	return &awsbackup.Runner{
		Backup: fake,
		Retry:  retrier.Executor{Attempts: 2, Delay: time.Millisecond},
	}
}

func TestRun_CompletesAndRecordsRecoveryPoint(t *testing.T) {
	fake := awsapi.NewFake()
	fake.AccountID = "111122223333"
	fake.Vaults[naming.SourceVault] = nil

	r := newRunner(fake)
	arn, err := r.Run(context.Background(), naming.SourceVault, clusterARN, roleARN, time.Second, time.Millisecond)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(arn, "recovery-point") {
		t.Fatalf("recovery point ARN = %q", arn)
	}

	points, err := r.RecoveryPoints(context.Background(), naming.SourceVault)
	if err != nil {
		t.Fatalf("RecoveryPoints: %v", err)
	}
	if len(points) != 1 || points[0].ARN != arn {
		t.Fatalf("points = %+v", points)
	}
	if points[0].ResourceARN != clusterARN {
		t.Fatalf("resource ARN = %q", points[0].ResourceARN)
	}
}

func TestRun_PollsRunningJobToCompletion(t *testing.T) {
	fake := awsapi.NewFake()
	fake.Vaults[naming.SourceVault] = nil
	fake.JobCompletesAfter = 3

	r := newRunner(fake)
	arn, err := r.Run(context.Background(), naming.SourceVault, clusterARN, roleARN, time.Second, time.Millisecond)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if arn == "" {
		t.Fatalf("empty recovery point ARN")
	}
}

func TestRun_MissingVaultFails(t *testing.T) {
	fake := awsapi.NewFake()
	r := newRunner(fake)
	_, err := r.Run(context.Background(), naming.SourceVault, clusterARN, roleARN, time.Second, time.Millisecond)
	if !awsapi.IsNotFound(err) {
		t.Fatalf("error = %v, want not-found", err)
	}
}
