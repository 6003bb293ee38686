package awsapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/backup"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	redshifttypes "github.com/aws/aws-sdk-go-v2/service/redshift/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
)

// RealClient wraps the AWS SDK clients for one account/credential scope.
type RealClient struct {
	redshift *redshift.Client
	backup   *backup.Client
	cfn      *cloudformation.Client
	sts      *sts.Client
}

// Connect loads shared AWS configuration for the given profile (empty means
// the ambient default chain) and returns a client bound to that account.
func Connect(ctx context.Context, profile, region string) (*RealClient, error) {
	var opts []func(*config.LoadOptions) error
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config (profile %q): %w", profile, err)
	}
	return &RealClient{
		redshift: redshift.NewFromConfig(cfg),
		backup:   backup.NewFromConfig(cfg),
		cfn:      cloudformation.NewFromConfig(cfg),
		sts:      sts.NewFromConfig(cfg),
	}, nil
}

func (r *RealClient) CreateSnapshot(ctx context.Context, snapshotID, clusterID string, tags map[string]string) error {
	in := &redshift.CreateClusterSnapshotInput{
		SnapshotIdentifier: aws.String(snapshotID),
		ClusterIdentifier:  aws.String(clusterID),
	}
	for k, v := range tags {
		in.Tags = append(in.Tags, redshifttypes.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	_, err := r.redshift.CreateClusterSnapshot(ctx, in)
	return mapAPIError("snapshot", snapshotID, err)
}

func (r *RealClient) DescribeSnapshot(ctx context.Context, snapshotID string) (Snapshot, error) {
	out, err := r.redshift.DescribeClusterSnapshots(ctx, &redshift.DescribeClusterSnapshotsInput{
		SnapshotIdentifier: aws.String(snapshotID),
	})
	if err != nil {
		return Snapshot{}, mapAPIError("snapshot", snapshotID, err)
	}
	if len(out.Snapshots) == 0 {
		return Snapshot{}, &NotFoundError{Resource: "snapshot", Name: snapshotID}
	}
	return fromSDKSnapshot(out.Snapshots[0]), nil
}

func (r *RealClient) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	_, err := r.redshift.DeleteClusterSnapshot(ctx, &redshift.DeleteClusterSnapshotInput{
		SnapshotIdentifier: aws.String(snapshotID),
	})
	return mapAPIError("snapshot", snapshotID, err)
}

func (r *RealClient) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	var snaps []Snapshot
	in := &redshift.DescribeClusterSnapshotsInput{SnapshotType: aws.String("manual")}
	for {
		out, err := r.redshift.DescribeClusterSnapshots(ctx, in)
		if err != nil {
			return nil, mapAPIError("snapshot", "", err)
		}
		for _, s := range out.Snapshots {
			snaps = append(snaps, fromSDKSnapshot(s))
		}
		if out.Marker == nil || *out.Marker == "" {
			return snaps, nil
		}
		in.Marker = out.Marker
	}
}

func (r *RealClient) AuthorizeSnapshotAccess(ctx context.Context, snapshotID, account string) error {
	_, err := r.redshift.AuthorizeSnapshotAccess(ctx, &redshift.AuthorizeSnapshotAccessInput{
		SnapshotIdentifier:       aws.String(snapshotID),
		AccountWithRestoreAccess: aws.String(account),
	})
	return mapAPIError("snapshot authorization", snapshotID, err)
}

func (r *RealClient) RevokeSnapshotAccess(ctx context.Context, snapshotID, account string) error {
	_, err := r.redshift.RevokeSnapshotAccess(ctx, &redshift.RevokeSnapshotAccessInput{
		SnapshotIdentifier:       aws.String(snapshotID),
		AccountWithRestoreAccess: aws.String(account),
	})
	return mapAPIError("snapshot authorization", snapshotID, err)
}

func (r *RealClient) CopySnapshot(ctx context.Context, sourceID, sourceOwner, sourceCluster, targetID string) error {
	// Cross-account sources are addressed as <owner-account>:<snapshot-id>.
	src := sourceID
	if sourceOwner != "" {
		src = sourceOwner + ":" + sourceID
	}
	_, err := r.redshift.CopyClusterSnapshot(ctx, &redshift.CopyClusterSnapshotInput{
		SourceSnapshotIdentifier:        aws.String(src),
		SourceSnapshotClusterIdentifier: aws.String(sourceCluster),
		TargetSnapshotIdentifier:        aws.String(targetID),
	})
	return mapAPIError("snapshot", targetID, err)
}

func (r *RealClient) RestoreClusterFromSnapshot(ctx context.Context, clusterID, snapshotID, ownerAccount, subnetGroup string) error {
	in := &redshift.RestoreFromClusterSnapshotInput{
		ClusterIdentifier:  aws.String(clusterID),
		SnapshotIdentifier: aws.String(snapshotID),
		PubliclyAccessible: aws.Bool(false),
	}
	if ownerAccount != "" {
		in.OwnerAccount = aws.String(ownerAccount)
	}
	if subnetGroup != "" {
		in.ClusterSubnetGroupName = aws.String(subnetGroup)
	}
	_, err := r.redshift.RestoreFromClusterSnapshot(ctx, in)
	return mapAPIError("cluster", clusterID, err)
}

func (r *RealClient) DescribeCluster(ctx context.Context, clusterID string) (Cluster, error) {
	out, err := r.redshift.DescribeClusters(ctx, &redshift.DescribeClustersInput{
		ClusterIdentifier: aws.String(clusterID),
	})
	if err != nil {
		return Cluster{}, mapAPIError("cluster", clusterID, err)
	}
	if len(out.Clusters) == 0 {
		return Cluster{}, &NotFoundError{Resource: "cluster", Name: clusterID}
	}
	c := out.Clusters[0]
	return Cluster{ID: aws.ToString(c.ClusterIdentifier), Status: aws.ToString(c.ClusterStatus)}, nil
}

func (r *RealClient) DeleteCluster(ctx context.Context, clusterID string) error {
	_, err := r.redshift.DeleteCluster(ctx, &redshift.DeleteClusterInput{
		ClusterIdentifier:        aws.String(clusterID),
		SkipFinalClusterSnapshot: aws.Bool(true),
	})
	return mapAPIError("cluster", clusterID, err)
}

func (r *RealClient) ListClusters(ctx context.Context) ([]Cluster, error) {
	var clusters []Cluster
	in := &redshift.DescribeClustersInput{}
	for {
		out, err := r.redshift.DescribeClusters(ctx, in)
		if err != nil {
			return nil, mapAPIError("cluster", "", err)
		}
		for _, c := range out.Clusters {
			clusters = append(clusters, Cluster{
				ID:     aws.ToString(c.ClusterIdentifier),
				Status: aws.ToString(c.ClusterStatus),
			})
		}
		if out.Marker == nil || *out.Marker == "" {
			return clusters, nil
		}
		in.Marker = out.Marker
	}
}

func (r *RealClient) StartBackupJob(ctx context.Context, vault, resourceARN, roleARN string) (string, error) {
	out, err := r.backup.StartBackupJob(ctx, &backup.StartBackupJobInput{
		BackupVaultName:  aws.String(vault),
		ResourceArn:      aws.String(resourceARN),
		IamRoleArn:       aws.String(roleARN),
		IdempotencyToken: aws.String(fmt.Sprintf("%d", time.Now().UnixNano())),
	})
	if err != nil {
		return "", mapAPIError("backup job", resourceARN, err)
	}
	return aws.ToString(out.BackupJobId), nil
}

func (r *RealClient) DescribeBackupJob(ctx context.Context, jobID string) (BackupJob, error) {
	out, err := r.backup.DescribeBackupJob(ctx, &backup.DescribeBackupJobInput{
		BackupJobId: aws.String(jobID),
	})
	if err != nil {
		return BackupJob{}, mapAPIError("backup job", jobID, err)
	}
	return BackupJob{
		ID:               jobID,
		State:            string(out.State),
		RecoveryPointARN: aws.ToString(out.RecoveryPointArn),
	}, nil
}

func (r *RealClient) ListRecoveryPoints(ctx context.Context, vault string) ([]RecoveryPoint, error) {
	var points []RecoveryPoint
	in := &backup.ListRecoveryPointsByBackupVaultInput{BackupVaultName: aws.String(vault)}
	for {
		out, err := r.backup.ListRecoveryPointsByBackupVault(ctx, in)
		if err != nil {
			return nil, mapAPIError("backup vault", vault, err)
		}
		for _, rp := range out.RecoveryPoints {
			points = append(points, RecoveryPoint{
				ARN:         aws.ToString(rp.RecoveryPointArn),
				Vault:       vault,
				ResourceARN: aws.ToString(rp.ResourceArn),
				Status:      string(rp.Status),
				CreatedAt:   aws.ToTime(rp.CreationDate),
			})
		}
		if out.NextToken == nil || *out.NextToken == "" {
			return points, nil
		}
		in.NextToken = out.NextToken
	}
}

func (r *RealClient) DeleteRecoveryPoint(ctx context.Context, vault, arn string) error {
	_, err := r.backup.DeleteRecoveryPoint(ctx, &backup.DeleteRecoveryPointInput{
		BackupVaultName:  aws.String(vault),
		RecoveryPointArn: aws.String(arn),
	})
	return mapAPIError("recovery point", arn, err)
}

func (r *RealClient) ListBackupPlans(ctx context.Context) ([]BackupPlan, error) {
	var plans []BackupPlan
	in := &backup.ListBackupPlansInput{}
	for {
		out, err := r.backup.ListBackupPlans(ctx, in)
		if err != nil {
			return nil, mapAPIError("backup plan", "", err)
		}
		for _, p := range out.BackupPlansList {
			plans = append(plans, BackupPlan{
				ID:   aws.ToString(p.BackupPlanId),
				Name: aws.ToString(p.BackupPlanName),
			})
		}
		if out.NextToken == nil || *out.NextToken == "" {
			return plans, nil
		}
		in.NextToken = out.NextToken
	}
}

func (r *RealClient) ListBackupSelections(ctx context.Context, planID string) ([]BackupSelection, error) {
	var sels []BackupSelection
	in := &backup.ListBackupSelectionsInput{BackupPlanId: aws.String(planID)}
	for {
		out, err := r.backup.ListBackupSelections(ctx, in)
		if err != nil {
			return nil, mapAPIError("backup plan", planID, err)
		}
		for _, s := range out.BackupSelectionsList {
			sels = append(sels, BackupSelection{
				ID:     aws.ToString(s.SelectionId),
				Name:   aws.ToString(s.SelectionName),
				PlanID: planID,
			})
		}
		if out.NextToken == nil || *out.NextToken == "" {
			return sels, nil
		}
		in.NextToken = out.NextToken
	}
}

func (r *RealClient) DeleteBackupSelection(ctx context.Context, planID, selectionID string) error {
	_, err := r.backup.DeleteBackupSelection(ctx, &backup.DeleteBackupSelectionInput{
		BackupPlanId: aws.String(planID),
		SelectionId:  aws.String(selectionID),
	})
	return mapAPIError("backup selection", selectionID, err)
}

func (r *RealClient) DeleteBackupPlan(ctx context.Context, planID string) error {
	_, err := r.backup.DeleteBackupPlan(ctx, &backup.DeleteBackupPlanInput{
		BackupPlanId: aws.String(planID),
	})
	return mapAPIError("backup plan", planID, err)
}

func (r *RealClient) DeleteBackupVault(ctx context.Context, vault string) error {
	_, err := r.backup.DeleteBackupVault(ctx, &backup.DeleteBackupVaultInput{
		BackupVaultName: aws.String(vault),
	})
	return mapAPIError("backup vault", vault, err)
}

func (r *RealClient) DescribeStack(ctx context.Context, name string) (Stack, error) {
	out, err := r.cfn.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(name),
	})
	if err != nil {
		return Stack{}, mapAPIError("stack", name, err)
	}
	if len(out.Stacks) == 0 {
		return Stack{}, &NotFoundError{Resource: "stack", Name: name}
	}
	s := out.Stacks[0]
	return Stack{Name: aws.ToString(s.StackName), Status: string(s.StackStatus)}, nil
}

func (r *RealClient) DeleteStack(ctx context.Context, name string) error {
	_, err := r.cfn.DeleteStack(ctx, &cloudformation.DeleteStackInput{
		StackName: aws.String(name),
	})
	return mapAPIError("stack", name, err)
}

func (r *RealClient) CallerAccount(ctx context.Context) (string, error) {
	out, err := r.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.Account), nil
}

func fromSDKSnapshot(s redshifttypes.Snapshot) Snapshot {
	snap := Snapshot{
		ID:           aws.ToString(s.SnapshotIdentifier),
		ClusterID:    aws.ToString(s.ClusterIdentifier),
		Status:       aws.ToString(s.Status),
		CreatedAt:    aws.ToTime(s.SnapshotCreateTime),
		OwnerAccount: aws.ToString(s.OwnerAccount),
	}
	for _, a := range s.AccountsWithRestoreAccess {
		snap.RestoreAccess = append(snap.RestoreAccess, aws.ToString(a.AccountId))
	}
	return snap
}

// mapAPIError folds provider error codes into the local taxonomy. Unknown
// errors pass through unchanged.
func mapAPIError(resource, name string, err error) error {
	if err == nil {
		return nil
	}
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return err
	}
	code := ae.ErrorCode()
	switch {
	case strings.Contains(code, "NotFound"),
		code == "ResourceNotFoundException":
		return &NotFoundError{Resource: resource, Name: name}
	case strings.Contains(code, "AlreadyExists"):
		return &ConflictError{Resource: resource, Name: name}
	case code == "Throttling", code == "ThrottlingException",
		code == "RequestLimitExceeded", code == "TooManyRequestsException":
		return &TransientError{Op: resource, Err: err}
	case code == "ValidationError" && strings.Contains(ae.ErrorMessage(), "does not exist"):
		// CloudFormation reports a missing stack this way.
		return &NotFoundError{Resource: resource, Name: name}
	}
	return err
}
