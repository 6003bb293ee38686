package teardown

import (
	"context"
	"fmt"

	"redshift-dr/src/awsapi"
	"redshift-dr/src/naming"
)

// Plan lists what Run would delete, without mutating anything. Lines are
// ready to print; discovery errors become lines too so a broken listing
// does not hide the rest of the preview.
func (e *Engine) Plan(ctx context.Context) []string {
	var lines []string
	for _, id := range naming.RestoredClusterCandidates {
		if _, err := e.Target.DescribeCluster(ctx, id); err == nil {
			lines = append(lines, fmt.Sprintf("restored cluster %s", id))
		}
	}
	lines = append(lines, e.planSnapshots(ctx, "source", e.Source)...)
	if e.Target != e.Source {
		lines = append(lines, e.planSnapshots(ctx, "target", e.Target)...)
	}
	lines = append(lines, e.planVault(ctx, "source", e.Source, naming.SourceVault)...)
	lines = append(lines, e.planVault(ctx, "target", e.Target, naming.TargetVault)...)
	if plans, err := e.Source.ListBackupPlans(ctx); err == nil {
		for _, p := range plans {
			if naming.IsProjectPlan(p.Name) {
				lines = append(lines, fmt.Sprintf("backup plan %s", p.Name))
			}
		}
	} else {
		lines = append(lines, fmt.Sprintf("backup plans: %v", err))
	}
	if _, err := e.Source.DescribeCluster(ctx, naming.DefaultCluster); err == nil {
		lines = append(lines, fmt.Sprintf("cluster %s", naming.DefaultCluster))
	}
	if _, err := e.Target.DescribeStack(ctx, naming.TargetStack); err == nil {
		lines = append(lines, fmt.Sprintf("target stack %s", naming.TargetStack))
	}
	if _, err := e.Source.DescribeStack(ctx, naming.SourceStack); err == nil {
		lines = append(lines, fmt.Sprintf("source stack %s", naming.SourceStack))
	}
	return lines
}

func (e *Engine) planSnapshots(ctx context.Context, label string, client awsapi.Client) []string {
	snaps, err := client.ListSnapshots(ctx)
	if err != nil {
		return []string{fmt.Sprintf("%s snapshots: %v", label, err)}
	}
	var lines []string
	for _, s := range snaps {
		if naming.IsProjectSnapshot(s.ID) {
			lines = append(lines, fmt.Sprintf("%s snapshot %s", label, s.ID))
		}
	}
	return lines
}

func (e *Engine) planVault(ctx context.Context, label string, client awsapi.Client, vault string) []string {
	points, err := client.ListRecoveryPoints(ctx, vault)
	if awsapi.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return []string{fmt.Sprintf("%s vault %s: %v", label, vault, err)}
	}
	return []string{fmt.Sprintf("%s vault %s (%d recovery point(s))", label, vault, len(points))}
}
