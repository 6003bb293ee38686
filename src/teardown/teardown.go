// Package teardown deletes everything the backup pipeline created, in
// dependency order, across both accounts. Every phase is best-effort: a
// failed phase becomes a warning and the engine moves on, because the goal
// is maximal cleanup under partial provider state, not atomic removal. The
// engine keeps no inventory; it rediscovers resources by listing and
// matching the fixed naming conventions.
package teardown

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/clock"

	"redshift-dr/src/awsapi"
	"redshift-dr/src/naming"
	"redshift-dr/src/retrier"
)

const (
	DefaultSettle       = 30 * time.Second
	DefaultPollInterval = 15 * time.Second
	DefaultWaitTimeout  = 30 * time.Minute
)

// Outcome tags how a phase (or a step within one) ended.
type Outcome string

const (
	OK      Outcome = "ok"
	Skipped Outcome = "skipped"
	Warning Outcome = "warning"
)

// PhaseResult is one line of the final summary.
type PhaseResult struct {
	Phase   string
	Outcome Outcome
	Detail  string
}

// Summary is the run's outcome: phase results plus anything the final
// verification pass still found.
type Summary struct {
	Results   []PhaseResult
	Leftovers []string
}

// Clean reports whether no manual follow-up is required.
func (s Summary) Clean() bool {
	if len(s.Leftovers) > 0 {
		return false
	}
	for _, r := range s.Results {
		if r.Outcome == Warning {
			return false
		}
	}
	return true
}

// Engine tears down both accounts. Source and Target may be the same
// client when both boundaries share credentials (tests do this).
type Engine struct {
	Source        awsapi.Client
	Target        awsapi.Client
	TargetAccount string // account whose snapshot access is revoked
	Retry         retrier.Executor
	Clock         clock.Clock
	Report        func(format string, args ...any)

	// Settle is slept after issuing asynchronous deletions; zero skips
	// the sleep (tests).
	Settle       time.Duration
	PollInterval time.Duration
	WaitTimeout  time.Duration
}

func (e *Engine) report(format string, args ...any) {
	if e.Report != nil {
		e.Report(format, args...)
	}
}

func (e *Engine) clock() clock.Clock {
	if e.Clock != nil {
		return e.Clock
	}
	return clock.WallClock
}

func (e *Engine) pollInterval() time.Duration {
	if e.PollInterval > 0 {
		return e.PollInterval
	}
	return DefaultPollInterval
}

func (e *Engine) waitTimeout() time.Duration {
	if e.WaitTimeout > 0 {
		return e.WaitTimeout
	}
	return DefaultWaitTimeout
}

// Run executes all phases in order and never returns early; the summary
// carries everything that needs manual follow-up.
func (e *Engine) Run(ctx context.Context) Summary {
	var s Summary
	e.report("phase 1/8: delete restored clusters")
	e.deleteRestoredClusters(ctx, &s)
	e.report("phase 2/8: revoke access and delete snapshots")
	e.deleteSnapshots(ctx, &s)
	e.report("phase 3/8: delete recovery points")
	e.deleteRecoveryPoints(ctx, &s)
	e.report("phase 4/8: delete backup selections and plans")
	e.deleteBackupPlans(ctx, &s)
	e.report("phase 5/8: delete backup vaults")
	e.deleteVaults(ctx, &s)
	e.report("phase 6/8: wait for primary cluster deletion")
	e.deletePrimaryCluster(ctx, &s)
	e.report("phase 7/8: delete stacks (target first)")
	e.deleteStacks(ctx, &s)
	e.report("phase 8/8: verify")
	e.verify(ctx, &s)
	return s
}

func (e *Engine) add(s *Summary, phase string, outcome Outcome, format string, args ...any) {
	detail := fmt.Sprintf(format, args...)
	s.Results = append(s.Results, PhaseResult{Phase: phase, Outcome: outcome, Detail: detail})
	switch outcome {
	case Warning:
		e.report("  warning: %s", detail)
	default:
		e.report("  %s", detail)
	}
}

func (e *Engine) settle(ctx context.Context) {
	if e.Settle <= 0 {
		return
	}
	e.report("  settling for %s", e.Settle)
	select {
	case <-e.clock().After(e.Settle):
	case <-ctx.Done():
	}
}

// Phase 1. Restored clusters live in the target account and must go before
// any snapshot: a snapshot backing a live restore cannot be deleted.
// Deletion is asynchronous; we only issue it here and settle.
func (e *Engine) deleteRestoredClusters(ctx context.Context, s *Summary) {
	const phase = "restored clusters"
	issued := 0
	for _, id := range naming.RestoredClusterCandidates {
		id := id
		err := e.Retry.Run("delete restored cluster", func() error {
			return e.Target.DeleteCluster(ctx, id)
		})
		switch {
		case err == nil:
			issued++
			e.add(s, phase, OK, "deletion of %s issued", id)
		case awsapi.IsNotFound(err):
			e.add(s, phase, Skipped, "%s not found", id)
		default:
			e.add(s, phase, Warning, "could not delete %s: %v", id, err)
		}
	}
	if issued > 0 {
		e.settle(ctx)
	}
}

// Phase 2. Revoke before delete: a still-shared snapshot can be rejected
// for deletion. A revoke failure is swallowed — during cleanup the grant
// is often already gone.
func (e *Engine) deleteSnapshots(ctx context.Context, s *Summary) {
	const phase = "snapshots"
	e.deleteAccountSnapshots(ctx, s, phase, e.Source, true)
	if e.Target != e.Source {
		// target-side copies carry the copied- prefix and were never shared
		e.deleteAccountSnapshots(ctx, s, phase, e.Target, false)
	}
}

func (e *Engine) deleteAccountSnapshots(ctx context.Context, s *Summary, phase string, client awsapi.Client, revoke bool) {
	var snaps []awsapi.Snapshot
	err := e.Retry.Run("list snapshots", func() error {
		var listErr error
		snaps, listErr = client.ListSnapshots(ctx)
		return listErr
	})
	if err != nil {
		e.add(s, phase, Warning, "could not list snapshots: %v", err)
		return
	}
	deleted, skipped := 0, 0
	for _, snap := range snaps {
		if !naming.IsProjectSnapshot(snap.ID) {
			continue
		}
		if revoke && e.TargetAccount != "" {
			err := e.Retry.Run("revoke snapshot access", func() error {
				return client.RevokeSnapshotAccess(ctx, snap.ID, e.TargetAccount)
			})
			if err != nil && !awsapi.IsNotFound(err) {
				e.report("  revoke on %s failed (ignored): %v", snap.ID, err)
			}
		}
		snapID := snap.ID
		err := e.Retry.Run("delete snapshot", func() error {
			return client.DeleteSnapshot(ctx, snapID)
		})
		switch {
		case err == nil:
			deleted++
		case awsapi.IsNotFound(err):
			skipped++
		default:
			e.add(s, phase, Warning, "could not delete snapshot %s: %v", snapID, err)
		}
	}
	outcome := OK
	if deleted == 0 && skipped == 0 {
		outcome = Skipped
	}
	e.add(s, phase, outcome, "deleted %d snapshot(s), %d already gone", deleted, skipped)
}

// Phase 3. Vaults cannot be deleted while non-empty, so their recovery
// points go first: source vault, then target vault, then settle.
func (e *Engine) deleteRecoveryPoints(ctx context.Context, s *Summary) {
	const phase = "recovery points"
	issued := 0
	issued += e.emptyVault(ctx, s, phase, e.Source, naming.SourceVault)
	issued += e.emptyVault(ctx, s, phase, e.Target, naming.TargetVault)
	if issued > 0 {
		e.settle(ctx)
	}
}

func (e *Engine) emptyVault(ctx context.Context, s *Summary, phase string, client awsapi.Client, vault string) int {
	var points []awsapi.RecoveryPoint
	err := e.Retry.Run("list recovery points", func() error {
		var listErr error
		points, listErr = client.ListRecoveryPoints(ctx, vault)
		return listErr
	})
	switch {
	case awsapi.IsNotFound(err):
		e.add(s, phase, Skipped, "vault %s not found", vault)
		return 0
	case err != nil:
		e.add(s, phase, Warning, "could not list %s: %v", vault, err)
		return 0
	}
	deleted := 0
	for _, rp := range points {
		arn := rp.ARN
		err := e.Retry.Run("delete recovery point", func() error {
			return client.DeleteRecoveryPoint(ctx, vault, arn)
		})
		switch {
		case err == nil, awsapi.IsNotFound(err):
			deleted++
		default:
			e.add(s, phase, Warning, "could not delete recovery point %s in %s: %v", arn, vault, err)
		}
	}
	e.add(s, phase, OK, "deleted %d recovery point(s) from %s", deleted, vault)
	return deleted
}

// Phase 4. Selections before plans: a plan cannot be deleted while it owns
// selections. Plans exist in the source account only.
func (e *Engine) deleteBackupPlans(ctx context.Context, s *Summary) {
	const phase = "backup plans"
	var plans []awsapi.BackupPlan
	err := e.Retry.Run("list backup plans", func() error {
		var listErr error
		plans, listErr = e.Source.ListBackupPlans(ctx)
		return listErr
	})
	if err != nil {
		e.add(s, phase, Warning, "could not list backup plans: %v", err)
		return
	}
	matched := 0
	for _, plan := range plans {
		if !naming.IsProjectPlan(plan.Name) {
			continue
		}
		matched++
		planID := plan.ID
		var sels []awsapi.BackupSelection
		err := e.Retry.Run("list backup selections", func() error {
			var listErr error
			sels, listErr = e.Source.ListBackupSelections(ctx, planID)
			return listErr
		})
		if err != nil && !awsapi.IsNotFound(err) {
			e.add(s, phase, Warning, "could not list selections of %s: %v", plan.Name, err)
			continue
		}
		for _, sel := range sels {
			selID := sel.ID
			err := e.Retry.Run("delete backup selection", func() error {
				return e.Source.DeleteBackupSelection(ctx, planID, selID)
			})
			if err != nil && !awsapi.IsNotFound(err) {
				e.add(s, phase, Warning, "could not delete selection %s of %s: %v", selID, plan.Name, err)
			}
		}
		err = e.Retry.Run("delete backup plan", func() error {
			return e.Source.DeleteBackupPlan(ctx, planID)
		})
		switch {
		case err == nil, awsapi.IsNotFound(err):
			e.add(s, phase, OK, "deleted plan %s", plan.Name)
		default:
			e.add(s, phase, Warning, "could not delete plan %s: %v", plan.Name, err)
		}
	}
	if matched == 0 {
		e.add(s, phase, Skipped, "no project backup plans found")
	}
}

// Phase 5. Vault deletion is expected to fail harmlessly when an earlier
// asynchronous recovery-point deletion has not landed yet.
func (e *Engine) deleteVaults(ctx context.Context, s *Summary) {
	const phase = "backup vaults"
	e.settle(ctx)
	for _, v := range []struct {
		client awsapi.Client
		name   string
	}{
		{e.Source, naming.SourceVault},
		{e.Target, naming.TargetVault},
	} {
		client, name := v.client, v.name
		err := e.Retry.Run("delete backup vault", func() error {
			return client.DeleteBackupVault(ctx, name)
		})
		switch {
		case err == nil:
			e.add(s, phase, OK, "deleted vault %s", name)
		case awsapi.IsNotFound(err):
			e.add(s, phase, Skipped, "vault %s not found", name)
		default:
			e.add(s, phase, Warning, "could not delete vault %s (may still be emptying): %v", name, err)
		}
	}
}

// Phase 6. The one blocking phase: stack deletion requires the primary
// cluster to be fully gone, so this waits for the terminal state instead
// of settling.
func (e *Engine) deletePrimaryCluster(ctx context.Context, s *Summary) {
	const phase = "primary cluster"
	id := naming.DefaultCluster
	_, err := e.Source.DescribeCluster(ctx, id)
	if awsapi.IsNotFound(err) {
		e.add(s, phase, Skipped, "cluster %s not found", id)
		return
	}
	err = e.Retry.Run("delete primary cluster", func() error {
		return e.Source.DeleteCluster(ctx, id)
	})
	if err != nil && !awsapi.IsNotFound(err) {
		e.add(s, phase, Warning, "could not delete cluster %s: %v", id, err)
		return
	}
	if err := e.waitClusterGone(ctx, e.Source, id); err != nil {
		e.add(s, phase, Warning, "cluster %s deletion not confirmed: %v", id, err)
		return
	}
	e.add(s, phase, OK, "cluster %s deletion confirmed", id)
}

// Phase 7. Target stack first: it has fewer dependents. The source stack
// owns the cluster and backup roles and goes last. Both waits are blocking.
func (e *Engine) deleteStacks(ctx context.Context, s *Summary) {
	const phase = "stacks"
	e.deleteStack(ctx, s, phase, e.Target, naming.TargetStack)
	e.deleteStack(ctx, s, phase, e.Source, naming.SourceStack)
}

func (e *Engine) deleteStack(ctx context.Context, s *Summary, phase string, client awsapi.Client, name string) {
	_, err := client.DescribeStack(ctx, name)
	if awsapi.IsNotFound(err) {
		e.add(s, phase, Skipped, "stack %s not found", name)
		return
	}
	err = e.Retry.Run("delete stack", func() error {
		return client.DeleteStack(ctx, name)
	})
	if err != nil && !awsapi.IsNotFound(err) {
		e.add(s, phase, Warning, "could not delete stack %s: %v", name, err)
		return
	}
	if err := e.waitStackGone(ctx, client, name); err != nil {
		e.add(s, phase, Warning, "stack %s deletion not confirmed: %v", name, err)
		return
	}
	e.add(s, phase, OK, "stack %s deleted", name)
}

// Phase 8. Report whatever still matches the project's naming convention.
// The run never fails on leftovers; the operator gets the list.
func (e *Engine) verify(ctx context.Context, s *Summary) {
	const phase = "verification"
	boundaries := []struct {
		label  string
		client awsapi.Client
	}{{"source", e.Source}, {"target", e.Target}}
	if e.Target == e.Source {
		boundaries = boundaries[:1]
	}
	for _, b := range boundaries {
		clusters, err := b.client.ListClusters(ctx)
		if err != nil {
			e.add(s, phase, Warning, "could not list %s clusters: %v", b.label, err)
		} else {
			for _, c := range clusters {
				if naming.BelongsToProject(c.ID) {
					s.Leftovers = append(s.Leftovers, fmt.Sprintf("%s cluster %s (%s)", b.label, c.ID, c.Status))
				}
			}
		}
	}
	for _, st := range []struct {
		label  string
		client awsapi.Client
		name   string
	}{
		{"source", e.Source, naming.SourceStack},
		{"target", e.Target, naming.TargetStack},
	} {
		stack, err := st.client.DescribeStack(ctx, st.name)
		switch {
		case awsapi.IsNotFound(err):
			// gone, as it should be
		case err != nil:
			e.add(s, phase, Warning, "could not describe %s stack %s: %v", st.label, st.name, err)
		default:
			s.Leftovers = append(s.Leftovers, fmt.Sprintf("%s stack %s (%s)", st.label, stack.Name, stack.Status))
		}
	}
	if len(s.Leftovers) == 0 {
		e.add(s, phase, OK, "no project resources remain")
		return
	}
	for _, l := range s.Leftovers {
		e.add(s, phase, Warning, "leftover: %s", l)
	}
}

func (e *Engine) waitClusterGone(ctx context.Context, client awsapi.Client, id string) error {
	clk := e.clock()
	deadline := clk.Now().Add(e.waitTimeout())
	for {
		cluster, err := client.DescribeCluster(ctx, id)
		switch {
		case awsapi.IsNotFound(err):
			return nil
		case err != nil:
			e.report("  describe cluster %s: %v", id, err)
		default:
			e.report("  cluster %s status: %s", id, cluster.Status)
		}
		if clk.Now().After(deadline) {
			return fmt.Errorf("still present after %s", e.waitTimeout())
		}
		select {
		case <-clk.After(e.pollInterval()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (e *Engine) waitStackGone(ctx context.Context, client awsapi.Client, name string) error {
	clk := e.clock()
	deadline := clk.Now().Add(e.waitTimeout())
	for {
		stack, err := client.DescribeStack(ctx, name)
		switch {
		case awsapi.IsNotFound(err):
			return nil
		case err != nil:
			e.report("  describe stack %s: %v", name, err)
		default:
			if stack.Status == "DELETE_FAILED" {
				return fmt.Errorf("stack entered DELETE_FAILED")
			}
			e.report("  stack %s status: %s", name, stack.Status)
		}
		if clk.Now().After(deadline) {
			return fmt.Errorf("still present after %s", e.waitTimeout())
		}
		select {
		case <-clk.After(e.pollInterval()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
