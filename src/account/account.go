// Package account resolves the target account's identity and manages its
// restore access to snapshots. The source and target environments are
// configured independently; a missing target credential profile must not
// fail the pipeline, hence the static fallback.
package account

import (
	"context"

	"redshift-dr/src/awsapi"
	"redshift-dr/src/retrier"
)

// Resolver determines the target account id.
type Resolver struct {
	// Identity queries the target's own credentials; nil when no target
	// profile is configured.
	Identity awsapi.IdentityAPI
	// Fallback is the statically configured account id.
	Fallback string
	Report   func(format string, args ...any)
}

// TargetAccount returns the live caller identity when the target profile
// works, and the configured fallback otherwise. It never fails.
func (r Resolver) TargetAccount(ctx context.Context) string {
	if r.Identity != nil {
		acct, err := r.Identity.CallerAccount(ctx)
		if err == nil && acct != "" {
			return acct
		}
		if r.Report != nil {
			r.Report("could not resolve target identity (%v), using configured account %s", err, r.Fallback)
		}
	}
	return r.Fallback
}

// Coordinator grants and revokes a target account's restore access to a
// snapshot. Both directions are idempotent.
type Coordinator struct {
	Snapshots awsapi.SnapshotAPI
	Retry     retrier.Executor
}

// Grant authorizes account to restore from snapshotID. Granting an
// already-authorized account is success, not error.
func (c Coordinator) Grant(ctx context.Context, snapshotID, account string) error {
	err := c.Retry.Run("authorize snapshot access", func() error {
		return c.Snapshots.AuthorizeSnapshotAccess(ctx, snapshotID, account)
	})
	if awsapi.IsConflict(err) {
		return nil
	}
	return err
}

// Revoke removes account's restore access. Revoking access that does not
// exist (or a snapshot that is already gone) is success: this runs during
// cleanup, where the grant is routinely gone already.
func (c Coordinator) Revoke(ctx context.Context, snapshotID, account string) error {
	err := c.Retry.Run("revoke snapshot access", func() error {
		return c.Snapshots.RevokeSnapshotAccess(ctx, snapshotID, account)
	})
	if awsapi.IsNotFound(err) {
		return nil
	}
	return err
}
