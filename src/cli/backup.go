package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"redshift-dr/src/account"
	"redshift-dr/src/lifecycle"
	"redshift-dr/src/naming"
)

// backupEvent mirrors the scheduler invocation payload; fields present in
// the file override the corresponding flags.
type backupEvent struct {
	ClusterID     string `json:"cluster_identifier"`
	TargetAccount string `json:"target_account_id"`
	RetentionDays *int   `json:"retention_days"`
}

func newBackupCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		clusterID     string
		targetAccount string
		retentionDays int
		waitTimeout   time.Duration
		pollInterval  time.Duration
		eventFile     string
		output        string
	)
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the cluster, share it with the target account, prune expired snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := lifecycle.Config{
				ClusterID:     clusterID,
				TargetAccount: targetAccount,
				RetentionDays: retentionDays,
				WaitTimeout:   waitTimeout,
				PollInterval:  pollInterval,
			}
			if eventFile != "" {
				if err := applyEvent(eventFile, &cfg); err != nil {
					return err
				}
			}

			source, err := sourceClient(cmd)
			if err != nil {
				return err
			}
			cfg.TargetAccount = resolveTargetAccount(cmd, stderr, cfg.TargetAccount)
			if cfg.TargetAccount == "" {
				return errors.New("target account unknown: set --target-account or --target-profile")
			}

			opts := getSafetyOptions(cmd)
			if opts.DryRun {
				fmt.Fprintf(stdout, "would create snapshot of cluster %s, share it with account %s, and prune snapshots older than %d day(s)\n",
					cfg.ClusterID, cfg.TargetAccount, cfg.RetentionDays)
				return nil
			}

			mgr := &lifecycle.Manager{
				Snapshots: source,
				Access:    account.Coordinator{Snapshots: source},
				Report:    reporter(stderr),
			}
			res, runErr := mgr.Run(cmdContext(cmd), cfg)

			if output == "json" {
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(stdout, "status: %s\n", res.Status)
				if res.SnapshotID != "" {
					fmt.Fprintf(stdout, "snapshot: %s\n", res.SnapshotID)
				}
				fmt.Fprintf(stdout, "shared with: %s\n", res.TargetAccount)
				fmt.Fprintf(stdout, "pruned: %d\n", res.CleanedUpSnapshots)
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&clusterID, "cluster", naming.DefaultCluster, "Cluster identifier to snapshot")
	cmd.Flags().StringVar(&targetAccount, "target-account", "", "Account id to share the snapshot with")
	cmd.Flags().IntVar(&retentionDays, "retention-days", lifecycle.DefaultRetentionDays, "Delete snapshots older than this many days")
	cmd.Flags().DurationVar(&waitTimeout, "wait-timeout", lifecycle.DefaultWaitTimeout, "How long to wait for the snapshot to become available")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", lifecycle.DefaultPollInterval, "Snapshot status poll interval")
	cmd.Flags().StringVar(&eventFile, "event", "", "JSON invocation payload overriding cluster/account/retention flags")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text|json")
	return cmd
}

func applyEvent(path string, cfg *lifecycle.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read event file: %w", err)
	}
	var ev backupEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("parse event file: %w", err)
	}
	if ev.ClusterID != "" {
		cfg.ClusterID = ev.ClusterID
	}
	if ev.TargetAccount != "" {
		cfg.TargetAccount = ev.TargetAccount
	}
	if ev.RetentionDays != nil {
		cfg.RetentionDays = *ev.RetentionDays
	}
	return nil
}

// resolveTargetAccount prefers the live identity behind --target-profile
// and falls back to the configured account id.
func resolveTargetAccount(cmd *cobra.Command, stderr io.Writer, fallback string) string {
	resolver := account.Resolver{Fallback: fallback, Report: reporter(stderr)}
	profile, _ := cmd.Root().PersistentFlags().GetString("target-profile")
	if profile != "" {
		if target, err := targetClient(cmd); err == nil {
			resolver.Identity = target
		}
	}
	return resolver.TargetAccount(cmdContext(cmd))
}

func reporter(w io.Writer) func(format string, args ...any) {
	return func(format string, args ...any) {
		fmt.Fprintf(w, format+"\n", args...)
	}
}
