package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"redshift-dr/src/naming"
	"redshift-dr/src/restore"
	"redshift-dr/src/safety"
)

func newRestoreCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts restore.Options
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore a cluster in the target account from a shared snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.SnapshotID == "" {
				return errors.New("--snapshot is required")
			}
			target, err := targetClient(cmd)
			if err != nil {
				return err
			}
			safetyOpts := getSafetyOptions(cmd)
			if safetyOpts.DryRun {
				fmt.Fprintf(stdout, "would restore cluster %s from snapshot %s\n", opts.ClusterID, opts.SnapshotID)
				return nil
			}
			ok, err := safety.Confirm(safetyOpts, os.Stdin, stdout,
				fmt.Sprintf("Restore cluster %s from snapshot %s?", opts.ClusterID, opts.SnapshotID))
			if err != nil || !ok {
				return err
			}
			restorer := &restore.Restorer{Client: target, Report: reporter(stderr)}
			used, err := restorer.Run(cmdContext(cmd), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "restoring cluster %s from snapshot %s\n", opts.ClusterID, used)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.SnapshotID, "snapshot", "", "Snapshot identifier to restore from")
	cmd.Flags().StringVar(&opts.ClusterID, "cluster", naming.RestoredClusterCandidates[0], "Identifier for the restored cluster")
	cmd.Flags().StringVar(&opts.SourceAccount, "owner-account", "", "Account that owns the shared snapshot")
	cmd.Flags().StringVar(&opts.SourceCluster, "source-cluster", naming.DefaultCluster, "Cluster the snapshot was taken from")
	cmd.Flags().StringVar(&opts.SubnetGroup, "subnet-group", "", "Cluster subnet group for the restored cluster")
	cmd.Flags().BoolVar(&opts.CopyFirst, "copy", false, "Copy the snapshot into the target account and restore from the copy")
	return cmd
}
