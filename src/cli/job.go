package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"redshift-dr/src/awsbackup"
	"redshift-dr/src/naming"
)

func newJobCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		vault        string
		resourceARN  string
		roleARN      string
		waitTimeout  time.Duration
		pollInterval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Run an on-demand vault backup job and wait for its recovery point",
		RunE: func(cmd *cobra.Command, args []string) error {
			if resourceARN == "" {
				return errors.New("--resource-arn is required")
			}
			if roleARN == "" {
				return errors.New("--role-arn is required")
			}
			source, err := sourceClient(cmd)
			if err != nil {
				return err
			}
			opts := getSafetyOptions(cmd)
			if opts.DryRun {
				fmt.Fprintf(stdout, "would start a backup job for %s into vault %s\n", resourceARN, vault)
				return nil
			}
			runner := &awsbackup.Runner{Backup: source, Report: reporter(stderr)}
			arn, err := runner.Run(cmdContext(cmd), vault, resourceARN, roleARN, waitTimeout, pollInterval)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "recovery point: %s\n", arn)
			return nil
		},
	}
	cmd.Flags().StringVar(&vault, "vault", naming.SourceVault, "Backup vault name")
	cmd.Flags().StringVar(&resourceARN, "resource-arn", "", "ARN of the resource to back up")
	cmd.Flags().StringVar(&roleARN, "role-arn", "", "IAM role the backup service assumes")
	cmd.Flags().DurationVar(&waitTimeout, "wait-timeout", awsbackup.DefaultWaitTimeout, "How long to wait for the job to complete")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", awsbackup.DefaultPollInterval, "Job status poll interval")
	return cmd
}
