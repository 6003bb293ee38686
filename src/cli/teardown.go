package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"redshift-dr/src/naming"
	"redshift-dr/src/safety"
	"redshift-dr/src/teardown"
)

func newTeardownCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		targetAccount string
		settle        time.Duration
		waitTimeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "teardown",
		Short: "Delete every resource the backup pipeline created, in both accounts",
		Long: "Deletes restored clusters, snapshots, recovery points, backup plans, vaults,\n" +
			"the primary cluster, and both stacks, in dependency order. Phases are\n" +
			"best-effort: failures become warnings and the run continues.",
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := sourceClient(cmd)
			if err != nil {
				return err
			}
			target, err := targetClient(cmd)
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)

			engine := &teardown.Engine{
				Source:        source,
				Target:        target,
				TargetAccount: resolveTargetAccount(cmd, stderr, targetAccount),
				Report:        reporter(stderr),
				Settle:        settle,
				WaitTimeout:   waitTimeout,
			}

			lines := engine.Plan(ctx)
			if len(lines) == 0 {
				fmt.Fprintln(stdout, "nothing to tear down")
				return nil
			}
			fmt.Fprintln(stdout, "will delete:")
			for _, l := range lines {
				fmt.Fprintf(stdout, "  %s\n", l)
			}

			opts := getSafetyOptions(cmd)
			if opts.DryRun {
				return nil
			}
			ok, err := safety.ConfirmPhrase(opts, os.Stdin, stdout,
				"This deletes all project resources in BOTH accounts.", naming.Prefix)
			if err != nil || !ok {
				return err
			}

			summary := engine.Run(ctx)
			renderSummary(stdout, summary)
			if !summary.Clean() {
				return fmt.Errorf("teardown finished with warnings; manual follow-up required")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&targetAccount, "target-account", "", "Account id whose snapshot access is revoked")
	cmd.Flags().DurationVar(&settle, "settle", teardown.DefaultSettle, "Pause after issuing asynchronous deletions")
	cmd.Flags().DurationVar(&waitTimeout, "wait-timeout", teardown.DefaultWaitTimeout, "Ceiling for each blocking deletion wait")
	return cmd
}

func renderSummary(w io.Writer, summary teardown.Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PHASE\tOUTCOME\tDETAIL")
	for _, r := range summary.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Phase, r.Outcome, r.Detail)
	}
	_ = tw.Flush()
	for _, l := range summary.Leftovers {
		fmt.Fprintf(w, "leftover: %s\n", l)
	}
}
