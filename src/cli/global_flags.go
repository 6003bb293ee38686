package cli

import (
	"context"

	"github.com/spf13/cobra"

	"redshift-dr/src/awsapi"
	"redshift-dr/src/safety"
)

// addGlobalFlags adds the persistent safety and connection flags.
func addGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool("dry-run", false, "Show planned actions without making changes")
	cmd.PersistentFlags().BoolP("yes", "y", false, "Assume 'yes' to prompts and run non-interactively")
	cmd.PersistentFlags().Bool("force", false, "Force potentially dangerous operations (implies --yes in some cases)")
	cmd.PersistentFlags().String("profile", "", "AWS profile for the source account")
	cmd.PersistentFlags().String("target-profile", "", "AWS profile for the target account (defaults to --profile)")
	cmd.PersistentFlags().String("region", "", "AWS region (defaults to the profile's region)")
}

// getSafetyOptions reads global flags into a safety.Options struct.
func getSafetyOptions(cmd *cobra.Command) safety.Options {
	dry, _ := cmd.Root().PersistentFlags().GetBool("dry-run")
	yes, _ := cmd.Root().PersistentFlags().GetBool("yes")
	force, _ := cmd.Root().PersistentFlags().GetBool("force")
	return safety.Options{DryRun: dry, Yes: yes, Force: force}
}

type connectFunc func(ctx context.Context, profile, region string) (awsapi.Client, error)

// connectClient is swapped out by tests.
var connectClient connectFunc = func(ctx context.Context, profile, region string) (awsapi.Client, error) {
	return awsapi.Connect(ctx, profile, region)
}

// SetConnectForTest replaces the client constructor and returns a restore
// function.
func SetConnectForTest(fn connectFunc) func() {
	prev := connectClient
	connectClient = fn
	return func() { connectClient = prev }
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// sourceClient connects with the --profile credentials.
func sourceClient(cmd *cobra.Command) (awsapi.Client, error) {
	profile, _ := cmd.Root().PersistentFlags().GetString("profile")
	region, _ := cmd.Root().PersistentFlags().GetString("region")
	return connectClient(cmdContext(cmd), profile, region)
}

// targetClient connects with the --target-profile credentials, falling back
// to the source profile when none is configured.
func targetClient(cmd *cobra.Command) (awsapi.Client, error) {
	profile, _ := cmd.Root().PersistentFlags().GetString("target-profile")
	if profile == "" {
		profile, _ = cmd.Root().PersistentFlags().GetString("profile")
	}
	region, _ := cmd.Root().PersistentFlags().GetString("region")
	return connectClient(cmdContext(cmd), profile, region)
}
