package safety

// Options carries the global safety flags shared by destructive commands.
type Options struct {
	// DryRun previews planned actions without making changes.
	DryRun bool
	// Yes assumes "yes" at prompts for non-interactive runs.
	Yes bool
	// Force skips even the typed-confirmation gate on teardown.
	Force bool
}
