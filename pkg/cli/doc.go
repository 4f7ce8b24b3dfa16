/*
Package cli provides helpers shared by the rulekit commands.

Output Formatting:

Commands accept --output text|json|yaml. Text output uses a value's
WriteText method when it has one, which Table provides:

	format, err := cli.ParseFormat(flag)
	table := &cli.Table{Headers: []string{"ID", "PRIORITY"}}
	table.AddRow("block-guests", "high")
	cli.NewFormatter(format).FormatTo(os.Stdout, table)

Progress Reporting:

Batch operations report one line per item:

	progress := cli.NewProgressReporter(os.Stderr, "import")
	progress.Start(len(rules))
	for _, r := range rules {
		progress.Step(r.ID, add(r))
	}
	summary := progress.Finish()

Errors and Signals:

ConfigError and CommandError map to process exit codes via ExitCode.
SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM.
*/
package cli
