package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"aiemployee/rulekit/pkg/cli"
)

var (
	// Global flags
	cfgFile      string
	verbose      bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "rulekit",
	Short: "Business rules engine for AI-employee skills",
	Long: `Rulekit evaluates JSON records against a prioritized set of business rules
and reports which rules matched and which actions they triggered.

It provides:
  - Rule evaluation from the command line or over HTTP
  - Rule storage in SQLite with hot reload from YAML/JSON rule files
  - An audit log of decisions with scheduled retention
  - Prometheus metrics and OpenTelemetry tracing`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json, yaml")
}
