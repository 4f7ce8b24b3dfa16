package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"aiemployee/rulekit/pkg/cli"
	"aiemployee/rulekit/pkg/rules"
	"aiemployee/rulekit/pkg/source"
)

var lintFlags struct {
	file   string
	dir    string
	strict bool
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate rule files",
	Long: `Validate YAML or JSON rule files without loading them into the store.

The lint command reports:
  - Syntax errors in the rule document
  - Structural problems (unknown priority, operator or action type,
    non-list operands for in/not_in, non-numeric operands for ordering
    operators, regex patterns that do not compile)
  - Rule IDs defined more than once
  - Warnings for rules without conditions or without actions

Examples:
  # Lint a single file
  rulekit lint --file rules.yaml

  # Lint a directory, treating warnings as errors
  rulekit lint --dir rules/ --strict

  # JSON output for CI
  rulekit lint --dir rules/ -o json`,
	RunE: lintRules,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.file, "file", "f", "", "rule file to validate")
	lintCmd.Flags().StringVarP(&lintFlags.dir, "dir", "d", "", "directory of rule files")
	lintCmd.Flags().BoolVar(&lintFlags.strict, "strict", false, "treat warnings as errors")
}

// LintResult is the validation result for one rule file.
type LintResult struct {
	File     string      `json:"file" yaml:"file"`
	Rules    int         `json:"rules" yaml:"rules"`
	Valid    bool        `json:"valid" yaml:"valid"`
	Errors   []LintIssue `json:"errors,omitempty" yaml:"errors,omitempty"`
	Warnings []LintIssue `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// LintIssue is one problem found in a rule file.
type LintIssue struct {
	RuleID  string `json:"rule_id,omitempty" yaml:"rule_id,omitempty"`
	Message string `json:"message" yaml:"message"`
}

// LintReport is the output of the lint command.
type LintReport struct {
	Files    []LintResult `json:"files" yaml:"files"`
	Errors   int          `json:"errors" yaml:"errors"`
	Warnings int          `json:"warnings" yaml:"warnings"`
}

func lintRules(cmd *cobra.Command, args []string) error {
	if lintFlags.file == "" && lintFlags.dir == "" {
		return errors.New("either --file or --dir must be specified")
	}

	var files []string
	if lintFlags.file != "" {
		files = append(files, lintFlags.file)
	}
	if lintFlags.dir != "" {
		found, err := findRuleFiles(lintFlags.dir)
		if err != nil {
			return err
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return errors.New("no rule files found")
	}

	report := lintFiles(files)
	if err := printOutput(cmd, report); err != nil {
		return err
	}

	if report.Errors > 0 {
		return cli.NewCommandError("lint", fmt.Errorf("%d error(s)", report.Errors))
	}
	if lintFlags.strict && report.Warnings > 0 {
		return cli.NewCommandError("lint", fmt.Errorf("%d warning(s) in strict mode", report.Warnings))
	}
	return nil
}

// findRuleFiles returns the rule files under dir, sorted.
func findRuleFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && len(d.Name()) > 1 && d.Name()[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		if source.HasRuleExtension(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list rule files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// lintFiles validates every file and reports IDs defined more than once
// across the set.
func lintFiles(files []string) LintReport {
	var report LintReport
	seen := make(map[string]string)

	for _, file := range files {
		result := LintResult{File: file, Valid: true}

		list, err := source.LoadFile(file)
		if err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, LintIssue{Message: err.Error()})
			report.add(result)
			continue
		}
		result.Rules = len(list)

		for _, r := range list {
			var vErr *rules.ValidationError
			if err := rules.Validate(r); errors.As(err, &vErr) {
				for _, p := range vErr.Problems {
					result.Errors = append(result.Errors, LintIssue{RuleID: r.ID, Message: p})
				}
			} else if err != nil {
				result.Errors = append(result.Errors, LintIssue{RuleID: r.ID, Message: err.Error()})
			}

			if prev, dup := seen[r.ID]; dup {
				result.Errors = append(result.Errors, LintIssue{
					RuleID:  r.ID,
					Message: fmt.Sprintf("duplicate rule id (first defined in %s)", prev),
				})
			} else {
				seen[r.ID] = file
			}

			if len(r.Conditions) == 0 {
				result.Warnings = append(result.Warnings, LintIssue{RuleID: r.ID, Message: "rule has no conditions and matches every record"})
			}
			if len(r.Actions) == 0 {
				result.Warnings = append(result.Warnings, LintIssue{RuleID: r.ID, Message: "rule has no actions"})
			}
		}

		result.Valid = len(result.Errors) == 0
		report.add(result)
	}
	return report
}

func (r *LintReport) add(result LintResult) {
	r.Files = append(r.Files, result)
	r.Errors += len(result.Errors)
	r.Warnings += len(result.Warnings)
}

// WriteText prints a human-readable report.
func (r LintReport) WriteText(w io.Writer) error {
	for _, f := range r.Files {
		fmt.Fprintf(w, "Validating %s...\n", f.File)
		if len(f.Errors) == 0 && len(f.Warnings) == 0 {
			fmt.Fprintf(w, "✓ %d rule(s) valid\n", f.Rules)
		}
		for _, e := range f.Errors {
			fmt.Fprintf(w, "✗ Error: %s\n", e.text())
		}
		for _, warn := range f.Warnings {
			fmt.Fprintf(w, "⚠  Warning: %s\n", warn.text())
		}
		fmt.Fprintln(w)
	}
	_, err := fmt.Fprintf(w, "Summary:\n  %d error(s), %d warning(s)\n", r.Errors, r.Warnings)
	return err
}

func (i LintIssue) text() string {
	if i.RuleID == "" {
		return i.Message
	}
	return fmt.Sprintf("[%s] %s", i.RuleID, i.Message)
}
