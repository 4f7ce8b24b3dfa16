package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"aiemployee/rulekit/pkg/cli"
	"aiemployee/rulekit/pkg/config"
	"aiemployee/rulekit/pkg/engine"
	"aiemployee/rulekit/pkg/record"
	"aiemployee/rulekit/pkg/rules"
	"aiemployee/rulekit/pkg/source"
)

var evalFlags struct {
	record      string
	rules       string
	role        string
	scope       string
	category    string
	failOnBlock bool
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate a record against the rules",
	Long: `Evaluate a JSON or YAML record and print the per-rule results.

Rules come from the configured store, or from a rule file or directory with
--rules, in which case the store is not touched.

Examples:
  # Evaluate against the rule store
  rulekit eval --record order.json

  # Evaluate against rule files, as an auditor
  rulekit eval --record order.json --rules rules/ --role auditor

  # Read the record from stdin and fail when it is blocked
  cat order.json | rulekit eval --record - --fail-on-block`,
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringVarP(&evalFlags.record, "record", "r", "", "record file, or - for stdin (required)")
	evalCmd.Flags().StringVar(&evalFlags.rules, "rules", "", "evaluate against this rule file or directory instead of the store")
	evalCmd.Flags().StringVar(&evalFlags.role, "role", "", "caller role matched against rule exceptions")
	evalCmd.Flags().StringVar(&evalFlags.scope, "scope", "", "caller scope matched against rule exceptions")
	evalCmd.Flags().StringVar(&evalFlags.category, "category", "", "only evaluate rules in this category")
	evalCmd.Flags().BoolVar(&evalFlags.failOnBlock, "fail-on-block", false, "exit non-zero when the record is blocked")
}

// EvalOutput is the result of the eval command.
type EvalOutput struct {
	Allowed bool                      `json:"allowed" yaml:"allowed"`
	Results []engine.EvaluationResult `json:"results" yaml:"results"`
}

// WriteText prints one line per evaluated rule and the overall decision.
func (o EvalOutput) WriteText(w io.Writer) error {
	table := &cli.Table{Headers: []string{"RULE", "PRIORITY", "MATCHED", "ACTIONS"}}
	for _, r := range o.Results {
		actions := make([]string, 0, len(r.ActionsTriggered))
		for _, a := range r.ActionsTriggered {
			actions = append(actions, string(a.Type))
		}
		table.AddRow(r.RuleID, string(r.Priority), fmt.Sprint(r.Matched), strings.Join(actions, ","))
	}
	if err := table.WriteText(w); err != nil {
		return err
	}
	decision := "ALLOWED"
	if !o.Allowed {
		decision = "BLOCKED"
	}
	_, err := fmt.Fprintf(w, "\n%s (%d rules evaluated)\n", decision, len(o.Results))
	return err
}

func runEval(cmd *cobra.Command, args []string) error {
	if evalFlags.record == "" {
		return errors.New("--record is required")
	}
	rec, err := readRecord(cmd, evalFlags.record)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if evalFlags.rules != "" {
		cfg.Store.Backend = config.BackendMemory
	}
	logger, err := newLogger(cfg, true)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	m, err := openManager(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer m.Close()

	if evalFlags.rules != "" {
		res, err := m.Sync(ctx, source.NewFileSource(evalFlags.rules, cfg.Rules.Strict, logger))
		if err != nil {
			return cli.NewCommandError("eval", err)
		}
		if res.Rejected > 0 {
			logger.Warn("some rules were rejected", "rejected", res.Rejected)
		}
	}

	opts := []engine.EvalOption{
		engine.WithCaller(rules.Caller{Role: evalFlags.role, Scope: evalFlags.scope}),
	}
	if evalFlags.category != "" {
		opts = append(opts, engine.WithCategory(evalFlags.category))
	}

	allowed, results := m.IsAllowed(ctx, rec, opts...)
	if err := printOutput(cmd, EvalOutput{Allowed: allowed, Results: results}); err != nil {
		return err
	}
	if !allowed && evalFlags.failOnBlock {
		return cli.NewCommandError("eval", errors.New("record blocked"))
	}
	return nil
}

// readRecord reads a record from path, or from stdin when path is "-".
// Files ending in .json are decoded as JSON, everything else as YAML,
// which also accepts JSON.
func readRecord(cmd *cobra.Command, path string) (record.Value, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return record.Value{}, fmt.Errorf("read record: %w", err)
	}

	var rec record.Value
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		rec, err = record.FromJSON(data)
	} else {
		rec, err = record.FromYAML(data)
	}
	if err != nil {
		return record.Value{}, fmt.Errorf("parse record %s: %w", path, err)
	}
	return rec, nil
}
