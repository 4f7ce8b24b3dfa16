package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"aiemployee/rulekit/pkg/cli"
	"aiemployee/rulekit/pkg/config"
	"aiemployee/rulekit/pkg/manager"
	"aiemployee/rulekit/pkg/rules"
	"aiemployee/rulekit/pkg/source"
	"aiemployee/rulekit/pkg/store"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage stored rules",
	Long: `List, inspect, add, delete and import rules in the configured store.

Examples:
  rulekit rules list --category access
  rulekit rules get block-guests -o yaml
  rulekit rules add --file new-rule.yaml
  rulekit rules delete block-guests
  rulekit rules import --file rules/ --overwrite`,
}

var rulesListFlags struct {
	category    string
	priority    string
	enabledOnly bool
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rules",
	Args:  cobra.NoArgs,
	RunE:  runRulesList,
}

var rulesGetCmd = &cobra.Command{
	Use:   "get <rule-id>",
	Short: "Show one rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesGet,
}

var rulesAddFlags struct {
	file string
}

var rulesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add the rules in a file; fails on existing IDs",
	Args:  cobra.NoArgs,
	RunE:  runRulesAdd,
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <rule-id>",
	Short: "Delete a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesDelete,
}

var rulesImportFlags struct {
	path      string
	overwrite bool
}

var rulesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import rules from a file or directory",
	Long: `Import every rule found in a rule file or directory. Existing rules are
skipped unless --overwrite is set. Each rule is reported as it is imported.`,
	Args: cobra.NoArgs,
	RunE: runRulesImport,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd, rulesGetCmd, rulesAddCmd, rulesDeleteCmd, rulesImportCmd)

	rulesListCmd.Flags().StringVar(&rulesListFlags.category, "category", "", "only rules in this category")
	rulesListCmd.Flags().StringVar(&rulesListFlags.priority, "priority", "", "only rules with this priority")
	rulesListCmd.Flags().BoolVar(&rulesListFlags.enabledOnly, "enabled-only", false, "only enabled rules")

	rulesAddCmd.Flags().StringVarP(&rulesAddFlags.file, "file", "f", "", "rule file (required)")

	rulesImportCmd.Flags().StringVarP(&rulesImportFlags.path, "file", "f", "", "rule file or directory (required)")
	rulesImportCmd.Flags().BoolVar(&rulesImportFlags.overwrite, "overwrite", false, "update rules that already exist")
}

// ruleEnv is what rule subcommands operate on.
type ruleEnv struct {
	cfg     *config.Config
	manager *manager.Manager
	logger  *slog.Logger
}

// withManager loads the configuration and runs fn with a manager over the
// configured store.
func withManager(cmd *cobra.Command, fn func(ctx context.Context, env ruleEnv) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
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
	return fn(ctx, ruleEnv{cfg: cfg, manager: m, logger: logger})
}

// RuleList renders as a table in text mode.
type RuleList []*rules.Rule

// WriteText prints one row per rule.
func (l RuleList) WriteText(w io.Writer) error {
	table := &cli.Table{Headers: []string{"ID", "NAME", "PRIORITY", "CATEGORY", "ENABLED", "CONDITIONS", "ACTIONS"}}
	for _, r := range l {
		table.AddRow(r.ID, r.Name, string(r.Priority), r.Category,
			strconv.FormatBool(r.Enabled), strconv.Itoa(len(r.Conditions)), strconv.Itoa(len(r.Actions)))
	}
	return table.WriteText(w)
}

func runRulesList(cmd *cobra.Command, args []string) error {
	filter := store.Filter{
		Category:    rulesListFlags.category,
		Priority:    rules.Priority(rulesListFlags.priority),
		EnabledOnly: rulesListFlags.enabledOnly,
	}
	if filter.Priority != "" && !filter.Priority.IsValid() {
		return fmt.Errorf("invalid priority %q", rulesListFlags.priority)
	}

	return withManager(cmd, func(ctx context.Context, env ruleEnv) error {
		list, err := env.manager.ListRules(ctx, filter)
		if err != nil {
			return cli.NewCommandError("rules list", err)
		}
		rules.SortByPriority(list)
		return printOutput(cmd, RuleList(list))
	})
}

func runRulesGet(cmd *cobra.Command, args []string) error {
	return withManager(cmd, func(ctx context.Context, env ruleEnv) error {
		rule, found, err := env.manager.GetRule(ctx, args[0])
		if err != nil {
			return cli.NewCommandError("rules get", err)
		}
		if !found {
			return cli.NewCommandError("rules get", fmt.Errorf("rule %s not found", args[0]))
		}
		format, err := cli.ParseFormat(outputFormat)
		if err != nil {
			return err
		}
		if format == cli.FormatText {
			format = cli.FormatYAML
		}
		return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), rule)
	})
}

func runRulesAdd(cmd *cobra.Command, args []string) error {
	if rulesAddFlags.file == "" {
		return errors.New("--file is required")
	}
	list, err := source.LoadFile(rulesAddFlags.file)
	if err != nil {
		return cli.NewCommandError("rules add", err)
	}

	return withManager(cmd, func(ctx context.Context, env ruleEnv) error {
		for _, r := range list {
			added, err := env.manager.AddRule(ctx, r)
			if err != nil {
				return cli.NewCommandError("rules add", err)
			}
			if !added {
				return cli.NewCommandError("rules add", fmt.Errorf("rule %s already exists", r.ID))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ added %s\n", r.ID)
		}
		return nil
	})
}

func runRulesDelete(cmd *cobra.Command, args []string) error {
	return withManager(cmd, func(ctx context.Context, env ruleEnv) error {
		deleted, err := env.manager.DeleteRule(ctx, args[0])
		if err != nil {
			return cli.NewCommandError("rules delete", err)
		}
		if !deleted {
			return cli.NewCommandError("rules delete", fmt.Errorf("rule %s not found", args[0]))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ deleted %s\n", args[0])
		return nil
	})
}

func runRulesImport(cmd *cobra.Command, args []string) error {
	if rulesImportFlags.path == "" {
		return errors.New("--file is required")
	}

	return withManager(cmd, func(ctx context.Context, env ruleEnv) error {
		list, err := source.NewFileSource(rulesImportFlags.path, env.cfg.Rules.Strict, env.logger).Load(ctx)
		if err != nil {
			return cli.NewCommandError("rules import", err)
		}

		progress := cli.NewProgressReporter(cmd.ErrOrStderr(), "import")
		progress.Start(len(list))
		for _, r := range list {
			progress.Step(r.ID, importRule(ctx, env.manager, r, rulesImportFlags.overwrite))
		}
		summary := progress.Finish()

		if summary.Failed > 0 {
			return cli.NewCommandError("rules import", fmt.Errorf("%d of %d rules failed", summary.Failed, summary.Total))
		}
		return nil
	})
}

// importRule adds r, or updates it when it exists and overwrite is set.
func importRule(ctx context.Context, m *manager.Manager, r *rules.Rule, overwrite bool) error {
	added, err := m.AddRule(ctx, r)
	if err != nil || added {
		return err
	}
	if !overwrite {
		return errors.New("already exists")
	}
	_, err = m.UpdateRule(ctx, r)
	return err
}
