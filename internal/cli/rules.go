package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/prioritize/internal/compiler"
	"github.com/roach88/prioritize/internal/config"
	"github.com/roach88/prioritize/internal/engine"
	"github.com/roach88/prioritize/internal/store"
)

// RuleOptions holds flags for the rank, priority and status commands.
type RuleOptions struct {
	*RootOptions
	ruleFlags
}

// NewRankCommand creates the rank command.
func NewRankCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RuleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rank [rule]",
		Short: "Re-rank a backlog file",
		Long: `Re-rank a backlog file with one ranking rule (default "rank").

Rules:
  rank                 keep parents and their children together (--orphans-last)
  timesensitive_rank   pull items due within --horizon-days to the top
  fixversion_rank      pull items whose release is within --horizon-days
  rank_with_order_by   sort by --order-by keys (--cascade keeps children under parents)

Example:
  prioritize rank --backlog backlog.yaml
  prioritize rank timesensitive_rank -b backlog.yaml --horizon-days 60 --dry-run
  prioritize rank timesensitive_rank -b backlog.yaml --horizon-days 30 \
    --manual-override "'pinned' in labels"`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := compiler.RuleRank
			if len(args) == 1 {
				name = args[0]
			}
			return runRule(opts, config.Rule{Rule: name, Kwargs: opts.kwargs}, compiler.ActionRank, cmd)
		},
	}

	opts.register(cmd)
	opts.registerKwargs(cmd)
	return cmd
}

// NewPriorityCommand creates the priority command.
func NewPriorityCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RuleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "priority",
		Short: "Set priorities from rank position",
		Long: `Set each item's priority from its position in the backlog.

The top 6.25% become Critical, the rest of the top 12.5% Major, the rest
of the top 25% Normal and everything below Minor. With --by-component
each item is ranked within each of its components and takes the best
tier.

Example:
  prioritize priority --backlog backlog.yaml --dry-run
  prioritize priority -b backlog.yaml --by-component`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rule := config.Rule{Rule: compiler.RulePriority, Kwargs: config.Kwargs{ByComponent: opts.kwargs.ByComponent}}
			return runRule(opts, rule, compiler.ActionPriority, cmd)
		},
	}

	opts.register(cmd)
	cmd.Flags().BoolVar(&opts.kwargs.ByComponent, "by-component", false, "rank priorities within each component")
	return cmd
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RuleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Set parent statuses from their children",
		Long: `Move every parent to the aggregate status of its children: To Do when
none has started, Done when all are done, In Progress otherwise.

Example:
  prioritize status --backlog backlog.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRule(opts, config.Rule{Rule: compiler.RuleStatus}, compiler.ActionStatus, cmd)
		},
	}

	opts.register(cmd)
	return cmd
}

func runRule(opts *RuleOptions, rule config.Rule, want compiler.Action, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	compiled, err := compiler.CompileRule(rule, opts.now())
	if err != nil {
		return compileError(formatter, err)
	}
	if compiled.Action != want {
		return commandError(formatter, ErrCodeGeneric,
			fmt.Sprintf("%s is a %s rule; use \"prioritize %s\"", compiled.Rule, compiled.Action, compiled.Action), nil)
	}

	backlog, err := openBacklog(formatter, opts.backlog)
	if err != nil {
		return err
	}

	var journal *store.Store
	if opts.journal != "" {
		journal, err = openJournal(opts.journal)
		if err != nil {
			return commandError(formatter, ErrCodeJournal, err.Error(), nil)
		}
		defer closeJournal(journal, logger)
	}

	comments, closeComments, err := openComments(opts.notes, opts.footer)
	if err != nil {
		return commandError(formatter, ErrCodeGeneric, err.Error(), nil)
	}
	defer closeComments()

	ctx, stop := signalContext(cmd)
	defer stop()

	var w io.Writer
	if opts.Format != "json" {
		w = cmd.OutOrStdout()
	}
	p := &pipeline{
		engine:   engine.New(engine.WithRunIDGenerator(opts.runIDs()), engine.WithLogger(logger)),
		backlog:  backlog,
		journal:  journal,
		comments: comments,
		retry:    config.Retry{MaxRetries: config.DefaultMaxRetries, Interval: config.Duration(config.DefaultInterval)},
		dryRun:   opts.dryRun,
		logger:   logger,
		report:   w,
	}

	out, err := p.run(ctx, "", compiled)
	if err != nil {
		return runtimeError(formatter, err)
	}
	if opts.Format == "json" {
		return formatter.Success(out)
	}
	return nil
}
