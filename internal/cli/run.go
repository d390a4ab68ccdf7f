package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/prioritize/internal/compiler"
	"github.com/roach88/prioritize/internal/engine"
)

// DefaultConfig is the configuration file read when --config is not given.
const DefaultConfig = "prioritize.yaml"

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config   string
	DryRun   bool
	Issues   []string // restrict to these issue types
	Comments string
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Outcomes []RuleOutcome `json:"outcomes"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every configured rule",
		Long: `Run the rules of every issue type in the configuration file, in order.

Each rule reads a fresh snapshot of its backlog. Moves are applied one at a
time with retries and recorded in the journal, so an interrupted run can be
finished with "prioritize resume <run-id>".

Example:
  prioritize run --config prioritize.yaml
  prioritize run --dry-run --issue Epic
  prioritize run --comments comments.log --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", DefaultConfig, "path to the configuration file")
	cmd.Flags().BoolVarP(&opts.DryRun, "dry-run", "n", false, "plan and report without changing backlogs")
	cmd.Flags().StringSliceVar(&opts.Issues, "issue", nil, "only run these issue types (repeatable)")
	cmd.Flags().StringVar(&opts.Comments, "comments", "", "append posted messages to this file")

	return cmd
}

func runConfig(opts *RunOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	cfg, err := compiler.LoadConfig(opts.Config)
	if errors.Is(err, fs.ErrNotExist) {
		return commandError(formatter, ErrCodeNotFound, fmt.Sprintf("config not found: %s", opts.Config), nil)
	}
	if err != nil {
		return compileError(formatter, err)
	}
	issues, err := compiler.CompileConfig(cfg, opts.now())
	if err != nil {
		return compileError(formatter, err)
	}
	for _, name := range opts.Issues {
		if !slices.ContainsFunc(issues, func(ci compiler.CompiledIssue) bool { return ci.Type == name }) {
			return commandError(formatter, ErrCodeNotFound, fmt.Sprintf("issue type %q is not configured", name), nil)
		}
	}

	logger.Debug("opening journal", "path", cfg.Journal)
	journal, err := openJournal(cfg.Journal)
	if err != nil {
		return commandError(formatter, ErrCodeJournal, err.Error(), nil)
	}
	defer closeJournal(journal, logger)

	comments, closeComments, err := openComments(opts.Comments, cfg.Comments.Footer)
	if err != nil {
		return commandError(formatter, ErrCodeGeneric, err.Error(), nil)
	}
	defer closeComments()

	ctx, stop := signalContext(cmd)
	defer stop()

	eng := engine.New(engine.WithRunIDGenerator(opts.runIDs()), engine.WithLogger(logger))

	var w io.Writer
	if opts.Format != "json" {
		w = cmd.OutOrStdout()
	}

	result := RunResult{Outcomes: []RuleOutcome{}}
	for _, issue := range issues {
		if len(opts.Issues) > 0 && !slices.Contains(opts.Issues, issue.Type) {
			continue
		}
		backlog, err := openBacklog(formatter, issue.Backlog)
		if err != nil {
			return err
		}
		if w != nil {
			fmt.Fprintf(w, "## %s (%s)\n", issue.Type, issue.Backlog)
		}

		p := &pipeline{
			engine:   eng,
			backlog:  backlog,
			journal:  journal,
			comments: comments,
			retry:    cfg.Retry,
			dryRun:   opts.DryRun,
			logger:   logger,
			report:   w,
		}
		for _, rule := range issue.Rules {
			out, err := p.run(ctx, issue.Type, rule)
			result.Outcomes = append(result.Outcomes, out)
			if err != nil {
				return runtimeError(formatter, err)
			}
		}
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return nil
}

// signalContext cancels on SIGINT or SIGTERM. Uses the command's context
// if available (for testing).
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
