package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/prioritize/internal/apply"
	"github.com/roach88/prioritize/internal/config"
	"github.com/roach88/prioritize/internal/store"
)

// ResumeOptions holds flags for the resume command.
type ResumeOptions struct {
	*RootOptions
	Journal    string
	Backlog    string
	MaxRetries int
	Interval   time.Duration
}

// ResumeResult is the JSON payload of the resume command.
type ResumeResult struct {
	RunID   string `json:"run_id"`
	PlanID  string `json:"plan_id"`
	Applied int    `json:"applied"`
	Skipped int    `json:"skipped"`
}

// NewResumeCommand creates the resume command.
func NewResumeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResumeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resume <run-id>",
		Short: "Apply the remaining moves of a journaled run",
		Long: `Apply the moves of a journaled run that no run has applied yet.

Use it after a run stopped part way (a failed move, an interrupt), or to
apply a plan that was journaled with --dry-run. Moves are applied in their
original order and credited to the original run.

Example:
  prioritize resume 0190a5c4-... --backlog backlog.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResume(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", config.DefaultJournal, "path to the SQLite move journal")
	cmd.Flags().StringVarP(&opts.Backlog, "backlog", "b", "", "path to the backlog file (required)")
	cmd.Flags().IntVar(&opts.MaxRetries, "max-retries", config.DefaultMaxRetries, "retries per move")
	cmd.Flags().DurationVar(&opts.Interval, "retry-interval", config.DefaultInterval, "base backoff interval")
	_ = cmd.MarkFlagRequired("backlog")

	return cmd
}

func runResume(opts *ResumeOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	backlog, err := openBacklog(formatter, opts.Backlog)
	if err != nil {
		return err
	}
	st, err := openExistingJournal(formatter, opts.Journal)
	if err != nil {
		return err
	}
	defer closeJournal(st, logger)

	ctx, stop := signalContext(cmd)
	defer stop()

	applier := apply.New(fileSink{backlog},
		apply.WithJournal(st),
		apply.WithRetry(opts.MaxRetries, opts.Interval),
		apply.WithLogger(logger),
	)
	res, err := applier.Resume(ctx, runID)
	if errors.Is(err, store.ErrNotFound) {
		return commandError(formatter, ErrCodeNotFound, fmt.Sprintf("run not found: %s", runID), nil)
	}
	if err != nil {
		return failure(formatter, ErrCodeApplyFailed, err.Error(), resumeResult(res))
	}

	if opts.Format == "json" {
		return formatter.Success(resumeResult(res))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Applied %d, skipped %d (run %s)\n", res.Applied, res.Skipped, res.RunID)
	return nil
}

func resumeResult(res apply.Result) ResumeResult {
	return ResumeResult{RunID: res.RunID, PlanID: res.PlanID, Applied: res.Applied, Skipped: res.Skipped}
}
