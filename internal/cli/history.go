package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/prioritize/internal/config"
	"github.com/roach88/prioritize/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Journal string
}

// RunSummary is one journaled run with its application progress.
type RunSummary struct {
	store.Run
	Applied int `json:"applied"`
}

// RunDetail is a journaled run with its moves and posted messages.
type RunDetail struct {
	RunSummary
	Moves    []store.MoveRecord `json:"moves"`
	Messages []store.Message    `json:"messages"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show journaled runs",
		Long: `List the runs recorded in the move journal, oldest first.

With a run ID, show that run's moves (and which run applied each one) and
the messages posted during it.

Examples:
  prioritize history
  prioritize history --journal .prioritize/journal.db --format json
  prioritize history 0190a5c4-...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runHistoryDetail(opts, args[0], cmd)
			}
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", config.DefaultJournal, "path to the SQLite move journal")

	return cmd
}

// openExistingJournal opens a journal that must already exist. Reading
// commands never create one.
func openExistingJournal(formatter *OutputFormatter, path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, commandError(formatter, ErrCodeNotFound, fmt.Sprintf("journal not found: %s", path), nil)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, commandError(formatter, ErrCodeJournal, err.Error(), nil)
	}
	return st, nil
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	st, err := openExistingJournal(formatter, opts.Journal)
	if err != nil {
		return err
	}
	defer closeJournal(st, logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return failure(formatter, ErrCodeJournal, err.Error(), nil)
	}

	summaries := make([]RunSummary, 0, len(runs))
	for _, r := range runs {
		applied, err := st.CountApplied(ctx, r.ID)
		if err != nil {
			return failure(formatter, ErrCodeJournal, err.Error(), nil)
		}
		summaries = append(summaries, RunSummary{Run: r, Applied: applied})
	}

	if opts.Format == "json" {
		return formatter.Success(summaries)
	}
	writeRunTable(cmd.OutOrStdout(), summaries)
	return nil
}

func writeRunTable(w io.Writer, runs []RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, r := range runs {
		state := fmt.Sprintf("%d/%d applied", r.Applied, r.MoveCount)
		if r.DryRun {
			state += ", dry run"
		}
		issue := r.IssueType
		if issue == "" {
			issue = "-"
		}
		fmt.Fprintf(w, "%4d  %s  %-20s %-10s %s\n", r.Seq, r.ID, r.Policy, issue, state)
	}
}

func runHistoryDetail(opts *HistoryOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	st, err := openExistingJournal(formatter, opts.Journal)
	if err != nil {
		return err
	}
	defer closeJournal(st, logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	detail, err := readRunDetail(ctx, st, runID)
	if errors.Is(err, store.ErrNotFound) {
		return commandError(formatter, ErrCodeNotFound, fmt.Sprintf("run not found: %s", runID), nil)
	}
	if err != nil {
		return failure(formatter, ErrCodeJournal, err.Error(), nil)
	}

	if opts.Format == "json" {
		return formatter.Success(detail)
	}

	w := cmd.OutOrStdout()
	writeRunTable(w, []RunSummary{detail.RunSummary})
	fmt.Fprintf(w, "plan %s\n", detail.PlanID)
	for _, m := range detail.Moves {
		mark := " "
		if m.Applied() {
			mark = "✓"
		}
		fmt.Fprintf(w, "  %s [%d] %s after %s\n", mark, m.Seq, m.ItemKey, m.AfterKey)
	}
	for _, msg := range detail.Messages {
		fmt.Fprintf(w, "  > %s: %s\n", msg.ItemKey, msg.Body)
	}
	return nil
}

func readRunDetail(ctx context.Context, st *store.Store, runID string) (RunDetail, error) {
	run, err := st.ReadRun(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	applied, err := st.CountApplied(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	moves, err := st.ReadMoves(ctx, run.PlanID)
	if err != nil {
		return RunDetail{}, err
	}
	messages, err := st.ReadMessages(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	return RunDetail{
		RunSummary: RunSummary{Run: run, Applied: applied},
		Moves:      moves,
		Messages:   messages,
	}, nil
}
