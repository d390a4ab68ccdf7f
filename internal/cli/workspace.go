package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/prioritize/internal/compiler"
	"github.com/roach88/prioritize/internal/config"
	"github.com/roach88/prioritize/internal/engine"
	"github.com/roach88/prioritize/internal/store"
	"github.com/roach88/prioritize/internal/tracker"
)

// newLogger returns a text logger on w: Debug with --verbose, Info otherwise.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

// openJournal opens the SQLite journal at path, creating its directory.
func openJournal(path string) (*store.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}
	return store.Open(path)
}

// closeJournal closes st, logging any error.
func closeJournal(st *store.Store, logger *slog.Logger) {
	if err := st.Close(); err != nil {
		logger.Error("error closing journal", "error", err)
	}
}

// openBacklog opens a backlog file, mapping a missing file to E005.
func openBacklog(formatter *OutputFormatter, path string) (*tracker.FileBacklog, error) {
	if path == "" {
		return nil, commandError(formatter, ErrCodeNotFound, "no backlog file given", nil)
	}
	b, err := tracker.OpenFileBacklog(path)
	if err != nil {
		return nil, commandError(formatter, ErrCodeNotFound, fmt.Sprintf("backlog not found: %s", path), nil)
	}
	return b, nil
}

// ruleFlags are the kwargs of the ad-hoc rule commands.
type ruleFlags struct {
	kwargs  config.Kwargs
	backlog string
	journal string
	dryRun  bool
	footer  string
	notes   string
}

func (f *ruleFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.backlog, "backlog", "b", "", "path to the backlog file (required)")
	cmd.Flags().StringVar(&f.journal, "journal", "", "path to the SQLite move journal (disabled if empty)")
	cmd.Flags().BoolVarP(&f.dryRun, "dry-run", "n", false, "plan and report without changing the backlog")
	cmd.Flags().StringVar(&f.notes, "comments", "", "append posted messages to this file")
	cmd.Flags().StringVar(&f.footer, "footer", "", "footer appended to every posted message")
	_ = cmd.MarkFlagRequired("backlog")
}

func (f *ruleFlags) registerKwargs(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.kwargs.HorizonDays, "horizon-days", 0, "date horizon for time-sensitive rules")
	cmd.Flags().Float64Var(&f.kwargs.TailThreshold, "tail-threshold", 0, "percentile threshold for the tail block")
	cmd.Flags().StringVar(&f.kwargs.ManualOverride, "manual-override", "", "CEL expression selecting items left in place")
	cmd.Flags().StringVar(&f.kwargs.OrderBy, "order-by", "", "comma-separated sort keys for rank_with_order_by")
	cmd.Flags().BoolVar(&f.kwargs.Cascade, "cascade", false, "place each item's open children after it (rank_with_order_by)")
	cmd.Flags().BoolVar(&f.kwargs.OrphansLast, "orphans-last", false, "move parentless items to the tail (rank)")
}

// compileError reports a rule or config compile failure. Validation errors
// keep their E-code.
func compileError(formatter *OutputFormatter, err error) error {
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		return failure(formatter, ErrCodeSchema, ce.Error(), map[string]string{"field": ce.Field})
	}
	return failure(formatter, ErrCodeGeneric, err.Error(), nil)
}

// runtimeError reports an engine runtime error with its code and details.
func runtimeError(formatter *OutputFormatter, err error) error {
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		details := map[string]any{"runtime_code": string(re.Code)}
		if re.Policy != "" {
			details["policy"] = re.Policy
		}
		if re.ItemKey != "" {
			details["item"] = re.ItemKey
		}
		return failure(formatter, ErrCodeRuntime, re.Error(), details)
	}
	return failure(formatter, ErrCodeApplyFailed, err.Error(), nil)
}

// failure writes the error and returns an ExitFailure error.
func failure(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", code, message))
}

// commandError writes the error and returns an ExitCommandError error.
func commandError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}
