package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/prioritize/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // scenario filter (glob pattern)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario-path>...",
		Short: "Run scenario files",
		Long: `Run YAML scenario files against the engine.

Each scenario gives a backlog, one rule and a list of assertions on the
resulting order, moves, priorities, statuses or runtime error. Paths may
be files or directories; directories are searched recursively.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  prioritize test ./scenarios
  prioritize test ./scenarios --filter "due_*"
  prioritize test ./scenarios/rank.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern on the file name")

	return cmd
}

func runTests(opts *TestOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	files, err := harness.FindScenarios(paths...)
	if err != nil {
		var nf *harness.ScenarioNotFoundError
		if errors.As(err, &nf) {
			return commandError(formatter, ErrCodeNotFound, nf.Error(), nil)
		}
		return commandError(formatter, ErrCodeGeneric, fmt.Sprintf("failed to find scenarios: %v", err), nil)
	}
	files, err = filterScenarios(files, opts.Filter)
	if err != nil {
		return commandError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	if len(files) == 0 {
		if opts.Format == "json" {
			return formatter.Success(harness.SuiteResult{})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}
	formatter.VerboseLog("Running %d scenario(s)", len(files))

	result, err := harness.RunSuite(files)
	if err != nil {
		return commandError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	if opts.Format == "json" {
		if result.Failed > 0 {
			_ = formatter.Error(ErrCodeScenarioFail, fmt.Sprintf("%d of %d scenario(s) failed", result.Failed, result.Total), result)
			return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
		}
		return formatter.Success(result)
	}
	return outputTestText(cmd, files, result)
}

// filterScenarios keeps files whose base name, without extension, matches
// the glob pattern. An empty pattern keeps everything.
func filterScenarios(files []string, pattern string) ([]string, error) {
	if pattern == "" {
		return files, nil
	}
	var kept []string
	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		matched, err := filepath.Match(pattern, name)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
		if matched {
			kept = append(kept, f)
		}
	}
	return kept, nil
}

func outputTestText(cmd *cobra.Command, files []string, result *harness.SuiteResult) error {
	w := cmd.OutOrStdout()

	failed := make(map[string]harness.SuiteFailure, len(result.Failures))
	for _, f := range result.Failures {
		failed[f.ScenarioPath] = f
	}
	for _, path := range files {
		f, ok := failed[path]
		if !ok {
			fmt.Fprintf(w, "✓ %s\n", path)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", path)
		for _, e := range f.Errors {
			fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(e, "\n", "\n  "))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}
