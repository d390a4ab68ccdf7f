package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/prioritize/internal/compiler"
	"github.com/roach88/prioritize/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Issues int                        `json:"issues,omitempty"`
	Rules  int                        `json:"rules,omitempty"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [config]",
		Short: "Validate a configuration file",
		Long: `Validate a configuration file without running any rule.

The file is checked against the configuration schema first. A file that
passes is then checked rule by rule: unknown rules, kwargs a rule does not
accept, order-by clauses and manual overrides that do not compile. All
rule errors are reported, each with its E-code.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			path := DefaultConfig
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return commandError(formatter, ErrCodeNotFound, fmt.Sprintf("config not found: %s", path), nil)
	}
	if err != nil {
		return commandError(formatter, ErrCodeGeneric, err.Error(), nil)
	}
	formatter.VerboseLog("Read %d byte(s) from %s", len(data), path)

	// Schema errors stop validation: the document may not decode.
	if err := compiler.ValidateSchema(path, data); err != nil {
		return outputValidationErrors(formatter, []compiler.ValidationError{schemaError(err)})
	}

	cfg, err := config.Load(path)
	if err != nil {
		return outputValidationErrors(formatter, []compiler.ValidationError{{
			Field:   "config",
			Message: err.Error(),
			Code:    ErrCodeSchema,
		}})
	}

	if errs := compiler.Validate(cfg); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	rules := 0
	for _, ic := range cfg.Issues {
		formatter.VerboseLog("Issue type %s: %d rule(s), backlog %s", ic.Type, len(ic.Rules), ic.Backlog)
		rules += len(ic.Rules)
	}
	return outputValidateSuccess(formatter, ValidationResult{Valid: true, Issues: len(cfg.Issues), Rules: rules})
}

// schemaError converts a schema violation into a validation error.
func schemaError(err error) compiler.ValidationError {
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		ve := compiler.ValidationError{Field: ce.Field, Message: ce.Message, Code: ErrCodeSchema}
		if ce.Pos.IsValid() {
			ve.Line = ce.Pos.Line()
		}
		return ve
	}
	return compiler.ValidationError{Field: "config", Message: err.Error(), Code: ErrCodeSchema}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Config valid (%d issue type(s), %d rule(s))\n", result.Issues, result.Rules)
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:  false,
			Errors: errs,
		}

		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
