package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GuLp-St/Attendance-Studio/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Source string                     `json:"source"`
	Hash   string                     `json:"schema_hash,omitempty"`
	Stacks int                        `json:"stacks,omitempty"`
	Levels int                        `json:"levels,omitempty"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [schema]",
		Short: "Validate a navigation schema",
		Long: `Compile a CUE navigation schema and check the structural rules the
engine relies on: unique tokens, prefix containment, depth ordering,
disjoint namespaces, flag ownership and gate parameters.

The schema is a .cue file or a directory holding one CUE package. Without an
argument NAVSYNC_SCHEMA is used, then the embedded default.

Exit codes:
  0 - Schema valid
  1 - Validation failed
  2 - Schema could not be loaded`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, schemaPath(args), cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	res, err := LoadSchema(path)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Error(), nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	formatter.VerboseLog("Compiled %s (%d stack(s))", res.Source, len(res.Schema.Stacks))
	for _, st := range res.Schema.Stacks {
		formatter.VerboseLog("Validating stack: %s (%d level(s))", st.Name, len(st.Levels))
	}

	result := ValidationResult{Source: res.Source, Errors: compiler.Validate(res.Schema)}
	if len(result.Errors) > 0 {
		return outputValidationErrors(formatter, result)
	}

	result.Valid = true
	result.Hash = res.Hash
	result.Stacks = len(res.Schema.Stacks)
	for _, st := range res.Schema.Stacks {
		result.Levels += len(st.Levels)
	}
	return outputValidateSuccess(formatter, result)
}

func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Schema valid: %s\n", result.Source)
	fmt.Fprintf(formatter.Writer, "  %d stack(s), %d level(s)\n", result.Stacks, result.Levels)
	if formatter.Verbose {
		fmt.Fprintf(formatter.Writer, "  hash: %s\n", result.Hash)
	}
	return nil
}

// outputValidateError reports a schema that could not be loaded.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, message)
}

func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		if err := WriteResponse(formatter.Writer, CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: errs[0].Code, Message: errs[0].Message},
		}); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintf(formatter.Writer, "✗ Validation failed: %s\n\n", result.Source)
	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n", err.Code, err.Field, err.Message)
	}
	return failure
}
