package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is the compiled schema as written by compile.
type CompilationResult struct {
	Source string     `json:"source"`
	Hash   string     `json:"schema_hash"`
	Schema *ir.Schema `json:"schema"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [schema]",
		Short: "Compile a navigation schema to canonical JSON",
		Long: `Compile and validate a CUE navigation schema and print its canonical
form together with the schema hash recorded on trace sessions.

With --output the canonical JSON is written to a file.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, schemaPath(args), cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	res, err := LoadValidSchema(path)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Error())
		}
		return outputCompileError(formatter, ErrCodeGeneric, err.Error())
	}
	formatter.VerboseLog("Compiled %s", res.Source)

	data, err := ir.MarshalCanonical(res.Schema.ToMap())
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, fmt.Sprintf("marshal schema: %v", err))
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
		formatter.VerboseLog("Wrote %d bytes to %s", len(data), opts.Output)
	}

	if formatter.Format == "json" {
		return formatter.Success(CompilationResult{Source: res.Source, Hash: res.Hash, Schema: res.Schema})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %s\n", res.Source)
	fmt.Fprintf(w, "  hash: %s\n\n", res.Hash)
	for _, st := range res.Schema.Stacks {
		suffix := ""
		if st.ExitsSession {
			suffix = " (exits session)"
		}
		fmt.Fprintf(w, "Stack %s [%s]%s\n", st.Name, st.Namespace, suffix)
		for _, l := range st.Levels {
			fmt.Fprintf(w, "  %d %-14s %-10s %v\n", l.Depth, l.Token, l.State, l.Flags)
		}
	}
	fmt.Fprintf(w, "\nConfirm: %s  Gate: %s (%d signals / %dms)\n",
		res.Schema.Confirm.Token, res.Schema.Gate.Stack, res.Schema.Gate.Threshold, res.Schema.Gate.WindowMS)
	if opts.Output != "" {
		fmt.Fprintf(w, "Wrote canonical schema to %s\n", opts.Output)
	}
	return nil
}

// outputCompileError reports a schema that could not be compiled.
func outputCompileError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, message)
}

// compiledSchema loads the schema for commands that drive the engine.
func compiledSchema(path string) (*LoadResult, error) {
	res, err := LoadValidSchema(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load schema", err)
	}
	return res, nil
}
