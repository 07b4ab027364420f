package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions are the persistent flags every subcommand sees.
type RootOptions struct {
	Verbose bool
	Format  string
}

// ValidFormats lists the values --format accepts.
var ValidFormats = []string{"text", "json"}

func (o *RootOptions) checkFormat() error {
	if slices.Contains(ValidFormats, o.Format) {
		return nil
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
}

// NewRootCommand assembles the navsync command tree. Errors are left for
// main to print so the exit status can follow GetExitCode.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	root := &cobra.Command{
		Use:   "navsync",
		Short: "navsync - navigation stack sync engine",
		Long: `Keep layered dashboard UI state in lockstep with the browser history stack.

navsync compiles a CUE navigation schema, drives the engine from an
interactive dashboard and records every transition so sessions can be
traced and replayed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return opts.checkFormat()
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")

	root.AddCommand(
		NewValidateCommand(opts),
		NewCompileCommand(opts),
		NewTestCommand(opts),
		NewRunCommand(opts),
		NewTraceCommand(opts),
		NewReplayCommand(opts),
	)
	return root
}
