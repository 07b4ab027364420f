package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GuLp-St/Attendance-Studio/internal/engine"
	"github.com/GuLp-St/Attendance-Studio/internal/history"
	"github.com/GuLp-St/Attendance-Studio/internal/store"
	"github.com/GuLp-St/Attendance-Studio/internal/tui"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string // optional - record the session
	Schema   string
	LogFile  string

	// IDGenerator overrides pending confirmation IDs (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator engine.IDGenerator

	// Program replaces the interactive dashboard (for testing). It runs on
	// the calling goroutine while the engine loop runs.
	Program func(ctx context.Context, m tui.Model) error
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the interactive dashboard",
		Long: `Start the engine over an in-memory history log and drive it from a
terminal dashboard. Number keys open levels, esc is the back gesture, d asks
for a confirmation and b is the secret gate's blur event.

With --db (or NAVSYNC_DB) every transition is recorded under a new session
that trace and replay can read back. Logs go to --log, never the terminal.

Example:
  navsync run
  navsync run --db ./navsync.db --schema ./nav.cue --log ./navsync.log`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", os.Getenv(EnvDatabase), "record the session to this SQLite database")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "navigation schema (default $"+EnvSchema+" or embedded)")
	cmd.Flags().StringVar(&opts.LogFile, "log", "", "write logs to this file")

	return cmd
}

func runDashboard(opts *RunOptions, cmd *cobra.Command) error {
	logger, closeLog, err := openLogger(opts.LogFile, opts.Verbose)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open log file", err)
	}
	defer closeLog()

	loaded, err := compiledSchema(schemaPath([]string{opts.Schema}))
	if err != nil {
		return err
	}
	logger.Info("schema loaded", "source", loaded.Source, "hash", loaded.Hash)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	ids := opts.IDGenerator
	if ids == nil {
		ids = engine.UUIDv7Generator{}
	}
	log := history.NewLog()
	feed := tui.NewFeed()
	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithIDGenerator(ids),
		engine.WithObserver(feed.Observe),
		engine.WithOnExit(func() { logger.Info("session exited") }),
	}

	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		sess, err := store.NewSession(loaded.Schema, nil)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create session", err)
		}
		rec, err := st.NewRecorder(ctx, sess)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create session", err)
		}
		engineOpts = append(engineOpts, engine.WithRecorder(rec))
		logger.Info("recording session", "db", opts.Database, "session", sess.ID)
		defer fmt.Fprintf(cmd.OutOrStdout(), "Recorded session %s\n", sess.ID)
	}

	eng := engine.New(loaded.Schema, log, engineOpts...)

	loopErr := make(chan error, 1)
	go func() { loopErr <- eng.Run(ctx) }()

	program := opts.Program
	if program == nil {
		program = tui.Run
	}
	progErr := program(ctx, tui.NewModel(eng, feed, tui.WithHistory(log), tui.WithLogger(logger)))

	eng.Stop()
	if err := <-loopErr; err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		return WrapExitError(ExitFailure, "engine error", err)
	}
	if progErr != nil {
		return WrapExitError(ExitFailure, "dashboard error", progErr)
	}
	logger.Info("engine stopped gracefully")
	return nil
}

// openLogger returns a text logger writing to path, or a discarding logger
// when path is empty.
func openLogger(path string, verbose bool) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return logger, func() { _ = f.Close() }, nil
}
