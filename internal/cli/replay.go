package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/GuLp-St/Attendance-Studio/internal/engine"
	"github.com/GuLp-St/Attendance-Studio/internal/ir"
	"github.com/GuLp-St/Attendance-Studio/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string // optional - specific session only
	Schema   string
}

// ReplaySessionResult holds the replay result for a single session.
type ReplaySessionResult struct {
	SessionID     string `json:"session_id"`
	Transitions   int    `json:"transitions"`
	Replayed      int    `json:"replayed"`
	Deterministic bool   `json:"deterministic"`
	TraceHash     string `json:"trace_hash,omitempty"`
	Divergence    string `json:"divergence,omitempty"`
	Skipped       string `json:"skipped,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions         []ReplaySessionResult `json:"sessions"`
	TotalSessions    int                   `json:"total_sessions"`
	AllDeterministic bool                  `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay recorded sessions and verify determinism",
		Long: `Re-run the recorded inputs of each session on a fresh engine and history
log and verify that every transition is produced again, byte for byte in
canonical form.

Sessions recorded under a different schema hash than the loaded schema are
skipped.

Exit codes:
  0 - All sessions replayed identically
  1 - A replay diverged
  2 - Command error (database not found, etc.)

Examples:
  navsync replay --db ./navsync.db
  navsync replay --db ./navsync.db --session 0190b6f2-...
  navsync replay --db ./navsync.db --schema ./nav.cue --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $"+EnvDatabase+")")
	cmd.Flags().StringVar(&opts.Session, "session", "", "replay specific session only")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "schema the sessions were recorded with (default $"+EnvSchema+")")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	dbPath, err := databasePath(opts.Database)
	if err != nil {
		return err
	}
	loaded, err := compiledSchema(schemaPath([]string{opts.Schema}))
	if err != nil {
		return err
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var sessions []store.Session
	if opts.Session != "" {
		sess, err := st.GetSession(ctx, opts.Session)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load session", err)
		}
		sessions = []store.Session{sess}
	} else {
		sessions, err = st.ListSessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.Verbose {
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	result := ReplayResult{
		Sessions:         make([]ReplaySessionResult, 0, len(sessions)),
		TotalSessions:    len(sessions),
		AllDeterministic: true,
	}
	for _, sess := range sessions {
		sr, err := replaySession(ctx, st, sess, loaded, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay session %s", sess.ID), err)
		}
		if !sr.Deterministic && sr.Skipped == "" {
			result.AllDeterministic = false
		}
		result.Sessions = append(result.Sessions, sr)
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd.OutOrStdout(), result, opts.Verbose)
}

// replaySession replays one session against the loaded schema.
func replaySession(ctx context.Context, st *store.Store, sess store.Session, loaded *LoadResult, logger *slog.Logger) (ReplaySessionResult, error) {
	sr := ReplaySessionResult{SessionID: sess.ID}
	if sess.SchemaHash != loaded.Hash {
		sr.Skipped = "recorded with a different schema"
		return sr, nil
	}

	recorded, err := st.ReadTransitions(ctx, sess.ID)
	if err != nil {
		return sr, err
	}
	sr.Transitions = len(recorded)

	res, err := engine.Replay(loaded.Schema, sess.Initial, recorded, logger.With("session", sess.ID))
	if res != nil {
		sr.Replayed = res.Replayed
	}
	switch {
	case err != nil:
		sr.Divergence = err.Error()
	case res.Divergence != nil:
		sr.Divergence = res.Divergence.Error()
	default:
		sr.Deterministic = true
		sr.TraceHash, err = ir.TraceHash(res.Trace)
		if err != nil {
			return sr, err
		}
	}
	return sr, nil
}

func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "replay diverged from the recorded session",
		}
	}
	if err := WriteResponse(cmd.OutOrStdout(), response); err != nil {
		return err
	}
	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

func outputReplayText(w io.Writer, result ReplayResult, verbose bool) error {
	if result.TotalSessions == 0 {
		fmt.Fprintln(w, "No sessions found in database.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d session(s)\n\n", result.TotalSessions)
	for _, s := range result.Sessions {
		switch {
		case s.Skipped != "":
			fmt.Fprintf(w, "- Session: %s (skipped: %s)\n", s.SessionID, s.Skipped)
		case s.Deterministic:
			fmt.Fprintf(w, "✓ Session: %s\n", s.SessionID)
			fmt.Fprintf(w, "  Transitions: %d replayed\n", s.Replayed)
			if verbose {
				fmt.Fprintf(w, "  Trace hash: %s\n", s.TraceHash)
			}
		default:
			fmt.Fprintf(w, "✗ Session: %s\n", s.SessionID)
			fmt.Fprintf(w, "  Transitions: %d of %d replayed\n", s.Replayed, s.Transitions)
			fmt.Fprintf(w, "  %s\n", s.Divergence)
		}
	}
	fmt.Fprintln(w)

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All sessions verified deterministic")
		return nil
	}
	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}
