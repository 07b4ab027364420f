package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/GuLp-St/Attendance-Studio/internal/ir"
	"github.com/GuLp-St/Attendance-Studio/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string // optional - defaults to the latest session
	Token    string // optional - filter to a token and its descendants
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	SessionID  string          `json:"session_id"`
	SchemaHash string          `json:"schema_hash"`
	Initial    []ir.Token      `json:"initial"`
	Timeline   []ir.Transition `json:"timeline"`
	Stats      TraceStats      `json:"stats"`
}

// TraceStats holds summary statistics for the session.
type TraceStats struct {
	Transitions int            `json:"transitions"`
	LastSeq     int64          `json:"last_seq"`
	ByKind      map[string]int `json:"by_kind"`
	Errors      map[string]int `json:"errors"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print the timeline of a recorded session",
		Long: `Print the transitions recorded for a session in seq order, with the
state change, active flags and effects of each, followed by counts per event
kind and per absorbed error.

Without --session the most recent session is shown.

Examples:
  navsync trace --db ./navsync.db
  navsync trace --db ./navsync.db --session 0190b6f2-...
  navsync trace --db ./navsync.db --token dash/modal --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $"+EnvDatabase+")")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID (default latest)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "only transitions ending on this token or below it")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	dbPath, err := databasePath(opts.Database)
	if err != nil {
		return err
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	sess, err := resolveSession(ctx, st, opts.Session)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) && opts.Session == "" {
			if opts.Format == "json" {
				return WriteResponse(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: TraceResult{Timeline: []ir.Transition{}}})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "No sessions found in database.")
			return nil
		}
		return err
	}

	var timeline []ir.Transition
	if opts.Token != "" {
		timeline, err = st.ReadTokenTransitions(ctx, sess.ID, ir.Token(opts.Token))
	} else {
		timeline, err = st.ReadTransitions(ctx, sess.ID)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read transitions", err)
	}

	sum, err := st.Summarize(ctx, sess.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to summarize session", err)
	}

	result := TraceResult{
		SessionID:  sess.ID,
		SchemaHash: sess.SchemaHash,
		Initial:    sess.Initial,
		Timeline:   timeline,
		Stats: TraceStats{
			Transitions: sum.Transitions,
			LastSeq:     sum.LastSeq,
			ByKind:      make(map[string]int, len(sum.ByKind)),
			Errors:      sum.Errors,
		},
	}
	for k, n := range sum.ByKind {
		result.Stats.ByKind[string(k)] = n
	}

	if opts.Format == "json" {
		return WriteResponse(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: result, SessionID: sess.ID})
	}
	outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
	return nil
}

// resolveSession returns the named session, or the latest when id is empty.
func resolveSession(ctx context.Context, st *store.Store, id string) (store.Session, error) {
	if id == "" {
		sess, err := st.LatestSession(ctx)
		if err != nil {
			return store.Session{}, err
		}
		return sess, nil
	}
	sess, err := st.GetSession(ctx, id)
	if err != nil {
		return store.Session{}, WrapExitError(ExitCommandError, "failed to load session", err)
	}
	return sess, nil
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for Session: %s\n", result.SessionID)
	if verbose {
		fmt.Fprintf(w, "Schema: %s\n", result.SchemaHash)
		fmt.Fprintf(w, "Initial: %v\n", result.Initial)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no transitions)")
	}
	for _, t := range result.Timeline {
		formatTimelineEvent(w, t, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Transitions: %d (last seq %d)\n", result.Stats.Transitions, result.Stats.LastSeq)
	for _, k := range sortedKeys(result.Stats.ByKind) {
		fmt.Fprintf(w, "  %-12s %d\n", k+":", result.Stats.ByKind[k])
	}
	for _, code := range sortedKeys(result.Stats.Errors) {
		fmt.Fprintf(w, "  %-12s %d\n", code+":", result.Stats.Errors[code])
	}
}

// formatTimelineEvent formats a single transition for text output.
func formatTimelineEvent(w io.Writer, t ir.Transition, verbose bool) {
	fmt.Fprintf(w, "  [%d] %-10s %s -> %s %q", t.Seq, t.Kind, t.From, t.To, t.Token)
	if len(t.Effects) > 0 {
		fmt.Fprintf(w, " %v", t.Effects)
	}
	if t.Error != "" {
		fmt.Fprintf(w, " !%s", t.Error)
	}
	fmt.Fprintln(w)
	if verbose {
		fmt.Fprintf(w, "       index=%d depth=%d flags=%v\n", t.Index, t.Depth, t.Flags)
		if req := formatRequest(t.Request); req != "" {
			fmt.Fprintf(w, "       request: %s\n", req)
		}
	}
}

func formatRequest(r ir.Request) string {
	out := ""
	add := func(k, v string) {
		if out != "" {
			out += " "
		}
		out += k + "=" + v
	}
	if r.Token != "" {
		add("depth", fmt.Sprint(r.Depth))
		add("token", string(r.Token))
	}
	if len(r.Flags) > 0 {
		add("flags", fmt.Sprint(r.Flags))
	}
	if r.Message != "" {
		add("message", fmt.Sprintf("%q", r.Message))
	}
	if r.PendingID != "" {
		add("pending", truncateID(r.PendingID))
	}
	if r.Yes {
		add("yes", "true")
	}
	if r.Direction != "" {
		add("direction", string(r.Direction))
	}
	if r.Gen != 0 {
		add("gen", fmt.Sprint(r.Gen))
	}
	return out
}

// sortedKeys returns map keys in sorted order for deterministic output.
func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
