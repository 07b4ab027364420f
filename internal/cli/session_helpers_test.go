package cli

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GuLp-St/Attendance-Studio/internal/compiler"
	"github.com/GuLp-St/Attendance-Studio/internal/engine"
	"github.com/GuLp-St/Attendance-Studio/internal/history"
	"github.com/GuLp-St/Attendance-Studio/internal/store"
	"github.com/GuLp-St/Attendance-Studio/internal/testutil"
)

// recordSession records one engine run into the database at dbPath and
// returns the session ID. drive issues intents; they are drained before the
// engine stops.
func recordSession(t *testing.T, dbPath string, drive func(e *engine.Engine)) string {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	schema := compiler.MustDefault()
	sess, err := store.NewSession(schema, nil)
	require.NoError(t, err)
	rec, err := st.NewRecorder(ctx, sess)
	require.NoError(t, err)

	e := engine.New(schema, history.NewLog(),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithIDGenerator(testutil.NewCountingIDGenerator("p")),
		engine.WithAfterFunc(testutil.NewFakeClock().AfterFunc),
		engine.WithRecorder(rec),
	)
	drive(e)
	e.Drain()
	e.Stop()
	return sess.ID
}

// openAndClose opens the dashboard and a modal, then closes the modal.
func openAndClose(e *engine.Engine) {
	e.Open(0, "dash")
	e.Open(1, "dash/modal", "classModal")
	e.Close()
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "navsync.db")
}
