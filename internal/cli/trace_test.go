package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GuLp-St/Attendance-Studio/internal/engine"
	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

func TestTrace_LatestSessionText(t *testing.T) {
	db := tempDB(t)
	recordSession(t, db, func(e *engine.Engine) { e.Open(0, "dash") })
	id := recordSession(t, db, openAndClose)

	out, err := executeCommand(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Trace for Session: "+id)
	assert.Contains(t, out, `[2] open       base -> detail "dash/modal" [record]`)
	assert.Contains(t, out, `[3] close      detail -> detail "dash/modal" [go_back]`)
	assert.Contains(t, out, "Transitions: 4 (last seq 4)")
	assert.Contains(t, out, "navigate:")
}

func TestTrace_VerboseShowsRequest(t *testing.T) {
	db := tempDB(t)
	recordSession(t, db, openAndClose)

	out, err := executeCommand(t, "trace", "--db", db, "-v")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema: ")
	assert.Contains(t, out, "index=2 depth=1 flags=[classModal]")
	assert.Contains(t, out, "request: depth=1 token=dash/modal flags=[classModal]")
}

func TestTrace_SessionAndTokenFilterJSON(t *testing.T) {
	db := tempDB(t)
	id := recordSession(t, db, openAndClose)
	recordSession(t, db, func(e *engine.Engine) { e.Open(0, "dash") })

	out, err := executeCommand(t, "trace", "--db", db, "--session", id, "--token", "dash/modal", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status    string      `json:"status"`
		SessionID string      `json:"session_id"`
		Data      TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, id, resp.SessionID)
	require.Len(t, resp.Data.Timeline, 2)
	for _, tr := range resp.Data.Timeline {
		assert.Equal(t, ir.Token("dash/modal"), tr.Token)
	}
	assert.Equal(t, 4, resp.Data.Stats.Transitions, "stats cover the whole session")
	assert.Equal(t, 2, resp.Data.Stats.ByKind["open"])
}

func TestTrace_RecordsAbsorbedErrors(t *testing.T) {
	db := tempDB(t)
	recordSession(t, db, func(e *engine.Engine) { e.Answer(true) })

	out, err := executeCommand(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, " !")
	assert.Contains(t, out, "Transitions: 1 (last seq 1)")
}

func TestTrace_EmptyDatabase(t *testing.T) {
	db := tempDB(t)

	out, err := executeCommand(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found in database.")

	out, err = executeCommand(t, "trace", "--db", db, "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"timeline": []`)
}

func TestTrace_UnknownSession(t *testing.T) {
	db := tempDB(t)
	recordSession(t, db, openAndClose)

	_, err := executeCommand(t, "trace", "--db", db, "--session", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load session")
}

func TestTrace_DatabaseFromEnv(t *testing.T) {
	db := tempDB(t)
	id := recordSession(t, db, openAndClose)
	t.Setenv(EnvDatabase, db)

	out, err := executeCommand(t, "trace")
	require.NoError(t, err)
	assert.Contains(t, out, id)
}

func TestTrace_MissingDatabasePath(t *testing.T) {
	t.Setenv(EnvDatabase, "")

	_, err := executeCommand(t, "trace")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database path required")
}

func TestFormatRequest(t *testing.T) {
	assert.Equal(t, "", formatRequest(ir.Request{}))
	assert.Equal(t, "depth=0 token=dash", formatRequest(ir.Request{Token: "dash"}))
	assert.Equal(t, `message="Delete?" pending=p-1`, formatRequest(ir.Request{Message: "Delete?", PendingID: "p-1"}))
	assert.Equal(t, "yes=true", formatRequest(ir.Request{Yes: true}))
	assert.Equal(t, "direction=back", formatRequest(ir.Request{Direction: ir.DirectionBack}))
	assert.Equal(t, "gen=3", formatRequest(ir.Request{Gen: 3}))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "0190b6f2...89abcdef", truncateID("0190b6f2-0000-7000-8000-0123456789abcdef"))
}
