package tui

import (
	"io"
	"log/slog"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GuLp-St/Attendance-Studio/internal/compiler"
	"github.com/GuLp-St/Attendance-Studio/internal/engine"
	"github.com/GuLp-St/Attendance-Studio/internal/history"
	"github.com/GuLp-St/Attendance-Studio/internal/ir"
	"github.com/GuLp-St/Attendance-Studio/internal/testutil"
)

type fixture struct {
	t      *testing.T
	engine *engine.Engine
	model  Model
	cmd    tea.Cmd
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	feed := NewFeed()
	log := history.NewLog()
	clock := testutil.NewFakeClock()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := engine.New(compiler.MustDefault(), log,
		engine.WithLogger(quiet),
		engine.WithAfterFunc(clock.AfterFunc),
		engine.WithIDGenerator(testutil.NewCountingIDGenerator("p")),
		engine.WithObserver(feed.Observe),
	)
	t.Cleanup(e.Stop)
	return &fixture{
		t:      t,
		engine: e,
		model:  NewModel(e, feed, WithHistory(log), WithLogger(quiet)),
	}
}

// press sends keys one at a time and lets the engine settle after each.
func (f *fixture) press(keys ...string) {
	f.t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, cmd := f.model.Update(msg)
		f.model = next.(Model)
		if cmd != nil {
			f.cmd = cmd
		}
		f.engine.Drain()
		next, _ = f.model.Update(snapshotMsg{snap: f.engine.Snapshot()})
		f.model = next.(Model)
	}
}

func TestModel_OpensDashboardAndModal(t *testing.T) {
	f := newFixture(t)
	assert.Contains(t, f.model.View(), "Signed out.")

	f.press("1")
	assert.Equal(t, ir.StateBase, f.model.snap.State)
	assert.Contains(t, f.model.View(), "Dashboard")
	assert.Contains(t, f.model.View(), "1  class")

	f.press("2")
	assert.Equal(t, ir.StateDetail, f.model.snap.State)
	assert.Equal(t, []ir.FlagID{"orgModal"}, f.model.snap.Flags)
	assert.Contains(t, f.model.View(), "org")
}

func TestModel_TabSwitchesSibling(t *testing.T) {
	f := newFixture(t)
	f.press("1", "1", "tab")

	assert.Equal(t, []ir.FlagID{"orgModal"}, f.model.snap.Flags)
	assert.Equal(t, 2, f.model.snap.Index, "sibling switch replaces the entry")
}

func TestModel_EscIsBackGesture(t *testing.T) {
	f := newFixture(t)
	f.press("1", "3", "esc")
	assert.Equal(t, ir.StateBase, f.model.snap.State)

	f.press("esc")
	assert.Equal(t, ir.StateOutside, f.model.snap.State)
	assert.Equal(t, "session ended", f.model.status)
}

func TestModel_ConfirmationResult(t *testing.T) {
	f := newFixture(t)
	f.press("1", "1", "d")
	require.NotNil(t, f.model.snap.Pending)
	assert.Contains(t, f.model.View(), "Delete from class?")

	f.press("y")
	require.NotNil(t, f.cmd)
	next, _ := f.model.Update(f.cmd())
	f.model = next.(Model)

	assert.Equal(t, "deleted", f.model.status)
	assert.Equal(t, ir.StateDetail, f.model.snap.State)
}

func TestModel_LateResultDropped(t *testing.T) {
	f := newFixture(t)
	f.press("1", "1", "d")
	// Back twice: abandons the confirmation, then closes the modal that asked.
	f.press("esc", "esc")
	require.NotNil(t, f.cmd)

	next, _ := f.model.Update(f.cmd())
	f.model = next.(Model)
	assert.Contains(t, f.model.status, "result dropped")
}

func TestModel_ConfirmOutsideSession(t *testing.T) {
	f := newFixture(t)
	f.press("d")
	require.NotNil(t, f.model.snap.Pending)
	assert.Contains(t, f.model.View(), "Delete this record?")

	f.press("n")
	require.NotNil(t, f.cmd)
	next, _ := f.model.Update(f.cmd())
	f.model = next.(Model)

	assert.Equal(t, "kept", f.model.status)
	assert.Equal(t, ir.StateOutside, f.model.snap.State)
}

func TestModel_SecretGate(t *testing.T) {
	f := newFixture(t)
	f.press("1", "b", "b", "b", "b")
	assert.Contains(t, f.model.View(), "••••")

	f.press("b")
	assert.True(t, f.model.snap.GateActive)
	assert.Equal(t, ir.StateAdmin, f.model.snap.State)
	assert.Contains(t, f.model.View(), "admin console")

	f.press("1")
	assert.Equal(t, ir.StateAdminTag, f.model.snap.State)

	f.press("g", "g")
	assert.False(t, f.model.snap.GateActive)
	assert.Equal(t, ir.StateBase, f.model.snap.State)
}

func TestModel_QuitAndHelp(t *testing.T) {
	f := newFixture(t)

	next, _ := f.model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	f.model = next.(Model)
	assert.True(t, f.model.help.ShowAll)

	_, cmd := f.model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestFeed_KeepsNewest(t *testing.T) {
	feed := NewFeed()
	feed.Observe(engine.Snapshot{Seq: 1})
	feed.Observe(engine.Snapshot{Seq: 2})

	msg := feed.wait()().(snapshotMsg)
	assert.Equal(t, int64(2), msg.snap.Seq)
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "org search", humanize("orgSearchModal"))
	assert.Equal(t, "autoscan mode selector", humanize("autoscanModeSelector"))
	assert.Equal(t, "admin console", humanize("adminConsole"))
}
