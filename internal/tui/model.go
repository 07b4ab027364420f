package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/GuLp-St/Attendance-Studio/internal/engine"
	"github.com/GuLp-St/Attendance-Studio/internal/history"
	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

// Model is the dashboard program. It never changes visibility itself: keys
// become engine intents and the view is rendered from the latest snapshot.
type Model struct {
	engine *engine.Engine
	log    *history.Log
	feed   *Feed
	logger *slog.Logger

	keys keyMap
	help help.Model

	snap   engine.Snapshot
	status string

	width  int
	height int
}

// Option configures a Model.
type Option func(*Model)

// WithHistory shows the history log next to the dashboard.
func WithHistory(l *history.Log) Option {
	return func(m *Model) { m.log = l }
}

// WithLogger sets the logger for dropped results and absorbed errors.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) { m.logger = l }
}

// NewModel builds the dashboard over e. feed must be the observer e was
// created with.
func NewModel(e *engine.Engine, feed *Feed, opts ...Option) Model {
	m := Model{
		engine: e,
		feed:   feed,
		logger: slog.Default(),
		keys:   defaultKeyMap(),
		help:   help.New(),
		snap:   e.Snapshot(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// confirmResultMsg is the settled value of a confirmation asked from token.
type confirmResultMsg struct {
	id     string
	origin ir.Token
	yes    bool
	err    error
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.feed.wait()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case snapshotMsg:
		if n := msg.snap.ExitCount - m.snap.ExitCount; n > 0 {
			m.status = "session ended"
		}
		m.snap = msg.snap
		return m, m.feed.wait()

	case confirmResultMsg:
		return m.settled(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	e := m.engine
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Open):
		m.open(int(msg.String()[0] - '1'))
	case key.Matches(msg, m.keys.Sibling):
		m.cycleSibling()
	case key.Matches(msg, m.keys.Close):
		e.Close()
	case key.Matches(msg, m.keys.Back):
		e.Back()
	case key.Matches(msg, m.keys.Forward):
		e.Forward()
	case key.Matches(msg, m.keys.Confirm):
		return m, m.confirm()
	case key.Matches(msg, m.keys.Yes):
		e.Answer(true)
	case key.Matches(msg, m.keys.No):
		e.Answer(false)
	case key.Matches(msg, m.keys.Blur):
		e.Signal()
	case key.Matches(msg, m.keys.Gate):
		e.CloseGate()
	}
	return m, nil
}

// open requests the n-th choice one level above the current one.
func (m *Model) open(n int) {
	choices := m.choices()
	if n < 0 || n >= len(choices) {
		return
	}
	c := choices[n]
	if c.flag == "" {
		m.engine.Open(c.level.Depth, c.level.Token)
		return
	}
	m.engine.Open(c.level.Depth, c.level.Token, c.flag)
}

// cycleSibling replaces the current level with its next flag.
func (m *Model) cycleSibling() {
	lvl, ok := m.engine.Schema().Level(m.snap.Token)
	if !ok || len(lvl.Flags) < 2 {
		return
	}
	next := lvl.Flags[0]
	for i, f := range lvl.Flags {
		if m.snap.Has(f) {
			next = lvl.Flags[(i+1)%len(lvl.Flags)]
			break
		}
	}
	m.engine.Open(lvl.Depth, lvl.Token, next)
}

// confirm asks for a confirmation and waits for its result off the loop.
func (m *Model) confirm() tea.Cmd {
	var origin ir.Token
	if m.snap.State != ir.StateOutside {
		origin = m.snap.Token
	}
	p := m.engine.Confirm(confirmMessage(m.snap))
	return func() tea.Msg {
		yes, err := p.Wait(context.Background())
		return confirmResultMsg{id: p.ID, origin: origin, yes: yes, err: err}
	}
}

// settled applies a confirmation result unless the level that asked for it
// is gone. A confirmation asked from outside the session has no such level.
func (m Model) settled(msg confirmResultMsg) Model {
	switch {
	case errors.Is(msg.err, engine.ErrStopped):
		return m
	case msg.origin != "" && !m.engine.Visible(msg.origin):
		m.logger.Debug("dropping late confirmation", "pending", msg.id, "origin", msg.origin)
		m.status = fmt.Sprintf("result dropped: %s is closed", msg.origin)
	case msg.yes:
		m.status = "deleted"
	default:
		m.status = "kept"
	}
	return m
}

type choice struct {
	level ir.LevelSpec
	flag  ir.FlagID
}

// choices lists what the number keys open from the current position: the
// base level when outside, otherwise the flags of the next deeper level.
func (m Model) choices() []choice {
	schema := m.engine.Schema()
	st, ok := schema.StackFor(m.snap.Token)
	if !ok || m.snap.State == ir.StateOutside {
		for _, s := range schema.Stacks {
			if s.ExitsSession && len(s.Levels) > 0 {
				return levelChoices(s.Levels[0])
			}
		}
		return nil
	}
	lvl, ok := schema.Level(m.snap.Token)
	if !ok {
		return nil
	}
	for _, next := range st.Levels {
		if next.Depth == lvl.Depth+1 {
			return levelChoices(next)
		}
	}
	return nil
}

func levelChoices(l ir.LevelSpec) []choice {
	if len(l.Flags) == 0 {
		return []choice{{level: l}}
	}
	out := make([]choice, len(l.Flags))
	for i, f := range l.Flags {
		out[i] = choice{level: l, flag: f}
	}
	return out
}

func confirmMessage(s engine.Snapshot) string {
	if len(s.Flags) == 0 {
		return "Delete this record?"
	}
	return fmt.Sprintf("Delete from %s?", humanize(string(s.Flags[len(s.Flags)-1])))
}

// humanize turns a camelCase flag into words: "orgSearchModal" -> "org search".
func humanize(s string) string {
	s = strings.TrimSuffix(s, "Modal")
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte(' ')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
