package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/GuLp-St/Attendance-Studio/internal/engine"
)

// Feed carries engine snapshots into the program. Only the newest snapshot
// is kept; the view always renders the latest state.
type Feed struct {
	ch chan engine.Snapshot
}

// NewFeed creates a feed. Pass Observe to engine.WithObserver.
func NewFeed() *Feed {
	return &Feed{ch: make(chan engine.Snapshot, 1)}
}

// Observe publishes s without blocking the engine loop.
func (f *Feed) Observe(s engine.Snapshot) {
	for {
		select {
		case f.ch <- s:
			return
		default:
		}
		select {
		case <-f.ch:
		default:
		}
	}
}

type snapshotMsg struct {
	snap engine.Snapshot
}

// wait blocks until the next snapshot.
func (f *Feed) wait() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg{snap: <-f.ch}
	}
}
