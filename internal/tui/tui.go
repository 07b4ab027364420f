// Package tui is the interactive dashboard used by "navsync run". The engine
// owns every visibility decision; the program only turns keys into intents
// and renders snapshots.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the program and blocks until the user quits or ctx is done.
func Run(ctx context.Context, m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
