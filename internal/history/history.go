// Package history models the platform's linear back/forward log.
//
// The engine never owns history; it talks to an Adapter. Log is the
// in-process implementation used by the dashboard TUI, the scenario harness
// and replay. Recording is synchronous and silent. Traversal moves the cursor
// immediately and hands a Notification to subscribers, which must not assume
// they run on the caller's goroutine: the engine queues notifications and
// applies them after the event that caused the traversal, the same way a
// browser fires popstate after history.back() returns.
package history

import "github.com/GuLp-St/Attendance-Studio/internal/ir"

// Aux is the payload stored alongside an entry.
type Aux struct {
	// Owner is the stack name, or the confirmation token for confirm entries.
	Owner string `json:"owner,omitempty"`

	Depth int         `json:"depth"`
	Flags []ir.FlagID `json:"flags,omitempty"`

	// Tag marks sub-entries, e.g. the pending confirmation ID.
	Tag string `json:"tag,omitempty"`
}

// Entry is one position in the history log.
type Entry struct {
	Index int      `json:"index"`
	Token ir.Token `json:"token"`
	Aux   Aux      `json:"aux"`
}

// Notification reports that the current entry changed by traversal.
type Notification struct {
	Entry     Entry
	Direction ir.Direction

	// Version is the log version when the traversal happened. A notification
	// whose version is older than a later RecordEntry/ReplaceEntry describes a
	// position that no longer exists.
	Version uint64
}

// Handler receives traversal notifications.
type Handler func(Notification)

// Adapter is the platform history capability the engine depends on.
type Adapter interface {
	// RecordEntry appends an entry after the current one, discarding forward
	// entries, and makes it current. It does not notify subscribers.
	RecordEntry(token ir.Token, aux Aux) (Entry, uint64)

	// ReplaceEntry overwrites the current entry in place.
	ReplaceEntry(token ir.Token, aux Aux) (Entry, uint64)

	// GoBack requests one step back. No-op at the first entry.
	GoBack()

	// GoForward requests one step forward. No-op at the last entry.
	GoForward()

	// Current returns the entry the log currently points at.
	Current() Entry

	// Subscribe registers h and returns a function that removes it.
	Subscribe(h Handler) func()
}
