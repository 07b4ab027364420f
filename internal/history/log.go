package history

import (
	"sort"
	"sync"

	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

// Log is an in-memory, append-only history log with a cursor.
//
// Thread-safety: all methods are safe for concurrent use. Subscribers are
// invoked after the lock is released, in subscription order.
type Log struct {
	mu       sync.Mutex
	entries  []Entry
	cursor   int
	version  uint64
	handlers map[int]Handler
	nextID   int
}

// NewLog creates a log seeded with the given tokens; the last one is current.
// With no tokens the log starts with a single root entry, which stands for
// whatever page the application was entered from.
func NewLog(initial ...ir.Token) *Log {
	if len(initial) == 0 {
		initial = []ir.Token{ir.TokenRoot}
	}
	l := &Log{handlers: make(map[int]Handler)}
	for i, tok := range initial {
		l.entries = append(l.entries, Entry{Index: i, Token: tok})
	}
	l.cursor = len(l.entries) - 1
	return l
}

// RecordEntry appends after the cursor, dropping forward entries.
func (l *Log) RecordEntry(token ir.Token, aux Aux) (Entry, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = l.entries[:l.cursor+1]
	e := Entry{Index: len(l.entries), Token: token, Aux: aux}
	l.entries = append(l.entries, e)
	l.cursor = e.Index
	l.version++
	return e, l.version
}

// ReplaceEntry overwrites the entry at the cursor. Forward entries survive,
// as they do in a browser.
func (l *Log) ReplaceEntry(token ir.Token, aux Aux) (Entry, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := Entry{Index: l.cursor, Token: token, Aux: aux}
	l.entries[l.cursor] = e
	l.version++
	return e, l.version
}

// GoBack moves one entry back and notifies subscribers.
func (l *Log) GoBack() {
	l.traverse(-1, ir.DirectionBack)
}

// GoForward moves one entry forward and notifies subscribers.
func (l *Log) GoForward() {
	l.traverse(1, ir.DirectionForward)
}

func (l *Log) traverse(delta int, dir ir.Direction) {
	l.mu.Lock()
	next := l.cursor + delta
	if next < 0 || next >= len(l.entries) {
		l.mu.Unlock()
		return
	}
	l.cursor = next
	n := Notification{Entry: l.entries[next], Direction: dir, Version: l.version}
	handlers := l.snapshotHandlers()
	l.mu.Unlock()

	for _, h := range handlers {
		h(n)
	}
}

// snapshotHandlers returns handlers in subscription order. Caller holds mu.
func (l *Log) snapshotHandlers() []Handler {
	ids := make([]int, 0, len(l.handlers))
	for id := range l.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Handler, len(ids))
	for i, id := range ids {
		out[i] = l.handlers[id]
	}
	return out
}

// Current returns the entry at the cursor.
func (l *Log) Current() Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries[l.cursor]
}

// Subscribe registers h. The returned function unsubscribes; calling it more
// than once is harmless.
func (l *Log) Subscribe(h Handler) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	l.handlers[id] = h
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.handlers, id)
	}
}

// Entries returns a copy of the whole log.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Version returns the number of record/replace mutations so far.
func (l *Log) Version() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.version
}

var _ Adapter = (*Log)(nil)
