package engine

import (
	"sync"

	"github.com/GuLp-St/Attendance-Studio/internal/history"
	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeOpen requests a level to be shown.
	EventTypeOpen EventType = iota + 1
	// EventTypeClose requests the topmost level to be popped.
	EventTypeClose
	// EventTypeConfirm requests a yes/no confirmation.
	EventTypeConfirm
	// EventTypeAnswer settles the live confirmation.
	EventTypeAnswer
	// EventTypeGesture is a physical back/forward gesture.
	EventTypeGesture
	// EventTypeNavigated carries a history traversal notification.
	EventTypeNavigated
	// EventTypeSignal is one qualifying UI event for the secret gate.
	EventTypeSignal
	// EventTypeExpire is the secret gate debounce timer firing.
	EventTypeExpire
	// EventTypeCloseGate requests the admin stack to pop.
	EventTypeCloseGate
)

var eventKinds = map[EventType]ir.EventKind{
	EventTypeOpen:      ir.KindOpen,
	EventTypeClose:     ir.KindClose,
	EventTypeConfirm:   ir.KindConfirm,
	EventTypeAnswer:    ir.KindAnswer,
	EventTypeGesture:   ir.KindGesture,
	EventTypeNavigated: ir.KindNavigate,
	EventTypeSignal:    ir.KindSignal,
	EventTypeExpire:    ir.KindExpire,
	EventTypeCloseGate: ir.KindCloseGate,
}

// Kind returns the trace name of the event type.
func (t EventType) Kind() ir.EventKind {
	return eventKinds[t]
}

// isIntent reports whether the event is a UI intent that reads or writes
// navigation state. Gestures only move the log and need no catch-up.
func (t EventType) isIntent() bool {
	switch t {
	case EventTypeOpen, EventTypeClose, EventTypeConfirm, EventTypeAnswer, EventTypeSignal, EventTypeCloseGate:
		return true
	}
	return false
}

// eventTypeForKind is the inverse of Kind.
func eventTypeForKind(k ir.EventKind) (EventType, bool) {
	for t, kind := range eventKinds {
		if kind == k {
			return t, true
		}
	}
	return 0, false
}

// Event is one unit of work for the Run loop.
type Event struct {
	Type    EventType
	Request ir.Request

	// Pending is set for EventTypeConfirm.
	Pending *Pending

	// Notification is set for EventTypeNavigated.
	Notification *history.Notification
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded: UI intents, history notifications and timer
// expiries are enqueued from different goroutines and must never block the
// caller.
//
// The signal channel (buffered, size 1) enables context-aware waiting in the
// Run loop.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]
	// Release the pointers held by the slot.
	q.events[0] = Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel that signals when events may be available.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close stops accepting events and wakes any waiter.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
