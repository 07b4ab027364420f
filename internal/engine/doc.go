// Package engine keeps visible overlays in lock-step with the history log.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Every UI intent (open, close, confirm, answer, gestures, gate signals),
// every history notification and every gate timer expiry is an Event on one
// FIFO queue. Run (or Drain/Step in tests) applies them one at a time, so the
// stacks, the confirmation slot and the gate counter never need locks.
//
// Components:
//   - Stack: levels opened in one token namespace, pinned to history indices
//   - Broker: the single confirmation slot and its Pending future
//   - SecretGate: debounce counter that opens the admin stack
//   - reconciler: transition table applied on every notification
//
// Closing never clears flags directly. Close asks the log to go back, and the
// resulting notification is reconciled exactly like a physical back gesture,
// which is what makes one back equal one close.
//
// The base level is never implied. Until Open(0, ...) records it the engine
// is outside every stack and deeper opens are rejected.
//
// Logical Clock:
// Every processed event gets a seq from Clock.Next(). Wall-clock time is only
// used by the gate timer and never appears in a transition.
package engine
