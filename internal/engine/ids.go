package engine

import (
	"time"

	"github.com/google/uuid"
)

// IDGenerator produces pending confirmation IDs. Tests swap in
// testutil.CountingIDGenerator for stable IDs.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 strings, which keeps
// confirmations ordered by creation in trace output.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate panics if UUID generation fails, which only happens when the
// system random source is broken.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// AfterFunc arms a one-shot timer and returns its stop function.
// The callback runs on an arbitrary goroutine.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func wallAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// NoTimers never fires. Replay uses it because expiries are re-fed from the
// recorded trace instead.
func NoTimers(time.Duration, func()) func() bool {
	return func() bool { return false }
}
