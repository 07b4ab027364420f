package engine

import "sync/atomic"

// Clock hands out transition sequence numbers, starting at 1. Sequence
// numbers are the only notion of time a transition carries, so a replay
// numbers its transitions exactly like the recording did.
type Clock struct {
	last atomic.Int64
}

func NewClock() *Clock { return new(Clock) }

func (c *Clock) Next() int64 { return c.last.Add(1) }
