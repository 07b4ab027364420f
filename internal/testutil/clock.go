package testutil

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a manually advanced clock for timer-driven code.
//
// AfterFunc has the same shape as time.AfterFunc(...).Stop, so it can stand
// in for the real timer wherever a component takes a timer constructor.
// Callbacks run synchronously inside Advance, on the caller's goroutine.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	nextID int
	timers []*fakeTimer
}

type fakeTimer struct {
	id      int
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

// NewFakeClock creates a clock at time zero with no armed timers.
func NewFakeClock() *FakeClock {
	return &FakeClock{}
}

// Now returns the elapsed fake time.
func (c *FakeClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc arms f to run once d has elapsed. The returned stop function
// reports whether it prevented the call.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) func() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{id: c.nextID, at: c.now + d, f: f}
	c.nextID++
	c.timers = append(c.timers, t)

	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if t.stopped || t.fired {
			return false
		}
		t.stopped = true
		return true
	}
}

// Advance moves time forward by d and runs every timer that came due, in
// deadline order. Returns the number of callbacks run.
func (c *FakeClock) Advance(d time.Duration) int {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	var keep []*fakeTimer
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case t.at <= c.now:
			t.fired = true
			due = append(due, t)
		default:
			keep = append(keep, t)
		}
	}
	c.timers = keep
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool {
		if due[i].at != due[j].at {
			return due[i].at < due[j].at
		}
		return due[i].id < due[j].id
	})
	for _, t := range due {
		t.f()
	}
	return len(due)
}

// Armed returns the number of timers that are neither stopped nor fired.
func (c *FakeClock) Armed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}
