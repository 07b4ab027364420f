package engine

import (
	"context"
	"sync"

	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

// Pending is the future returned by Engine.Confirm.
//
// It settles exactly once. The settled flag lives next to the result so that
// an answer racing with abandonment can never resolve twice; the loser is a
// no-op.
type Pending struct {
	ID      string
	Message string

	done chan struct{}

	mu      sync.Mutex
	settled bool
	value   bool
	err     error

	// Owned by the Run goroutine.
	ownerToken ir.Token
	ownerIndex int
	depth      int
}

func newPending(id, message string) *Pending {
	return &Pending{
		ID:      id,
		Message: message,
		done:    make(chan struct{}),
	}
}

// settle records the result. Returns false if already settled.
func (p *Pending) settle(value bool, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.settled {
		return false
	}
	p.settled = true
	p.value = value
	p.err = err
	close(p.done)
	return true
}

// Done is closed once the confirmation settles.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the confirmation settles or ctx is done.
func (p *Pending) Wait(ctx context.Context) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.value, p.err
	}
}

// Result returns the value and whether the confirmation has settled.
func (p *Pending) Result() (value bool, settled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, p.settled
}

// Err returns the error the confirmation settled with, if any.
func (p *Pending) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Broker is the single confirmation slot.
type Broker struct {
	slot     *Pending
	resolved int
}

// live returns the unsettled confirmation, if any.
func (b *Broker) live() *Pending {
	return b.slot
}

func (b *Broker) hold(p *Pending) {
	b.slot = p
}

// resolve clears the slot and settles its confirmation.
func (b *Broker) resolve(value bool) (*Pending, bool) {
	p := b.slot
	if p == nil {
		return nil, false
	}
	b.slot = nil
	if !p.settle(value, nil) {
		return p, false
	}
	b.resolved++
	return p, true
}

// visibleAt reports whether the live confirmation is on screen at cursor.
func (b *Broker) visibleAt(cursor int) (*Pending, bool) {
	if b.slot == nil || b.slot.ownerIndex > cursor {
		return nil, false
	}
	return b.slot, true
}
