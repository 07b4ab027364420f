package engine

import "time"

// SecretGate counts qualifying UI events and opens the admin stack once
// Threshold of them arrive with no gap longer than Window.
//
// Every signal bumps the generation and re-arms the timer. An expiry that
// carries an old generation lost the race with a newer signal and is ignored.
type SecretGate struct {
	threshold int
	window    time.Duration

	count int
	gen   int64
	stop  func() bool

	afterFunc AfterFunc
	fire      func(gen int64)
}

func newSecretGate(threshold int, window time.Duration, af AfterFunc, fire func(gen int64)) *SecretGate {
	return &SecretGate{
		threshold: threshold,
		window:    window,
		afterFunc: af,
		fire:      fire,
	}
}

// signal counts one event and reports whether the threshold was reached.
func (g *SecretGate) signal() bool {
	g.count++
	g.gen++
	g.disarm()

	if g.count >= g.threshold {
		g.count = 0
		return true
	}

	gen := g.gen
	g.stop = g.afterFunc(g.window, func() { g.fire(gen) })
	return false
}

// expire resets the counter if gen is current. Reports whether it did.
func (g *SecretGate) expire(gen int64) bool {
	if gen != g.gen || g.count == 0 {
		return false
	}
	g.count = 0
	g.stop = nil
	return true
}

func (g *SecretGate) disarm() {
	if g.stop != nil {
		g.stop()
		g.stop = nil
	}
}

// Count returns the number of signals since the last reset.
func (g *SecretGate) Count() int {
	return g.count
}
