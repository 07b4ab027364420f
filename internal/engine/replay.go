package engine

// # Replay
//
// A recorded session is the ordered list of transitions the engine produced.
// Replay rebuilds a fresh engine over a fresh history log seeded with the
// same initial entries and feeds it the recorded inputs. Determinism is
// structural: there is no replay mode, the same process() path runs.
//
// ## Ordering
//
// Live, an input could be queued ahead of a notification that was already
// scheduled, so replay does not simply enqueue inputs:
//
//	recorded input     -> Apply (processed immediately, ahead of the queue)
//	recorded navigate  -> Step  (the next queued notification)
//
// Expiries are inputs too. The replay engine runs with NoTimers so only the
// recorded expiries fire, carrying the generation they fired with live.
//
// ## Verification
//
// Each produced transition is compared to the recorded one through its
// canonical record form. The first mismatch is reported as a Divergence;
// later ones usually cascade from it.

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/GuLp-St/Attendance-Studio/internal/history"
	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

// Divergence describes the first replayed transition that differed.
type Divergence struct {
	Seq  int64
	Want ir.Transition
	Got  ir.Transition
}

func (d *Divergence) Error() string {
	return fmt.Sprintf("replay diverged at seq %d: want %s %s->%s %v, got %s %s->%s %v",
		d.Seq,
		d.Want.Kind, d.Want.From, d.Want.To, d.Want.Flags,
		d.Got.Kind, d.Got.From, d.Got.To, d.Got.Flags,
	)
}

// ReplayResult summarizes a replay run.
type ReplayResult struct {
	Replayed   int
	Divergence *Divergence
	Trace      []ir.Transition
}

// EventFromTransition rebuilds the input event that produced t.
func EventFromTransition(t ir.Transition) (Event, error) {
	typ, ok := eventTypeForKind(t.Kind)
	if !ok {
		return Event{}, fmt.Errorf("unknown event kind %q", t.Kind)
	}
	if !t.Kind.IsInput() {
		return Event{}, fmt.Errorf("%s events are produced by history, not replayed", t.Kind)
	}
	ev := Event{Type: typ, Request: t.Request}
	if typ == EventTypeConfirm {
		ev.Pending = newPending(t.Request.PendingID, t.Request.Message)
	}
	return ev, nil
}

// Replay re-runs recorded transitions against schema and verifies that the
// engine produces them again.
func Replay(schema *ir.Schema, initial []ir.Token, recorded []ir.Transition, logger *slog.Logger) (*ReplayResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	e := New(schema, history.NewLog(initial...),
		WithAfterFunc(NoTimers),
		WithLogger(logger),
	)
	defer e.Stop()

	res := &ReplayResult{}
	for _, want := range recorded {
		var got ir.Transition
		if want.Kind == ir.KindNavigate {
			tr, ok := e.Step()
			if !ok {
				res.Divergence = &Divergence{Seq: want.Seq, Want: want}
				return res, nil
			}
			got = tr
		} else {
			ev, err := EventFromTransition(want)
			if err != nil {
				return res, fmt.Errorf("seq %d: %w", want.Seq, err)
			}
			got = e.Apply(ev)
		}

		res.Trace = append(res.Trace, got)
		res.Replayed++

		same, err := sameRecord(want, got)
		if err != nil {
			return res, fmt.Errorf("seq %d: %w", want.Seq, err)
		}
		if !same {
			res.Divergence = &Divergence{Seq: want.Seq, Want: want, Got: got}
			return res, nil
		}
	}
	return res, nil
}

func sameRecord(a, b ir.Transition) (bool, error) {
	ab, err := ir.MarshalCanonical(a.RecordMap())
	if err != nil {
		return false, err
	}
	bb, err := ir.MarshalCanonical(b.RecordMap())
	if err != nil {
		return false, err
	}
	return bytes.Equal(ab, bb), nil
}
