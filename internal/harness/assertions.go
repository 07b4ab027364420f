package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/GuLp-St/Attendance-Studio/internal/engine"
	"github.com/GuLp-St/Attendance-Studio/internal/ir"
	"github.com/GuLp-St/Attendance-Studio/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string          // Assertion type for categorization
	Expected string          // Human-readable expected outcome
	Actual   string          // Human-readable actual outcome
	Trace    []ir.Transition // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, t := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", t.Seq, formatTransition(t))
		}
	}
	return buf.String()
}

// formatTransition renders one trace line.
func formatTransition(t ir.Transition) string {
	line := fmt.Sprintf("%-10s %s->%s index=%d token=%q depth=%d flags=%v effects=%v",
		t.Kind, t.From, t.To, t.Index, t.Token, t.Depth, t.Flags, t.Effects)
	if t.Error != "" {
		line += " error=" + t.Error
	}
	return line
}

// matchTransition reports whether t satisfies every filter set in a.
func matchTransition(t ir.Transition, a Assertion) bool {
	if a.Kind != "" && string(t.Kind) != a.Kind {
		return false
	}
	if a.Token != "" && string(t.Token) != a.Token {
		return false
	}
	if a.Effect != "" && !t.HasEffect(ir.Effect(a.Effect)) {
		return false
	}
	if a.Error != "" && t.Error != a.Error {
		return false
	}
	return true
}

func describeFilter(a Assertion) string {
	var parts []string
	if a.Kind != "" {
		parts = append(parts, "kind="+a.Kind)
	}
	if a.Token != "" {
		parts = append(parts, "token="+a.Token)
	}
	if a.Effect != "" {
		parts = append(parts, "effect="+a.Effect)
	}
	if a.Error != "" {
		parts = append(parts, "error="+a.Error)
	}
	return strings.Join(parts, " ")
}

// assertTraceContains checks that some transition matches the filters.
func assertTraceContains(trace []ir.Transition, assertion Assertion) error {
	for _, t := range trace {
		if matchTransition(t, assertion) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("transition with %s", describeFilter(assertion)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that effects first appear in the listed order.
// Intervening transitions are allowed, and two effects of one transition
// count in the order the transition lists them.
func assertTraceOrder(trace []ir.Transition, assertion Assertion) error {
	// Position is (transition index, effect index), flattened.
	positions := make(map[string]int)
	pos := 0
	for _, t := range trace {
		for _, eff := range t.Effects {
			pos++
			if _, seen := positions[string(eff)]; !seen {
				positions[string(eff)] = pos
			}
		}
	}

	for _, eff := range assertion.Effects {
		if positions[eff] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all effects present: %v", assertion.Effects),
				Actual:   fmt.Sprintf("missing effect: %s", eff),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Effects); i++ {
		prev := assertion.Effects[i-1]
		curr := assertion.Effects[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("effects in order: %v", assertion.Effects),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that exactly Count transitions match.
func assertTraceCount(trace []ir.Transition, assertion Assertion) error {
	count := 0
	for _, t := range trace {
		if matchTransition(t, assertion) {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d transitions with %s", assertion.Count, describeFilter(assertion)),
			Actual:   fmt.Sprintf("%d transitions", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks the last snapshot against an expect clause.
func assertFinalState(h *Harness, assertion Assertion) error {
	msgs := h.checkExpect(assertion.Expect)
	if len(msgs) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: "final snapshot to match expect clause",
		Actual:   strings.Join(msgs, "; "),
	}
}

// assertReplay reads the recorded session back from the trace store and
// replays it against a fresh engine.
func assertReplay(actx *AssertionContext) error {
	recorded, err := actx.Store.ReadTransitions(actx.Ctx, actx.Session.ID)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	res, err := engine.Replay(actx.Schema, actx.Session.Initial, recorded, actx.Harness.logger)
	if err != nil {
		return &AssertionError{
			Type:     AssertReplay,
			Expected: "recorded session to replay",
			Actual:   err.Error(),
		}
	}
	if res.Divergence != nil {
		return &AssertionError{
			Type:     AssertReplay,
			Expected: fmt.Sprintf("%d transitions replayed identically", len(recorded)),
			Actual:   res.Divergence.Error(),
			Trace:    recorded,
		}
	}
	return nil
}

// AssertionContext provides what assertions need beyond the trace.
type AssertionContext struct {
	Ctx     context.Context
	Store   *store.Store
	Session store.Session
	Schema  *ir.Schema
	Harness *Harness
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.Harness == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires a harness", i)
			} else {
				err = assertFinalState(actx.Harness, assertion)
			}
		case AssertReplay:
			if actx == nil || actx.Store == nil || actx.Harness == nil {
				err = fmt.Errorf("assertion[%d]: replay requires the trace store", i)
			} else {
				err = assertReplay(actx)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
