package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

func sampleTrace() []ir.Transition {
	return []ir.Transition{
		{Seq: 1, Kind: ir.KindOpen, Token: "dash", To: ir.StateBase, Effects: []ir.Effect{ir.EffectRecord}},
		{Seq: 2, Kind: ir.KindNavigate, Token: "dash", To: ir.StateBase},
		{Seq: 3, Kind: ir.KindConfirm, Token: "dash", To: ir.StateBase, Effects: []ir.Effect{ir.EffectRecord}},
		{Seq: 4, Kind: ir.KindAnswer, Token: "dash", To: ir.StateBase,
			Effects: []ir.Effect{ir.EffectGoBack, ir.EffectResolveTrue}},
		{Seq: 5, Kind: ir.KindAnswer, Error: "STALE_RESOLUTION"},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Kind: "answer", Effect: "resolve_true"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Error: "STALE_RESOLUTION"}))

	err := assertTraceContains(trace, Assertion{Kind: "open", Effect: "go_back"})
	require.Error(t, err)
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AssertTraceContains, aerr.Type)
	assert.Contains(t, aerr.Expected, "kind=open effect=go_back")
	assert.Contains(t, err.Error(), "Full trace:")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Effects: []string{"record", "go_back", "resolve_true"}}))

	err := assertTraceOrder(trace, Assertion{Effects: []string{"resolve_true", "go_back"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should be before")

	err = assertTraceOrder(trace, Assertion{Effects: []string{"record", "exit_session"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing effect: exit_session")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Kind: "answer", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Effect: "record", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Kind: "close", Count: 0}))

	err := assertTraceCount(trace, Assertion{Kind: "navigate", Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 transitions")
}

func TestEvaluateAssertions_RequiresContext(t *testing.T) {
	result := NewResult()
	result.AddTrace(sampleTrace()...)

	msgs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, Kind: "open", Count: 1},
		{Type: AssertReplay},
		{Type: AssertFinalState, Expect: &ExpectClause{State: "base"}},
	}, nil)

	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "replay requires the trace store")
	assert.Contains(t, msgs[1], "final_state requires a harness")
}

func TestFormatTransition(t *testing.T) {
	line := formatTransition(sampleTrace()[4])
	assert.Contains(t, line, "answer")
	assert.Contains(t, line, "error=STALE_RESOLUTION")
}
