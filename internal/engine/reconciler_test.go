package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GuLp-St/Attendance-Studio/internal/history"
	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

func TestLookupReaction(t *testing.T) {
	tests := []struct {
		from, to ir.StateKind
		want     reaction
		listed   bool
	}{
		{ir.StateBase, ir.StateOutside, reactAll, true},
		{ir.StateDetail, ir.StateBase, 0, true},
		{ir.StateConfirm, ir.StateDetail, reactAbandonConfirm, true},
		{ir.StateAdmin, ir.StateBase, reactCloseGate, true},
		{ir.StateBase, ir.StateAdmin, reactExitSession, true},
		{ir.StateOutside, ir.StateOverlay, reactAll, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			got, listed := lookupReaction(tt.from, tt.to)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.listed, listed)
		})
	}
}

func TestTransitionTable_EveryStateLeavesToOutside(t *testing.T) {
	for from, row := range transitionTable {
		if from == ir.StateOutside {
			continue
		}
		r, ok := row[ir.StateOutside]
		assert.True(t, ok, "%s has no outside entry", from)
		assert.Equal(t, reactAll, r, "%s -> outside", from)
	}
}

func TestClassify(t *testing.T) {
	f := newFixture(t, "", "elsewhere")
	f.openModal("classModal")
	e := f.eng

	tests := []struct {
		entry history.Entry
		state ir.StateKind
		obs   observation
	}{
		{history.Entry{Index: 2, Token: "dash"}, ir.StateBase, obsLevel},
		{history.Entry{Index: 3, Token: "dash/modal"}, ir.StateDetail, obsLevel},
		{history.Entry{Index: 5, Token: "dash/modal"}, ir.StateOutside, obsStale},
		{history.Entry{Index: 0, Token: ""}, ir.StateOutside, obsRoot},
		{history.Entry{Index: 1, Token: "elsewhere"}, ir.StateOutside, obsOrphan},
		{history.Entry{Index: 4, Token: "confirm"}, ir.StateOutside, obsBypass},
		{history.Entry{Index: 4, Token: "dash/unknown"}, ir.StateOutside, obsStale},
	}
	for _, tt := range tests {
		t.Run(string(tt.entry.Token), func(t *testing.T) {
			state, obs := e.classify(tt.entry)
			assert.Equal(t, tt.state, state)
			assert.Equal(t, tt.obs, obs)
		})
	}

	e.Confirm("Sure?")
	f.drain()
	state, obs := e.classify(history.Entry{Index: 4, Token: "confirm"})
	assert.Equal(t, ir.StateConfirm, state)
	assert.Equal(t, obsConfirm, obs)
}
