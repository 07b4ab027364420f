package engine

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GuLp-St/Attendance-Studio/internal/compiler"
	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

// recordSession drives a live engine through a session touching every
// event kind and returns the recorded transitions.
func recordSession(t *testing.T) []ir.Transition {
	t.Helper()
	f := newFixture(t)
	rec := &sliceRecorder{}
	f.eng.recorder = rec

	f.eng.Open(0, "dash")
	f.eng.Open(1, "dash/modal", "classModal")
	f.drain()
	f.eng.Open(1, "dash/modal", "orgModal")
	f.eng.Confirm("Delete?")
	f.drain()
	f.eng.Back()
	f.eng.Answer(true)
	f.drain()
	f.eng.Close()
	f.eng.Open(1, "dash/modal", "profileModal")
	f.drain()
	f.signals(2)
	f.clock.Advance(2 * time.Second)
	f.drain()
	f.signals(5)
	f.eng.Open(1, "admin/tag", "deviceTagEditor")
	f.eng.CloseGate()
	f.eng.CloseGate()
	f.drain()
	f.eng.Forward()
	f.eng.Back()
	f.eng.Back()
	f.eng.Back()
	f.drain()

	require.NotEmpty(t, rec.trs)
	return rec.trs
}

func TestReplay_RoundTrip(t *testing.T) {
	recorded := recordSession(t)

	res, err := Replay(compiler.MustDefault(), nil, recorded, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.Nil(t, res.Divergence)
	assert.Equal(t, len(recorded), res.Replayed)
	assert.Equal(t, recorded, res.Trace)

	kinds := make(map[ir.EventKind]bool)
	for _, tr := range recorded {
		kinds[tr.Kind] = true
	}
	for _, k := range []ir.EventKind{ir.KindOpen, ir.KindClose, ir.KindConfirm, ir.KindAnswer, ir.KindGesture, ir.KindNavigate, ir.KindSignal, ir.KindExpire, ir.KindCloseGate} {
		assert.True(t, kinds[k], "session should exercise %s", k)
	}
}

func TestReplay_Divergence(t *testing.T) {
	recorded := recordSession(t)
	recorded[1].Flags = []ir.FlagID{"profileModal"}

	res, err := Replay(compiler.MustDefault(), nil, recorded, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Divergence)
	assert.Equal(t, recorded[1].Seq, res.Divergence.Seq)
	assert.Equal(t, 2, res.Replayed)
	assert.Contains(t, res.Divergence.Error(), "replay diverged at seq 2")
}

func TestReplay_DifferentSchemaDiverges(t *testing.T) {
	recorded := recordSession(t)

	schema := compiler.MustDefault()
	schema.Gate.Threshold = 6

	res, err := Replay(schema, nil, recorded, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Divergence)
	assert.Equal(t, ir.KindSignal, res.Divergence.Want.Kind)
}

func TestReplay_MissingNotification(t *testing.T) {
	recorded := []ir.Transition{
		{Seq: 1, Kind: ir.KindNavigate},
	}
	res, err := Replay(compiler.MustDefault(), nil, recorded, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Divergence)
	assert.Equal(t, int64(1), res.Divergence.Seq)
}

func TestEventFromTransition(t *testing.T) {
	ev, err := EventFromTransition(ir.Transition{
		Kind:    ir.KindConfirm,
		Request: ir.Request{Message: "Delete?", PendingID: "c-9"},
	})
	require.NoError(t, err)
	assert.Equal(t, EventTypeConfirm, ev.Type)
	require.NotNil(t, ev.Pending)
	assert.Equal(t, "c-9", ev.Pending.ID)

	ev, err = EventFromTransition(ir.Transition{Kind: ir.KindExpire, Request: ir.Request{Gen: 4}})
	require.NoError(t, err)
	assert.Equal(t, int64(4), ev.Request.Gen)

	_, err = EventFromTransition(ir.Transition{Kind: ir.KindNavigate})
	assert.Error(t, err)

	_, err = EventFromTransition(ir.Transition{Kind: "teleport"})
	assert.Error(t, err)
}
