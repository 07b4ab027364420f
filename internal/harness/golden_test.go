package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

func TestGolden_ScenarioA(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "scenario_a_open_close.yaml"))
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestMarshalTrace_Deterministic(t *testing.T) {
	trace := []ir.Transition{
		{Seq: 1, Kind: ir.KindOpen, Request: ir.Request{Token: "dash"}, Index: 1, Token: "dash",
			From: ir.StateOutside, To: ir.StateBase, Flags: []ir.FlagID{}, Effects: []ir.Effect{ir.EffectRecord}},
	}

	a, err := MarshalTrace("x", trace)
	require.NoError(t, err)
	b, err := MarshalTrace("x", trace)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	assert.NotContains(t, string(a), "request", "golden traces leave requests out")
	assert.Contains(t, string(a), `"scenario_name":"x"`)
}
