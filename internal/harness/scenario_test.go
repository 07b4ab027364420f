package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario_Valid(t *testing.T) {
	src := `
name: valid
description: "open and close"
initial: ["", "landing"]
steps:
  - do: open
    token: dash
  - do: confirm
    message: "Sure?"
    as: q
  - do: answer
    pending: q
    yes: true
    expect:
      state: base
      flags: []
      resolved: { q: true }
assertions:
  - type: trace_count
    kind: open
    count: 1
`
	s, err := ParseScenario([]byte(src))
	require.NoError(t, err)

	assert.Equal(t, "valid", s.Name)
	assert.Equal(t, []string{"", "landing"}, s.Initial)
	require.Len(t, s.Steps, 3)
	assert.Equal(t, StepOpen, s.Steps[0].Do)
	assert.Equal(t, "q", s.Steps[2].Pending)

	exp := s.Steps[2].Expect
	require.NotNil(t, exp)
	require.NotNil(t, exp.Flags)
	assert.Empty(t, *exp.Flags, "an empty list is an explicit expectation")
	assert.Nil(t, exp.Depth)
	assert.Equal(t, map[string]bool{"q": true}, exp.Resolved)
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "unknown field",
			src:  "name: x\ndescription: y\nstep: []\n",
			want: "field step not found",
		},
		{
			name: "missing name",
			src:  "description: y\nsteps: [{do: back}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			src:  "name: x\nsteps: [{do: back}]\n",
			want: "description is required",
		},
		{
			name: "no steps",
			src:  "name: x\ndescription: y\n",
			want: "steps list is required",
		},
		{
			name: "unknown step",
			src:  "name: x\ndescription: y\nsteps: [{do: jump}]\n",
			want: `unknown step type "jump"`,
		},
		{
			name: "open without token",
			src:  "name: x\ndescription: y\nsteps: [{do: open, depth: 1}]\n",
			want: "token is required for open",
		},
		{
			name: "advance without ms",
			src:  "name: x\ndescription: y\nsteps: [{do: advance}]\n",
			want: "ms must be positive",
		},
		{
			name: "answer unknown label",
			src:  "name: x\ndescription: y\nsteps: [{do: answer, pending: q}]\n",
			want: `unknown confirmation label "q"`,
		},
		{
			name: "duplicate label",
			src:  "name: x\ndescription: y\nsteps: [{do: confirm, as: q}, {do: confirm, as: q}]\n",
			want: `label "q" already used`,
		},
		{
			name: "bad expected state",
			src:  "name: x\ndescription: y\nsteps: [{do: back, expect: {state: floating}}]\n",
			want: "steps[0].expect",
		},
		{
			name: "unknown assertion",
			src:  "name: x\ndescription: y\nsteps: [{do: back}]\nassertions: [{type: trace_size}]\n",
			want: `unknown assertion type "trace_size"`,
		},
		{
			name: "trace_order without effects",
			src:  "name: x\ndescription: y\nsteps: [{do: back}]\nassertions: [{type: trace_order}]\n",
			want: "effects list is required",
		},
		{
			name: "final_state without expect",
			src:  "name: x\ndescription: y\nsteps: [{do: back}]\nassertions: [{type: final_state}]\n",
			want: "expect is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_ResolvesSchemaPath(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "custom_schema_gate.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "schemas", "quick_gate.cue"), s.Schema)
}

func TestLoadScenario_MissingSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\ndescription: y\nschema: nope.cue\nsteps: [{do: back}]\n"), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema not found")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
