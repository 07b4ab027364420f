package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaHashDeterminism(t *testing.T) {
	h1, err := SchemaHash(testSchema())
	require.NoError(t, err)
	h2, err := SchemaHash(testSchema())
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestSchemaHashChangesWithSchema(t *testing.T) {
	base, err := SchemaHash(testSchema())
	require.NoError(t, err)

	s := testSchema()
	s.Gate.Threshold = 3
	changed, err := SchemaHash(s)
	require.NoError(t, err)
	assert.NotEqual(t, base, changed)

	s = testSchema()
	s.Bypass = nil
	changed, err = SchemaHash(s)
	require.NoError(t, err)
	assert.NotEqual(t, base, changed)
}

func TestTraceHash(t *testing.T) {
	trace := []Transition{
		{Seq: 1, Kind: KindOpen, Request: Request{Token: "dash"}, Index: 1, Token: "dash", To: StateBase},
	}
	h1, err := TraceHash(trace)
	require.NoError(t, err)

	trace[0].Request.Token = "admin"
	h2, err := TraceHash(trace)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2, "request is part of the recorded form")
}

func TestTransitionRecordDecodes(t *testing.T) {
	tr := Transition{
		Seq:     7,
		Kind:    KindOpen,
		Request: Request{Depth: 1, Token: "dash/modal", Flags: []FlagID{"classModal"}},
		Index:   2,
		Token:   "dash/modal",
		From:    StateBase,
		To:      StateDetail,
		Depth:   1,
		Flags:   []FlagID{"classModal"},
		Effects: []Effect{EffectRecord},
	}

	data, err := MarshalCanonical(tr.RecordMap())
	require.NoError(t, err)

	var decoded Transition
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, tr, decoded)
}
