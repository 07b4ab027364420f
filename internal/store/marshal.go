package store

import (
	"encoding/json"
	"fmt"

	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

// marshalRecord serializes a transition to canonical JSON TEXT.
// The bytes are the ones replay compares, so the record must round-trip
// through unmarshalRecord to an equal RecordMap.
func marshalRecord(t ir.Transition) (string, error) {
	data, err := ir.MarshalCanonical(t.RecordMap())
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	return string(data), nil
}

// unmarshalRecord parses a canonical record back into a Transition.
func unmarshalRecord(data string) (ir.Transition, error) {
	var t ir.Transition
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return ir.Transition{}, fmt.Errorf("unmarshal record: %w", err)
	}
	if t.Flags == nil {
		t.Flags = []ir.FlagID{}
	}
	if t.Effects == nil {
		t.Effects = []ir.Effect{}
	}
	return t, nil
}

// marshalTokens serializes the initial history entries as a canonical array.
func marshalTokens(tokens []ir.Token) (string, error) {
	items := make([]any, len(tokens))
	for i, tok := range tokens {
		items[i] = string(tok)
	}
	data, err := ir.MarshalCanonical(items)
	if err != nil {
		return "", fmt.Errorf("marshal initial: %w", err)
	}
	return string(data), nil
}

func unmarshalTokens(data string) ([]ir.Token, error) {
	if data == "" || data == "[]" {
		return []ir.Token{}, nil
	}
	var tokens []ir.Token
	if err := json.Unmarshal([]byte(data), &tokens); err != nil {
		return nil, fmt.Errorf("unmarshal initial: %w", err)
	}
	return tokens, nil
}
