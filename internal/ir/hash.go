package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the
// algorithm to change without colliding with older hashes.
const (
	DomainSchema = "navsync/schema/v1"
	DomainTrace  = "navsync/trace/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SchemaHash identifies a compiled schema. Sessions recorded under one hash
// can only be replayed against the same schema.
func SchemaHash(s *Schema) (string, error) {
	data, err := MarshalCanonical(s.ToMap())
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}
	return hashWithDomain(DomainSchema, data), nil
}

// TraceHash summarizes a sequence of transitions.
func TraceHash(trace []Transition) (string, error) {
	items := make([]any, len(trace))
	for i, t := range trace {
		items[i] = t.RecordMap()
	}
	data, err := MarshalCanonical(items)
	if err != nil {
		return "", fmt.Errorf("marshal trace: %w", err)
	}
	return hashWithDomain(DomainTrace, data), nil
}

// ToMap converts the schema to its canonical map form.
func (s *Schema) ToMap() map[string]any {
	stacks := make([]any, len(s.Stacks))
	for i, st := range s.Stacks {
		levels := make([]any, len(st.Levels))
		for j, l := range st.Levels {
			levels[j] = map[string]any{
				"name":   l.Name,
				"token":  string(l.Token),
				"depth":  l.Depth,
				"state":  l.State.String(),
				"flags":  flagsToAny(l.Flags),
				"parent": string(l.Parent),
			}
		}
		stacks[i] = map[string]any{
			"name":          st.Name,
			"namespace":     st.Namespace,
			"exits_session": st.ExitsSession,
			"levels":        levels,
		}
	}
	bypass := make([]any, len(s.Bypass))
	for i, b := range s.Bypass {
		bypass[i] = string(b)
	}
	return map[string]any{
		"max_depth": s.MaxDepth,
		"stacks":    stacks,
		"confirm": map[string]any{
			"token": string(s.Confirm.Token),
			"flag":  string(s.Confirm.Flag),
		},
		"bypass": bypass,
		"gate": map[string]any{
			"stack":     s.Gate.Stack,
			"threshold": s.Gate.Threshold,
			"window_ms": s.Gate.WindowMS,
		},
	}
}
