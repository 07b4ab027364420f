package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession inserts a session with minimal required fields.
func createTestSession(t *testing.T, s *Store, id string) Session {
	t.Helper()
	sess := Session{
		ID:            id,
		SchemaHash:    "test-hash",
		Initial:       []ir.Token{},
		EngineVersion: "0.1.0",
		TraceVersion:  "1",
	}
	if err := s.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	return sess
}

// createTestTransition creates an open transition at seq.
func createTestTransition(seq int64, token ir.Token, depth int, flags ...ir.FlagID) ir.Transition {
	active := []ir.FlagID{}
	active = append(active, flags...)
	return ir.Transition{
		Seq:     seq,
		Kind:    ir.KindOpen,
		Request: ir.Request{Depth: depth, Token: token, Flags: flags},
		Index:   int(seq),
		Token:   token,
		From:    ir.StateBase,
		To:      ir.StateDetail,
		Depth:   depth,
		Flags:   active,
		Effects: []ir.Effect{ir.EffectRecord},
	}
}
