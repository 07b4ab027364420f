package store

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

// Session identifies one recorded engine run.
type Session struct {
	ID            string
	SchemaHash    string
	Initial       []ir.Token
	EngineVersion string
	TraceVersion  string
}

// NewSession builds a session for schema with a fresh UUIDv7 ID.
// initial lists the tokens the history log was seeded with.
func NewSession(schema *ir.Schema, initial []ir.Token) (Session, error) {
	hash, err := ir.SchemaHash(schema)
	if err != nil {
		return Session{}, fmt.Errorf("new session: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Session{}, fmt.Errorf("new session: %w", err)
	}
	tokens := make([]ir.Token, len(initial))
	copy(tokens, initial)
	return Session{
		ID:            id.String(),
		SchemaHash:    hash,
		Initial:       tokens,
		EngineVersion: ir.EngineVersion,
		TraceVersion:  ir.TraceVersion,
	}, nil
}
