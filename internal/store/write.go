package store

import (
	"context"
	"fmt"

	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

// CreateSession inserts a session row.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) CreateSession(ctx context.Context, sess Session) error {
	initial, err := marshalTokens(sess.Initial)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, schema_hash, initial, engine_version, trace_version)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		sess.ID,
		sess.SchemaHash,
		initial,
		sess.EngineVersion,
		sess.TraceVersion,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// WriteTransition appends one transition to a session.
// Uses ON CONFLICT DO NOTHING so writing the same seq twice keeps the first
// record.
//
// Note: The session must exist (foreign key constraint).
func (s *Store) WriteTransition(ctx context.Context, sessionID string, t ir.Transition) error {
	record, err := marshalRecord(t)
	if err != nil {
		return fmt.Errorf("write transition: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transitions (session_id, seq, kind, token, record, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`,
		sessionID,
		t.Seq,
		string(t.Kind),
		string(t.Token),
		record,
		t.Error,
	)
	if err != nil {
		return fmt.Errorf("write transition: %w", err)
	}
	return nil
}
