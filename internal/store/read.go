package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

// ErrSessionNotFound is returned when a session ID has no row.
var ErrSessionNotFound = errors.New("session not found")

// GetSession returns the session with the given ID.
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, schema_hash, initial, engine_version, trace_version
		FROM sessions
		WHERE id = ?
	`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("get session %s: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return sess, nil
}

// ListSessions returns all sessions ordered by ID. IDs are UUIDv7, so this is
// creation order.
//
// Returns an empty slice (not nil) if the store has no sessions.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, schema_hash, initial, engine_version, trace_version
		FROM sessions
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// LatestSession returns the most recently created session.
func (s *Store) LatestSession(ctx context.Context) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, schema_hash, initial, engine_version, trace_version
		FROM sessions
		ORDER BY id COLLATE BINARY DESC
		LIMIT 1
	`)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("latest session: %w", ErrSessionNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("latest session: %w", err)
	}
	return sess, nil
}

// ReadTransitions returns every transition of a session, ORDER BY seq ASC.
//
// Returns an empty slice (not nil) if the session has no transitions.
func (s *Store) ReadTransitions(ctx context.Context, sessionID string) ([]ir.Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record
		FROM transitions
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	return collectTransitions(rows)
}

// ReadTokenTransitions returns the transitions whose resulting token is token
// or one of its descendants, ORDER BY seq ASC.
func (s *Store) ReadTokenTransitions(ctx context.Context, sessionID string, token ir.Token) ([]ir.Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record
		FROM transitions
		WHERE session_id = ? AND (token = ? OR token LIKE ? ESCAPE '\')
		ORDER BY seq ASC
	`, sessionID, string(token), escapeLike(string(token))+"/%")
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	return collectTransitions(rows)
}

// Summary aggregates a recorded session.
type Summary struct {
	Transitions int
	LastSeq     int64
	ByKind      map[ir.EventKind]int
	Errors      map[string]int
}

// Summarize counts a session's transitions by kind and error code.
func (s *Store) Summarize(ctx context.Context, sessionID string) (Summary, error) {
	sum := Summary{
		ByKind: map[ir.EventKind]int{},
		Errors: map[string]int{},
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, error, COUNT(*), MAX(seq)
		FROM transitions
		WHERE session_id = ?
		GROUP BY kind, error
		ORDER BY kind ASC, error ASC
	`, sessionID)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize session: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind, code string
			count      int
			maxSeq     int64
		)
		if err := rows.Scan(&kind, &code, &count, &maxSeq); err != nil {
			return Summary{}, fmt.Errorf("scan summary: %w", err)
		}
		sum.Transitions += count
		sum.ByKind[ir.EventKind(kind)] += count
		if code != "" {
			sum.Errors[code] += count
		}
		if maxSeq > sum.LastSeq {
			sum.LastSeq = maxSeq
		}
	}
	if err := rows.Err(); err != nil {
		return Summary{}, fmt.Errorf("iterate summary: %w", err)
	}
	return sum, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var (
		sess    Session
		initial string
	)
	if err := row.Scan(&sess.ID, &sess.SchemaHash, &initial, &sess.EngineVersion, &sess.TraceVersion); err != nil {
		return Session{}, err
	}
	tokens, err := unmarshalTokens(initial)
	if err != nil {
		return Session{}, err
	}
	sess.Initial = tokens
	return sess, nil
}

func collectTransitions(rows *sql.Rows) ([]ir.Transition, error) {
	defer rows.Close()

	out := []ir.Transition{}
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t, err := unmarshalRecord(record)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return out, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
