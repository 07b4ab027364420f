package store

import (
	"context"

	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

// Recorder writes the transitions of one session. It satisfies the engine's
// Recorder interface.
type Recorder struct {
	store     *Store
	sessionID string
}

// NewRecorder creates sess and returns a recorder bound to it.
func (s *Store) NewRecorder(ctx context.Context, sess Session) (*Recorder, error) {
	if err := s.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return &Recorder{store: s, sessionID: sess.ID}, nil
}

// SessionID returns the session being recorded.
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// RecordTransition persists t.
func (r *Recorder) RecordTransition(ctx context.Context, t ir.Transition) error {
	return r.store.WriteTransition(ctx, r.sessionID, t)
}
