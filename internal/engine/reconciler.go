package engine

import (
	"github.com/GuLp-St/Attendance-Studio/internal/history"
	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

// reaction is the set of effects a transition may trigger. Each effect is
// still guarded by the real state when applied: exit only fires if a
// session stack lost its last visible level, and so on.
type reaction uint8

const (
	reactReset reaction = 1 << iota
	reactExitSession
	reactAbandonConfirm
	reactCloseGate
)

const reactAll = reactReset | reactExitSession | reactAbandonConfirm | reactCloseGate

// transitionTable maps (current state, observed state) to the reaction.
// Pairs missing from the table are not produced by single-step traversal;
// they are logged and handled with every guarded effect enabled.
var transitionTable = map[ir.StateKind]map[ir.StateKind]reaction{
	ir.StateOutside: {
		ir.StateOutside: 0,
		ir.StateBase:    0,
		ir.StateAdmin:   0,
	},
	ir.StateBase: {
		ir.StateOutside:  reactAll,
		ir.StateBase:     0,
		ir.StateDetail:   0,
		ir.StateConfirm:  0,
		ir.StateAdmin:    reactExitSession,
		ir.StateAdminTag: reactExitSession,
	},
	ir.StateDetail: {
		ir.StateOutside: reactAll,
		ir.StateBase:    0,
		ir.StateDetail:  0,
		ir.StateOverlay: 0,
		ir.StateConfirm: 0,
		ir.StateAdmin:   0,
	},
	ir.StateOverlay: {
		ir.StateOutside: reactAll,
		ir.StateDetail:  0,
		ir.StateOverlay: 0,
		ir.StateConfirm: 0,
		ir.StateAdmin:   0,
	},
	ir.StateConfirm: {
		ir.StateOutside:  reactAll,
		ir.StateBase:     reactAbandonConfirm,
		ir.StateDetail:   reactAbandonConfirm,
		ir.StateOverlay:  reactAbandonConfirm,
		ir.StateAdmin:    reactAbandonConfirm,
		ir.StateAdminTag: reactAbandonConfirm,
		ir.StateConfirm:  0,
	},
	ir.StateAdmin: {
		ir.StateOutside:  reactAll,
		ir.StateBase:     reactCloseGate,
		ir.StateDetail:   reactCloseGate,
		ir.StateOverlay:  reactCloseGate,
		ir.StateAdmin:    0,
		ir.StateAdminTag: 0,
		ir.StateConfirm:  0,
	},
	ir.StateAdminTag: {
		ir.StateOutside:  reactAll,
		ir.StateBase:     reactCloseGate,
		ir.StateDetail:   reactCloseGate,
		ir.StateOverlay:  reactCloseGate,
		ir.StateAdmin:    0,
		ir.StateAdminTag: 0,
		ir.StateConfirm:  0,
	},
}

// lookupReaction returns the table entry and whether the pair is listed.
func lookupReaction(from, to ir.StateKind) (reaction, bool) {
	row, ok := transitionTable[from]
	if !ok {
		return reactAll, false
	}
	r, ok := row[to]
	if !ok {
		return reactAll, false
	}
	return r, true
}

// observation says how a notified entry was recognized.
type observation int

const (
	obsLevel observation = iota
	obsConfirm
	obsBypass
	obsRoot
	obsStale
	obsPinned
	obsOrphan
)

// classify maps a history entry to the state it represents.
func (e *Engine) classify(entry history.Entry) (ir.StateKind, observation) {
	if p := e.broker.live(); p != nil && p.ownerIndex == entry.Index && p.ownerToken == entry.Token {
		return ir.StateConfirm, obsConfirm
	}
	if e.schema.IsBypass(entry.Token) {
		return ir.StateOutside, obsBypass
	}
	if entry.Token == ir.TokenRoot {
		return ir.StateOutside, obsRoot
	}
	if lvl, ok := e.schema.Level(entry.Token); ok {
		st := e.stacks[lvl.Stack]
		if r, ok := st.at(entry.Index); ok && r.level.Token == entry.Token {
			return lvl.State, obsLevel
		}
		// A forward entry left behind by a sibling replace: the stack still
		// shows the level that replaced its parent.
		if r, ok := st.top(entry.Index); ok {
			return r.level.State, obsPinned
		}
		return ir.StateOutside, obsStale
	}
	if e.schema.Known(entry.Token) {
		return ir.StateOutside, obsStale
	}
	return ir.StateOutside, obsOrphan
}

// reconcile forces visibility to match a traversal notification. It is the
// single code path for programmatic pops, back gestures and forward
// navigation.
func (e *Engine) reconcile(n *history.Notification, tr *ir.Transition) *NavError {
	if n.Version < e.lastWrite {
		// A later record or replace already moved past this position.
		tr.Effects = append(tr.Effects, ir.EffectSuperseded)
		e.logger.Debug("notification superseded",
			"token", n.Entry.Token,
			"index", n.Entry.Index,
			"version", n.Version,
			"last_write", e.lastWrite,
		)
		return nil
	}

	from := e.state
	hadSession := e.sessionVisible()
	hadGate := e.gateActive()

	e.current = n.Entry
	observed, obs := e.classify(n.Entry)

	if obs == obsBypass {
		// Transparent: visibility follows the index, nothing is torn down.
		e.logger.Debug("bypass token observed", "token", n.Entry.Token, "index", n.Entry.Index)
		e.abandonIfMoved(tr)
		return nil
	}

	if obs == obsPinned {
		// Step back off the dead entry so back and close keep their meaning.
		e.logger.Info("stale forward entry skipped", "token", n.Entry.Token, "index", n.Entry.Index)
		e.abandonIfMoved(tr)
		e.history.GoBack()
		tr.Effects = append(tr.Effects, ir.EffectGoBack)
		return nil
	}

	react, listed := lookupReaction(from, observed)
	if !listed {
		e.logger.Warn("unlisted transition",
			"from", from.String(),
			"to", observed.String(),
			"token", n.Entry.Token,
		)
	}
	if observed == ir.StateOutside {
		react |= reactReset
	}

	if react&reactReset != 0 && e.resetStacks() {
		tr.Effects = append(tr.Effects, ir.EffectReset)
	}
	if e.abandonIfMoved(tr) && react&reactAbandonConfirm == 0 {
		e.logger.Warn("confirmation displaced by unexpected transition",
			"from", from.String(),
			"to", observed.String(),
		)
	}
	if react&reactExitSession != 0 && hadSession && !e.sessionVisible() {
		e.exitSession(tr)
	}
	if react&reactCloseGate != 0 && hadGate && !e.gateActive() {
		tr.Effects = append(tr.Effects, ir.EffectCloseGate)
		e.logger.Info("secret gate closed", "token", n.Entry.Token)
	}

	if obs == obsOrphan {
		return NewOrphanedToken(n.Entry.Token, n.Entry.Index)
	}
	return nil
}

// abandonIfMoved settles the live confirmation with false when the current
// entry is no longer its own entry. Reports whether it settled one.
func (e *Engine) abandonIfMoved(tr *ir.Transition) bool {
	p := e.broker.live()
	if p == nil {
		return false
	}
	if e.current.Index == p.ownerIndex && p.ownerToken.Contains(e.current.Token) {
		return false
	}
	if _, ok := e.broker.resolve(false); !ok {
		return false
	}
	tr.Effects = append(tr.Effects, ir.EffectAbandonConfirm, ir.EffectResolveFalse)
	e.logger.Info("confirmation abandoned", "pending_id", p.ID, "token", e.current.Token)
	return true
}

// resetStacks drops every record. Reports whether anything was dropped.
func (e *Engine) resetStacks() bool {
	dropped := false
	for _, st := range e.order {
		if st.reset() {
			dropped = true
		}
	}
	return dropped
}

func (e *Engine) exitSession(tr *ir.Transition) {
	for _, st := range e.order {
		if st.spec.ExitsSession {
			st.reset()
		}
	}
	e.exitCount++
	tr.Effects = append(tr.Effects, ir.EffectExitSession)
	e.logger.Info("session exited", "token", e.current.Token, "exit_count", e.exitCount)
	if e.onExit != nil {
		e.onExit()
	}
}

// sessionVisible reports whether any session stack has a visible level.
func (e *Engine) sessionVisible() bool {
	for _, st := range e.order {
		if st.spec.ExitsSession && len(st.visible(e.current.Index)) > 0 {
			return true
		}
	}
	return false
}

// gateActive reports whether the admin stack has a visible level.
func (e *Engine) gateActive() bool {
	if e.gateStack == nil {
		return false
	}
	return len(e.gateStack.visible(e.current.Index)) > 0
}
