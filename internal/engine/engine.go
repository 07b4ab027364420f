package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/GuLp-St/Attendance-Studio/internal/history"
	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

// Recorder persists processed transitions. Implemented by store.Recorder.
type Recorder interface {
	RecordTransition(ctx context.Context, t ir.Transition) error
}

// Engine is the single-writer navigation event loop.
//
// CRITICAL: All mutations happen in the goroutine that runs Run (or calls
// Drain/Step/Apply). Public intent methods only enqueue and are safe from any
// goroutine. Snapshot, Errors and Visible read a copy published after every
// event.
type Engine struct {
	schema  *ir.Schema
	history history.Adapter
	clock   *Clock
	queue   *eventQueue
	ids     IDGenerator
	logger  *slog.Logger

	afterFunc AfterFunc

	stacks    map[string]*Stack
	order     []*Stack
	gateStack *Stack
	broker    *Broker
	gate      *SecretGate

	// Run-goroutine state.
	current   history.Entry
	state     ir.StateKind
	lastWrite uint64
	exitCount int

	onExit   func()
	observer func(Snapshot)
	recorder Recorder

	unsubscribe func()

	mu   sync.RWMutex
	snap Snapshot
	errs []*NavError
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithIDGenerator sets the generator for confirmation IDs.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithAfterFunc replaces the timer used by the secret gate.
func WithAfterFunc(af AfterFunc) Option {
	return func(e *Engine) { e.afterFunc = af }
}

// WithOnExit registers the exit-session hook. It runs on the loop goroutine
// and must not block.
func WithOnExit(fn func()) Option {
	return func(e *Engine) { e.onExit = fn }
}

// WithObserver registers a callback that receives a snapshot after every
// processed event. It runs on the loop goroutine and must not block.
func WithObserver(fn func(Snapshot)) Option {
	return func(e *Engine) { e.observer = fn }
}

// WithRecorder persists every transition.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// New creates an engine bound to schema and history h, and subscribes to h.
// The schema must already be validated.
func New(schema *ir.Schema, h history.Adapter, opts ...Option) *Engine {
	e := &Engine{
		schema:    schema,
		history:   h,
		clock:     NewClock(),
		queue:     newEventQueue(),
		ids:       UUIDv7Generator{},
		logger:    slog.Default(),
		afterFunc: wallAfterFunc,
		stacks:    make(map[string]*Stack, len(schema.Stacks)),
		broker:    &Broker{},
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, spec := range schema.Stacks {
		st := newStack(spec)
		e.stacks[spec.Name] = st
		e.order = append(e.order, st)
	}
	e.gateStack = e.stacks[schema.Gate.Stack]
	e.gate = newSecretGate(
		schema.Gate.Threshold,
		time.Duration(schema.Gate.WindowMS)*time.Millisecond,
		e.afterFunc,
		func(gen int64) {
			e.queue.Enqueue(Event{Type: EventTypeExpire, Request: ir.Request{Gen: gen}})
		},
	)

	e.current = h.Current()
	e.state = ir.StateOutside
	e.unsubscribe = h.Subscribe(func(n history.Notification) {
		e.queue.Enqueue(Event{Type: EventTypeNavigated, Notification: &n})
	})
	e.publish(ir.Transition{Index: e.current.Index, Token: e.current.Token, Depth: -1, Flags: e.activeFlags()})
	return e
}

// Open requests the level for token at depth with the chosen sibling flags.
// Depths are opened one at a time from 0, so a session starts with an
// explicit Open(0, "dash"); opening a modal first is a protocol violation.
func (e *Engine) Open(depth int, token ir.Token, flags ...ir.FlagID) bool {
	return e.Enqueue(Event{Type: EventTypeOpen, Request: ir.Request{Depth: depth, Token: token, Flags: flags}})
}

// Close pops the topmost level through the history log.
func (e *Engine) Close() bool {
	return e.Enqueue(Event{Type: EventTypeClose})
}

// Confirm asks a yes/no question and returns its future.
func (e *Engine) Confirm(message string) *Pending {
	p := newPending(e.ids.Generate(), message)
	if !e.Enqueue(Event{Type: EventTypeConfirm, Request: ir.Request{Message: message, PendingID: p.ID}, Pending: p}) {
		p.settle(false, ErrStopped)
	}
	return p
}

// Answer settles the live confirmation.
func (e *Engine) Answer(yes bool) bool {
	return e.Enqueue(Event{Type: EventTypeAnswer, Request: ir.Request{Yes: yes}})
}

// AnswerPending settles p only if it is still the live confirmation.
func (e *Engine) AnswerPending(p *Pending, yes bool) bool {
	return e.Enqueue(Event{Type: EventTypeAnswer, Request: ir.Request{Yes: yes, PendingID: p.ID}})
}

// Back simulates the platform back gesture.
func (e *Engine) Back() bool {
	return e.Enqueue(Event{Type: EventTypeGesture, Request: ir.Request{Direction: ir.DirectionBack}})
}

// Forward simulates the platform forward gesture.
func (e *Engine) Forward() bool {
	return e.Enqueue(Event{Type: EventTypeGesture, Request: ir.Request{Direction: ir.DirectionForward}})
}

// Signal feeds one qualifying UI event to the secret gate.
func (e *Engine) Signal() bool {
	return e.Enqueue(Event{Type: EventTypeSignal})
}

// CloseGate pops the topmost admin level.
func (e *Engine) CloseGate() bool {
	return e.Enqueue(Event{Type: EventTypeCloseGate})
}

// Enqueue submits an event for processing. Returns false once stopped.
func (e *Engine) Enqueue(ev Event) bool {
	return e.queue.Enqueue(ev)
}

// Run starts the single-writer event loop and blocks until ctx is done or
// Stop is called.
//
// CRITICAL: Must be called from exactly ONE goroutine, and never together
// with Drain, Step or Apply.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "version", ir.EngineVersion)

	for {
		if ev, ok := e.queue.TryDequeue(); ok {
			e.process(ctx, ev)
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.Stop()
			e.abortPending()
			return ctx.Err()
		case <-e.queue.Wait():
			if e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				e.abortPending()
				return nil
			}
		}
	}
}

// Stop unsubscribes from history and closes the queue, which makes Run
// return. Safe from any goroutine.
func (e *Engine) Stop() {
	e.queue.Close()
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
}

// abortPending settles a live confirmation when the loop exits so waiters
// do not hang.
func (e *Engine) abortPending() {
	if p := e.broker.live(); p != nil {
		e.broker.hold(nil)
		p.settle(false, ErrStopped)
	}
}

// Drain processes queued events on the caller's goroutine until the queue
// is empty, including notifications produced along the way.
func (e *Engine) Drain() []ir.Transition {
	var out []ir.Transition
	for {
		tr, ok := e.Step()
		if !ok {
			return out
		}
		out = append(out, tr)
	}
}

// Step processes exactly one queued event.
func (e *Engine) Step() (ir.Transition, bool) {
	ev, ok := e.queue.TryDequeue()
	if !ok {
		return ir.Transition{}, false
	}
	return e.process(context.Background(), ev), true
}

// Apply processes ev immediately, ahead of anything queued.
func (e *Engine) Apply(ev Event) ir.Transition {
	return e.process(context.Background(), ev)
}

// process applies one event. CRITICAL: loop goroutine only.
func (e *Engine) process(ctx context.Context, ev Event) ir.Transition {
	tr := ir.Transition{
		Seq:     e.clock.Next(),
		Kind:    ev.Type.Kind(),
		Request: ev.Request,
		From:    e.state,
		Effects: []ir.Effect{},
	}
	tr.Request.Flags = slices.Clone(tr.Request.Flags)

	var syncErr *NavError
	if ev.Type.isIntent() {
		syncErr = e.syncCursor(&tr)
	}

	var nerr *NavError
	switch ev.Type {
	case EventTypeOpen:
		nerr = e.applyOpen(ev.Request, &tr)
	case EventTypeClose:
		nerr = e.applyClose(&tr)
	case EventTypeConfirm:
		nerr = e.applyConfirm(ev.Pending, &tr)
	case EventTypeAnswer:
		nerr = e.applyAnswer(ev.Request, &tr)
	case EventTypeGesture:
		e.applyGesture(ev.Request.Direction, &tr)
	case EventTypeNavigated:
		if ev.Notification == nil {
			nerr = NewProtocolViolation("", 0, "navigation event without notification")
			break
		}
		tr.Request = ir.Request{Direction: ev.Notification.Direction}
		nerr = e.reconcile(ev.Notification, &tr)
	case EventTypeSignal:
		nerr = e.applySignal(&tr)
	case EventTypeExpire:
		if e.gate.expire(ev.Request.Gen) {
			tr.Effects = append(tr.Effects, ir.EffectDisarm)
		}
	case EventTypeCloseGate:
		nerr = e.applyCloseGate(&tr)
	default:
		nerr = NewProtocolViolation("", 0, "unknown event type %d", ev.Type)
	}
	if nerr == nil {
		nerr = syncErr
	}

	e.state, tr.Depth = e.top()
	tr.To = e.state
	tr.Index = e.current.Index
	tr.Token = e.current.Token
	tr.Flags = e.activeFlags()

	if nerr != nil {
		tr.Error = string(nerr.Code)
		e.logger.Warn("navigation error absorbed",
			"code", nerr.Code,
			"message", nerr.Message,
			"token", nerr.Token,
			"seq", tr.Seq,
		)
	}

	e.logger.Debug("event processed",
		"seq", tr.Seq,
		"kind", tr.Kind,
		"from", tr.From.String(),
		"to", tr.To.String(),
		"index", tr.Index,
		"effects", tr.Effects,
	)

	e.publish(tr, nerr)
	if e.recorder != nil {
		if err := e.recorder.RecordTransition(ctx, tr); err != nil {
			// Log and continue: a failing trace store must not stall navigation.
			e.logger.Error("record transition failed", "seq", tr.Seq, "error", err)
		}
	}
	return tr
}

// syncCursor reconciles against the log cursor when a traversal has not
// been processed yet, so an intent acts on the entry the user actually sees.
// The queued notification for that traversal is then either a no-op or
// superseded by whatever this intent writes.
func (e *Engine) syncCursor(tr *ir.Transition) *NavError {
	cur := e.history.Current()
	if cur.Index == e.current.Index && cur.Token == e.current.Token {
		return nil
	}
	e.logger.Debug("catching up with history cursor",
		"engine_index", e.current.Index,
		"log_index", cur.Index,
	)
	return e.reconcile(&history.Notification{Entry: cur, Version: e.lastWrite}, tr)
}

// applyOpen validates and applies an open request.
func (e *Engine) applyOpen(req ir.Request, tr *ir.Transition) *NavError {
	lvl, ok := e.schema.Level(req.Token)
	if !ok {
		return NewProtocolViolation(req.Token, req.Depth, "no level declared for token")
	}
	if req.Depth != lvl.Depth {
		return NewProtocolViolation(req.Token, req.Depth, "level %s lives at depth %d", lvl.Name, lvl.Depth)
	}
	for _, f := range req.Flags {
		if !lvl.AllowsFlag(f) {
			return NewProtocolViolation(req.Token, req.Depth, "flag %s does not belong to level %s", f, lvl.Name)
		}
	}
	st := e.stacks[lvl.Stack]
	if st == e.gateStack && lvl.Depth == 0 {
		return NewProtocolViolation(req.Token, req.Depth, "the admin console opens through the secret gate")
	}
	return e.openLevel(st, lvl, req.Flags, tr)
}

// openLevel pushes or sibling-replaces a validated level.
func (e *Engine) openLevel(st *Stack, lvl ir.LevelSpec, flags []ir.FlagID, tr *ir.Transition) *NavError {
	cursor := e.current.Index
	cur := st.depth(cursor)
	flags = ir.SortFlags(flags)
	aux := history.Aux{Owner: st.Name(), Depth: lvl.Depth, Flags: flags}

	switch {
	case lvl.Depth == cur+1:
		if lvl.Depth > 0 {
			top, _ := st.top(cursor)
			if top.level.Token != lvl.Parent {
				return NewProtocolViolation(lvl.Token, lvl.Depth, "parent %s is not open", lvl.Parent)
			}
		}
		entry, version := e.history.RecordEntry(lvl.Token, aux)
		e.afterRecord(entry, version, tr)
		st.push(record{index: entry.Index, level: lvl, flags: flags})
		tr.Effects = append(tr.Effects, ir.EffectRecord)
		e.logger.Info("level opened", "token", lvl.Token, "depth", lvl.Depth, "flags", flags)

	case lvl.Depth == cur:
		top, _ := st.top(cursor)
		if top.index != e.current.Index {
			return NewProtocolViolation(lvl.Token, lvl.Depth, "level at depth %d is covered and cannot be replaced", lvl.Depth)
		}
		if sameFlags(top.flags, flags) {
			return nil
		}
		entry, version := e.history.ReplaceEntry(lvl.Token, aux)
		e.current = entry
		e.lastWrite = version
		// Levels opened above the old sibling do not belong to the new one.
		st.truncate(entry.Index + 1)
		st.replace(record{index: entry.Index, level: lvl, flags: flags})
		tr.Effects = append(tr.Effects, ir.EffectReplace)
		e.logger.Info("level replaced", "token", lvl.Token, "depth", lvl.Depth, "flags", flags)

	default:
		return NewProtocolViolation(lvl.Token, lvl.Depth, "open at depth %d from depth %d", lvl.Depth, cur)
	}
	return nil
}

// afterRecord moves the engine onto a freshly recorded entry. The log has
// discarded everything from entry.Index up, so the stacks do the same.
func (e *Engine) afterRecord(entry history.Entry, version uint64, tr *ir.Transition) {
	for _, st := range e.order {
		st.truncate(entry.Index)
	}
	e.current = entry
	e.lastWrite = version
	e.abandonIfMoved(tr)
}

func (e *Engine) applyClose(tr *ir.Transition) *NavError {
	if _, depth := e.top(); depth < 0 {
		return NewProtocolViolation(e.current.Token, depth, "nothing to close")
	}
	e.history.GoBack()
	tr.Effects = append(tr.Effects, ir.EffectGoBack)
	return nil
}

func (e *Engine) applyGesture(dir ir.Direction, tr *ir.Transition) {
	if dir == ir.DirectionForward {
		e.history.GoForward()
		tr.Effects = append(tr.Effects, ir.EffectGoForward)
		return
	}
	e.history.GoBack()
	tr.Effects = append(tr.Effects, ir.EffectGoBack)
}

func (e *Engine) applyConfirm(p *Pending, tr *ir.Transition) *NavError {
	if p == nil {
		return NewProtocolViolation(e.schema.Confirm.Token, 0, "confirm event without pending")
	}
	if live := e.broker.live(); live != nil {
		nerr := NewProtocolViolation(e.schema.Confirm.Token, live.depth, "confirmation %s is still live", live.ID)
		p.settle(false, nerr)
		tr.Effects = append(tr.Effects, ir.EffectResolveFalse)
		return nerr
	}

	_, cur := e.top()
	depth := min(cur+1, e.schema.MaxDepth)
	var flags []ir.FlagID
	if e.schema.Confirm.Flag != "" {
		flags = []ir.FlagID{e.schema.Confirm.Flag}
	}
	aux := history.Aux{Owner: string(e.schema.Confirm.Token), Depth: depth, Flags: flags, Tag: p.ID}
	entry, version := e.history.RecordEntry(e.schema.Confirm.Token, aux)
	e.afterRecord(entry, version, tr)

	p.ownerToken = entry.Token
	p.ownerIndex = entry.Index
	p.depth = depth
	e.broker.hold(p)
	tr.Effects = append(tr.Effects, ir.EffectRecord)
	e.logger.Info("confirmation opened", "pending_id", p.ID, "message", p.Message, "depth", depth)
	return nil
}

func (e *Engine) applyAnswer(req ir.Request, tr *ir.Transition) *NavError {
	p := e.broker.live()
	if p == nil || (req.PendingID != "" && req.PendingID != p.ID) {
		return NewStaleResolution(req.PendingID)
	}
	if e.current.Index == p.ownerIndex {
		e.history.GoBack()
		tr.Effects = append(tr.Effects, ir.EffectGoBack)
	}
	if _, ok := e.broker.resolve(req.Yes); !ok {
		return NewStaleResolution(p.ID)
	}
	if req.Yes {
		tr.Effects = append(tr.Effects, ir.EffectResolveTrue)
	} else {
		tr.Effects = append(tr.Effects, ir.EffectResolveFalse)
	}
	e.logger.Info("confirmation answered", "pending_id", p.ID, "yes", req.Yes)
	return nil
}

func (e *Engine) applySignal(tr *ir.Transition) *NavError {
	if !e.gate.signal() {
		return nil
	}
	if e.gateStack == nil || len(e.gateStack.spec.Levels) == 0 {
		return NewProtocolViolation("", 0, "gate stack %q has no levels", e.schema.Gate.Stack)
	}
	if e.gateActive() {
		return nil
	}
	console := e.gateStack.spec.Levels[0]
	if err := e.openLevel(e.gateStack, console, console.Flags, tr); err != nil {
		return err
	}
	tr.Effects = append(tr.Effects, ir.EffectActivateGate)
	e.logger.Info("secret gate activated", "token", console.Token)
	return nil
}

func (e *Engine) applyCloseGate(tr *ir.Transition) *NavError {
	if !e.gateActive() {
		return NewProtocolViolation(e.current.Token, -1, "secret gate is not active")
	}
	top, _ := e.gateStack.top(e.current.Index)
	if top.index != e.current.Index {
		return NewProtocolViolation(top.level.Token, top.level.Depth, "admin level is covered")
	}
	e.history.GoBack()
	tr.Effects = append(tr.Effects, ir.EffectGoBack)
	return nil
}

// top returns the state and depth of the topmost visible thing.
func (e *Engine) top() (ir.StateKind, int) {
	cursor := e.current.Index
	best := -1
	state, depth := ir.StateOutside, -1
	for _, st := range e.order {
		if r, ok := st.top(cursor); ok && r.index > best {
			best = r.index
			state, depth = r.level.State, r.level.Depth
		}
	}
	if p, ok := e.broker.visibleAt(cursor); ok && p.ownerIndex > best {
		state, depth = ir.StateConfirm, p.depth
	}
	return state, depth
}

// activeFlags is the sorted union of every visible flag.
func (e *Engine) activeFlags() []ir.FlagID {
	cursor := e.current.Index
	var flags []ir.FlagID
	for _, st := range e.order {
		flags = st.flags(flags, cursor)
	}
	if _, ok := e.broker.visibleAt(cursor); ok && e.schema.Confirm.Flag != "" {
		flags = append(flags, e.schema.Confirm.Flag)
	}
	return ir.SortFlags(flags)
}

// publish stores the snapshot and notifies the observer.
func (e *Engine) publish(tr ir.Transition, nerr ...*NavError) {
	cursor := e.current.Index
	snap := Snapshot{
		Seq:           tr.Seq,
		Index:         cursor,
		Token:         e.current.Token,
		State:         e.state,
		Depth:         tr.Depth,
		Flags:         tr.Flags,
		GateActive:    e.gateActive(),
		GateCount:     e.gate.Count(),
		SessionActive: e.sessionVisible(),
		ExitCount:     e.exitCount,
	}
	for _, st := range e.order {
		snap.Tokens = st.tokens(snap.Tokens, cursor)
	}
	if p, ok := e.broker.visibleAt(cursor); ok {
		snap.Pending = &PendingView{ID: p.ID, Message: p.Message, Depth: p.depth}
	}

	e.mu.Lock()
	e.snap = snap
	for _, ne := range nerr {
		if ne != nil {
			e.errs = append(e.errs, ne)
		}
	}
	e.mu.Unlock()

	if e.observer != nil {
		e.observer(snap)
	}
}

// Snapshot returns the state published after the last processed event.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap.clone()
}

// CurrentFlags returns the active visibility flags.
func (e *Engine) CurrentFlags() []ir.FlagID {
	return e.Snapshot().Flags
}

// Visible reports whether the level for token is on screen. Asynchronous
// work that finishes after its level closed should check this and drop its
// result.
func (e *Engine) Visible(token ir.Token) bool {
	return slices.Contains(e.Snapshot().Tokens, token)
}

// Errors returns every absorbed error so far.
func (e *Engine) Errors() []*NavError {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.errs)
}

// Schema returns the schema the engine was built with.
func (e *Engine) Schema() *ir.Schema {
	return e.schema
}

// Snapshot is a read-only view of the engine state.
type Snapshot struct {
	Seq           int64
	Index         int
	Token         ir.Token
	State         ir.StateKind
	Depth         int
	Flags         []ir.FlagID
	Tokens        []ir.Token
	Pending       *PendingView
	GateActive    bool
	GateCount     int
	SessionActive bool
	ExitCount     int
}

// PendingView describes the confirmation on screen.
type PendingView struct {
	ID      string
	Message string
	Depth   int
}

// Has reports whether flag f is active.
func (s Snapshot) Has(f ir.FlagID) bool {
	return slices.Contains(s.Flags, f)
}

func (s Snapshot) clone() Snapshot {
	s.Flags = slices.Clone(s.Flags)
	s.Tokens = slices.Clone(s.Tokens)
	if s.Pending != nil {
		p := *s.Pending
		s.Pending = &p
	}
	return s
}

// String renders a one-line summary for logs.
func (s Snapshot) String() string {
	return fmt.Sprintf("seq=%d index=%d state=%s depth=%d flags=%v", s.Seq, s.Index, s.State, s.Depth, s.Flags)
}
