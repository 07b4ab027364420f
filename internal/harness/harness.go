package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/GuLp-St/Attendance-Studio/internal/compiler"
	"github.com/GuLp-St/Attendance-Studio/internal/engine"
	"github.com/GuLp-St/Attendance-Studio/internal/history"
	"github.com/GuLp-St/Attendance-Studio/internal/ir"
	"github.com/GuLp-St/Attendance-Studio/internal/store"
	"github.com/GuLp-St/Attendance-Studio/internal/testutil"
)

// Harness is the state of one scenario run.
type Harness struct {
	engine *engine.Engine
	clock  *testutil.FakeClock
	logger *slog.Logger

	pendings map[string]*engine.Pending
	exits    int
}

// Option configures a run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
	schema *ir.Schema
}

// WithLogger routes engine logs to l. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// WithSchema overrides the scenario's schema.
func WithSchema(s *ir.Schema) Option {
	return func(c *runConfig) { c.schema = s }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory trace store for isolation.
//
// Execution flow:
//  1. Load and validate the schema
//  2. Seed the history log and start the engine with fake timers
//  3. Execute steps, draining and checking expect clauses after each
//  4. Evaluate assertions against the trace and final snapshot
//
// An error is returned only when the scenario cannot run at all; failed
// expectations are reported through Result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	schema := cfg.schema
	if schema == nil {
		var err error
		schema, err = loadSchema(scenario.Schema)
		if err != nil {
			return nil, err
		}
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	initial := scenario.initialTokens()
	sess, err := store.NewSession(schema, initial)
	if err != nil {
		return nil, err
	}
	rec, err := st.NewRecorder(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	h := &Harness{
		clock:    testutil.NewFakeClock(),
		logger:   cfg.logger,
		pendings: make(map[string]*engine.Pending),
	}
	h.engine = engine.New(schema, history.NewLog(initial...),
		engine.WithLogger(cfg.logger),
		engine.WithIDGenerator(testutil.NewCountingIDGenerator("pending")),
		engine.WithAfterFunc(h.clock.AfterFunc),
		engine.WithOnExit(func() { h.exits++ }),
		engine.WithRecorder(rec),
	)
	defer h.engine.Stop()

	result := NewResult()
	result.SessionID = sess.ID

	for i, step := range scenario.Steps {
		if err := h.execute(step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if !step.Hold {
			result.AddTrace(h.engine.Drain()...)
		}
		if step.Expect != nil {
			for _, msg := range h.checkExpect(step.Expect) {
				result.AddError(fmt.Sprintf("steps[%d] (%s): %s", i, step.Do, msg))
			}
		}
		h.logger.Debug("step completed", "step", i, "do", step.Do)
	}
	result.AddTrace(h.engine.Drain()...)
	result.Final = h.engine.Snapshot()

	actx := &AssertionContext{
		Ctx:     ctx,
		Store:   st,
		Session: sess,
		Schema:  schema,
		Harness: h,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

func loadSchema(path string) (*ir.Schema, error) {
	if path == "" {
		return compiler.DefaultSchema()
	}
	schema, err := compiler.LoadSchema(path)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if errs := compiler.Validate(schema); len(errs) > 0 {
		return nil, fmt.Errorf("schema %s: %w", path, errs[0])
	}
	return schema, nil
}

// execute applies one step to the engine.
func (h *Harness) execute(step Step) error {
	e := h.engine
	switch step.Do {
	case StepOpen:
		flags := make([]ir.FlagID, len(step.Flags))
		for i, f := range step.Flags {
			flags[i] = ir.FlagID(f)
		}
		e.Open(step.Depth, ir.Token(step.Token), flags...)
	case StepClose:
		e.Close()
	case StepBack:
		e.Back()
	case StepForward:
		e.Forward()
	case StepConfirm:
		p := e.Confirm(step.Message)
		if step.As != "" {
			h.pendings[step.As] = p
		}
	case StepAnswer:
		if step.Pending == "" {
			e.Answer(step.Yes)
			break
		}
		p, ok := h.pendings[step.Pending]
		if !ok {
			return fmt.Errorf("unknown confirmation label %q", step.Pending)
		}
		e.AnswerPending(p, step.Yes)
	case StepSignal:
		n := step.Times
		if n == 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			e.Signal()
		}
	case StepCloseGate:
		e.CloseGate()
	case StepAdvance:
		h.clock.Advance(time.Duration(step.MS) * time.Millisecond)
	case StepDrain:
	default:
		return fmt.Errorf("unknown step type %q", step.Do)
	}
	return nil
}

// checkExpect compares the current snapshot with e and returns one message
// per mismatch.
func (h *Harness) checkExpect(e *ExpectClause) []string {
	snap := h.engine.Snapshot()
	var msgs []string
	fail := func(format string, args ...any) {
		msgs = append(msgs, fmt.Sprintf(format, args...))
	}

	if e.State != "" && snap.State.String() != e.State {
		fail("state = %s, want %s", snap.State, e.State)
	}
	if e.Token != nil && string(snap.Token) != *e.Token {
		fail("token = %q, want %q", snap.Token, *e.Token)
	}
	if e.Index != nil && snap.Index != *e.Index {
		fail("index = %d, want %d", snap.Index, *e.Index)
	}
	if e.Depth != nil && snap.Depth != *e.Depth {
		fail("depth = %d, want %d", snap.Depth, *e.Depth)
	}
	if e.Flags != nil {
		want := make([]ir.FlagID, len(*e.Flags))
		for i, f := range *e.Flags {
			want[i] = ir.FlagID(f)
		}
		want = ir.SortFlags(want)
		if !slices.Equal(snap.Flags, want) {
			fail("flags = %v, want %v", snap.Flags, want)
		}
	}
	for _, tok := range e.Visible {
		if !h.engine.Visible(ir.Token(tok)) {
			fail("%s should be visible", tok)
		}
	}
	for _, tok := range e.Hidden {
		if h.engine.Visible(ir.Token(tok)) {
			fail("%s should be hidden", tok)
		}
	}
	if e.Session != nil && snap.SessionActive != *e.Session {
		fail("session active = %t, want %t", snap.SessionActive, *e.Session)
	}
	if e.GateActive != nil && snap.GateActive != *e.GateActive {
		fail("gate active = %t, want %t", snap.GateActive, *e.GateActive)
	}
	if e.GateCount != nil && snap.GateCount != *e.GateCount {
		fail("gate count = %d, want %d", snap.GateCount, *e.GateCount)
	}
	if e.Exits != nil && h.exits != *e.Exits {
		fail("exits = %d, want %d", h.exits, *e.Exits)
	}

	switch e.Confirming {
	case "":
	case "none":
		if snap.Pending != nil {
			fail("confirmation %s on screen, want none", snap.Pending.ID)
		}
	default:
		p := h.pendings[e.Confirming]
		switch {
		case p == nil:
			fail("unknown confirmation label %q", e.Confirming)
		case snap.Pending == nil:
			fail("no confirmation on screen, want %s", e.Confirming)
		case snap.Pending.ID != p.ID:
			fail("confirmation %s on screen, want %s (%s)", snap.Pending.ID, e.Confirming, p.ID)
		}
	}

	for label, want := range e.Resolved {
		p, ok := h.pendings[label]
		if !ok {
			fail("unknown confirmation label %q", label)
			continue
		}
		got, settled := p.Result()
		switch {
		case !settled:
			fail("%s unsettled, want %t", label, want)
		case got != want:
			fail("%s settled %t, want %t", label, got, want)
		}
	}
	for _, label := range e.Unsettled {
		p, ok := h.pendings[label]
		if !ok {
			fail("unknown confirmation label %q", label)
			continue
		}
		if _, settled := p.Result(); settled {
			fail("%s settled, want unsettled", label)
		}
	}

	if e.Errors != nil {
		var got []string
		for _, nerr := range h.engine.Errors() {
			got = append(got, string(nerr.Code))
		}
		if !slices.Equal(got, *e.Errors) {
			fail("errors = %v, want %v", got, *e.Errors)
		}
	}

	return msgs
}
