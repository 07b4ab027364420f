package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

// Scenario defines one navigation test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is an optional path to a CUE schema file or directory.
	// Relative paths are resolved against the scenario file's directory.
	// Empty means the embedded default schema.
	Schema string `yaml:"schema,omitempty"`

	// Initial seeds the history log. Empty means a single root entry.
	Initial []string `yaml:"initial,omitempty"`

	// Steps drive the engine in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one engine interaction.
type Step struct {
	// Do is the step type (see the Step* constants).
	Do string `yaml:"do"`

	// open
	Depth int      `yaml:"depth,omitempty"`
	Token string   `yaml:"token,omitempty"`
	Flags []string `yaml:"flags,omitempty"`

	// confirm: Message is shown, As labels the returned Pending.
	Message string `yaml:"message,omitempty"`
	As      string `yaml:"as,omitempty"`

	// answer: Pending selects a labelled confirmation (AnswerPending),
	// otherwise whatever is on screen is answered.
	Yes     bool   `yaml:"yes,omitempty"`
	Pending string `yaml:"pending,omitempty"`

	// signal: number of signals, default 1.
	Times int `yaml:"times,omitempty"`

	// advance: milliseconds to move the fake clock.
	MS int64 `yaml:"ms,omitempty"`

	// Hold skips draining after this step.
	Hold bool `yaml:"hold,omitempty"`

	// Expect is checked against the snapshot after the step.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Step type constants.
const (
	StepOpen      = "open"
	StepClose     = "close"
	StepBack      = "back"
	StepForward   = "forward"
	StepConfirm   = "confirm"
	StepAnswer    = "answer"
	StepSignal    = "signal"
	StepCloseGate = "close_gate"
	StepAdvance   = "advance"
	StepDrain     = "drain"
)

// ExpectClause describes the engine state a step should leave behind.
// Every field is optional; only the ones set are checked.
type ExpectClause struct {
	State      string    `yaml:"state,omitempty"`
	Token      *string   `yaml:"token,omitempty"`
	Index      *int      `yaml:"index,omitempty"`
	Depth      *int      `yaml:"depth,omitempty"`
	Flags      *[]string `yaml:"flags,omitempty"`
	Visible    []string  `yaml:"visible,omitempty"`
	Hidden     []string  `yaml:"hidden,omitempty"`
	Session    *bool     `yaml:"session,omitempty"`
	GateActive *bool     `yaml:"gate_active,omitempty"`
	GateCount  *int      `yaml:"gate_count,omitempty"`
	Exits      *int      `yaml:"exits,omitempty"`

	// Confirming names the labelled confirmation expected on screen, or
	// "none".
	Confirming string `yaml:"confirming,omitempty"`

	// Resolved maps confirmation labels to their settled value.
	Resolved map[string]bool `yaml:"resolved,omitempty"`

	// Unsettled lists labels that must not have settled yet.
	Unsettled []string `yaml:"unsettled,omitempty"`

	// Errors lists the codes absorbed so far, in order.
	Errors *[]string `yaml:"errors,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Filters for trace_contains and trace_count.
	Kind   string `yaml:"kind,omitempty"`
	Token  string `yaml:"token,omitempty"`
	Effect string `yaml:"effect,omitempty"`
	Error  string `yaml:"error,omitempty"`

	// Count is the expected number of matches (trace_count).
	Count int `yaml:"count,omitempty"`

	// Effects is the expected first-occurrence order (trace_order).
	Effects []string `yaml:"effects,omitempty"`

	// Expect is checked against the final snapshot (final_state).
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertReplay        = "replay"
)

// LoadScenario reads and parses a scenario YAML file. A relative schema path
// is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file, resolving
// the schema path relative to basePath.
//
// Unknown fields are rejected so typos such as "assertion:" fail loudly.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) && basePath != "" {
		scenario.Schema = filepath.Join(basePath, scenario.Schema)
	}
	if scenario.Schema != "" {
		if _, err := os.Stat(scenario.Schema); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: schema not found: %s", scenario.Schema)
		}
	}

	return scenario, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// initialTokens converts the history seed.
func (s *Scenario) initialTokens() []ir.Token {
	out := make([]ir.Token, len(s.Initial))
	for i, t := range s.Initial {
		out[i] = ir.Token(t)
	}
	return out
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	labels := make(map[string]bool)
	for i, step := range s.Steps {
		if err := validateStep(i, step, labels); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step Step, labels map[string]bool) error {
	switch step.Do {
	case "":
		return fmt.Errorf("steps[%d]: do is required", i)
	case StepOpen:
		if step.Token == "" {
			return fmt.Errorf("steps[%d]: token is required for open", i)
		}
		if step.Depth < 0 {
			return fmt.Errorf("steps[%d]: depth must be non-negative", i)
		}
	case StepConfirm:
		if step.As != "" {
			if labels[step.As] {
				return fmt.Errorf("steps[%d]: confirmation label %q already used", i, step.As)
			}
			labels[step.As] = true
		}
	case StepAnswer:
		if step.Pending != "" && !labels[step.Pending] {
			return fmt.Errorf("steps[%d]: unknown confirmation label %q", i, step.Pending)
		}
	case StepSignal:
		if step.Times < 0 {
			return fmt.Errorf("steps[%d]: times must be non-negative", i)
		}
	case StepAdvance:
		if step.MS <= 0 {
			return fmt.Errorf("steps[%d]: ms must be positive for advance", i)
		}
	case StepClose, StepBack, StepForward, StepCloseGate, StepDrain:
	default:
		return fmt.Errorf("steps[%d]: unknown step type %q", i, step.Do)
	}

	if step.Expect != nil {
		if err := validateExpect(fmt.Sprintf("steps[%d].expect", i), step.Expect, labels); err != nil {
			return err
		}
	}
	return nil
}

func validateExpect(field string, e *ExpectClause, labels map[string]bool) error {
	if e.State != "" {
		if _, err := ir.ParseStateKind(e.State); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	if e.Confirming != "" && e.Confirming != "none" && !labels[e.Confirming] {
		return fmt.Errorf("%s: unknown confirmation label %q", field, e.Confirming)
	}
	for label := range e.Resolved {
		if !labels[label] {
			return fmt.Errorf("%s: unknown confirmation label %q", field, label)
		}
	}
	for _, label := range e.Unsettled {
		if !labels[label] {
			return fmt.Errorf("%s: unknown confirmation label %q", field, label)
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Kind == "" && a.Token == "" && a.Effect == "" && a.Error == "" {
			return fmt.Errorf("assertions[%d]: trace_contains needs kind, token, effect or error", index)
		}
	case AssertTraceOrder:
		if len(a.Effects) == 0 {
			return fmt.Errorf("assertions[%d]: effects list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Kind == "" && a.Effect == "" && a.Error == "" {
			return fmt.Errorf("assertions[%d]: trace_count needs kind, effect or error", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertReplay:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
