package compiler

import (
	"fmt"

	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

// MaxNestingDepth is the deepest level index a schema may declare. Four
// nesting depths (0..3) is the whole overlay vocabulary of the dashboard.
const MaxNestingDepth = 3

// Validation error codes (E100-E199)
const (
	// Schema-wide errors (E100-E109)
	ErrNoStacks      = "E100" // at least one stack required
	ErrMaxDepthRange = "E101" // max_depth outside 1..3
	ErrConfirmToken  = "E102" // confirm token empty or owned by a stack
	ErrBypassToken   = "E103" // bypass token owned by a stack level
	ErrGateConfig    = "E104" // gate stack missing, threshold or window invalid

	// Stack errors (E110-E119)
	ErrDuplicateStack     = "E110" // duplicate stack name
	ErrNamespaceOverlap   = "E111" // two stacks share a namespace
	ErrNoLevels           = "E112" // stack declares no levels
	ErrNamespaceMismatch  = "E113" // level token outside stack namespace
	ErrDepthOrder         = "E114" // depths must be 0..n-1, one level per depth
	ErrDepthLimit         = "E115" // depth exceeds max_depth
	ErrPrefixContainment  = "E116" // level token not contained by its parent
	ErrDuplicateToken     = "E117" // token used by more than one level
	ErrDuplicateFlag      = "E118" // flag owned by more than one level
	ErrSessionGateOverlap = "E119" // gate stack must not end the session
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled schema against the structural rules the engine
// relies on. Returns all errors found (does not fail-fast).
func Validate(s *ir.Schema) []ValidationError {
	var errs []ValidationError
	add := func(code, field, format string, args ...any) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
		})
	}

	if len(s.Stacks) == 0 {
		add(ErrNoStacks, "stacks", "at least one stack is required")
	}
	if s.MaxDepth < 1 || s.MaxDepth > MaxNestingDepth {
		add(ErrMaxDepthRange, "max_depth", "max_depth must be between 1 and %d, got %d", MaxNestingDepth, s.MaxDepth)
	}

	stackNames := make(map[string]bool)
	namespaces := make(map[string]string)
	tokens := make(map[ir.Token]string)
	flags := make(map[ir.FlagID]string)

	for i, st := range s.Stacks {
		field := fmt.Sprintf("stacks[%d]", i)

		if stackNames[st.Name] {
			add(ErrDuplicateStack, field+".name", "duplicate stack name %q", st.Name)
		}
		stackNames[st.Name] = true

		if other, ok := namespaces[st.Namespace]; ok {
			add(ErrNamespaceOverlap, field+".namespace", "namespace %q already owned by stack %q", st.Namespace, other)
		} else {
			namespaces[st.Namespace] = st.Name
		}

		if len(st.Levels) == 0 {
			add(ErrNoLevels, field+".levels", "stack %q declares no levels", st.Name)
			continue
		}

		for j, lvl := range st.Levels {
			lfield := fmt.Sprintf("%s.levels[%d]", field, j)

			if lvl.Token.Namespace() != st.Namespace {
				add(ErrNamespaceMismatch, lfield+".token",
					"token %q is outside namespace %q", lvl.Token, st.Namespace)
			}
			if lvl.Depth != j {
				add(ErrDepthOrder, lfield+".depth",
					"level %q has depth %d, want %d (one level per depth starting at 0)", lvl.Name, lvl.Depth, j)
			}
			if lvl.Depth > s.MaxDepth {
				add(ErrDepthLimit, lfield+".depth",
					"level %q depth %d exceeds max_depth %d", lvl.Name, lvl.Depth, s.MaxDepth)
			}
			if j > 0 {
				parent := st.Levels[j-1].Token
				if lvl.Token == parent || !parent.Contains(lvl.Token) {
					add(ErrPrefixContainment, lfield+".token",
						"token %q must extend parent token %q", lvl.Token, parent)
				}
			}

			if owner, ok := tokens[lvl.Token]; ok {
				add(ErrDuplicateToken, lfield+".token", "token %q already used by level %q", lvl.Token, owner)
			} else {
				tokens[lvl.Token] = st.Name + "." + lvl.Name
			}

			for _, f := range lvl.Flags {
				if owner, ok := flags[f]; ok {
					add(ErrDuplicateFlag, lfield+".flags", "flag %q already owned by level %q", f, owner)
					continue
				}
				flags[f] = st.Name + "." + lvl.Name
			}
		}
	}

	if s.Confirm.Token == ir.TokenRoot {
		add(ErrConfirmToken, "confirm.token", "confirm token is required")
	} else if st, ok := s.StackFor(s.Confirm.Token); ok {
		add(ErrConfirmToken, "confirm.token", "confirm token %q is inside stack %q namespace", s.Confirm.Token, st.Name)
	}
	if s.Confirm.Flag != "" {
		if owner, ok := flags[s.Confirm.Flag]; ok {
			add(ErrDuplicateFlag, "confirm.flag", "flag %q already owned by level %q", s.Confirm.Flag, owner)
		}
	}

	for i, b := range s.Bypass {
		if owner, ok := tokens[b]; ok {
			add(ErrBypassToken, fmt.Sprintf("bypass[%d]", i), "bypass token %q is level %q", b, owner)
		}
		if b == ir.TokenRoot {
			add(ErrBypassToken, fmt.Sprintf("bypass[%d]", i), "bypass token must not be empty")
		}
	}

	gate, ok := s.Stack(s.Gate.Stack)
	switch {
	case !ok:
		add(ErrGateConfig, "gate.stack", "gate stack %q is not declared", s.Gate.Stack)
	case gate.ExitsSession:
		add(ErrSessionGateOverlap, "gate.stack", "gate stack %q must not set exits_session", s.Gate.Stack)
	}
	if s.Gate.Threshold < 1 {
		add(ErrGateConfig, "gate.threshold", "threshold must be at least 1, got %d", s.Gate.Threshold)
	}
	if s.Gate.WindowMS <= 0 {
		add(ErrGateConfig, "gate.window_ms", "window_ms must be positive, got %d", s.Gate.WindowMS)
	}

	return errs
}
