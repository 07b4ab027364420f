package ir

import (
	"fmt"
	"slices"
	"strings"
)

// Token identifies a history entry. Tokens are slash-separated paths; a token
// contains every token that extends it by one or more segments, so ancestry
// is encoded by prefix containment ("dash" contains "dash/modal").
type Token string

// TokenRoot is the empty token carried by entries that belong to no level.
const TokenRoot Token = ""

// Contains reports whether o equals t or is a descendant of t.
func (t Token) Contains(o Token) bool {
	if t == o {
		return true
	}
	if t == TokenRoot {
		return false
	}
	return strings.HasPrefix(string(o), string(t)+"/")
}

// Namespace returns the first path segment.
func (t Token) Namespace() string {
	s := string(t)
	if i := strings.IndexByte(s, '/'); i >= 0 {
		return s[:i]
	}
	return s
}

// Parent returns the token with the last segment removed, or TokenRoot.
func (t Token) Parent() Token {
	s := string(t)
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return Token(s[:i])
	}
	return TokenRoot
}

// FlagID names a UI visibility flag. Every flag is owned by exactly one level.
type FlagID string

// SortFlags returns a sorted, de-duplicated copy of flags.
func SortFlags(flags []FlagID) []FlagID {
	out := make([]FlagID, 0, len(flags))
	out = append(out, flags...)
	slices.Sort(out)
	return slices.Compact(out)
}

// StateKind is the tagged enumeration of reconciler states.
type StateKind int

const (
	StateOutside StateKind = iota
	StateBase
	StateDetail
	StateOverlay
	StateConfirm
	StateAdmin
	StateAdminTag
)

var stateNames = map[StateKind]string{
	StateOutside:  "outside",
	StateBase:     "base",
	StateDetail:   "detail",
	StateOverlay:  "overlay",
	StateConfirm:  "confirm",
	StateAdmin:    "admin",
	StateAdminTag: "admin_tag",
}

func (s StateKind) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ParseStateKind maps a schema state name to its StateKind.
func ParseStateKind(name string) (StateKind, error) {
	for kind, n := range stateNames {
		if n == name {
			return kind, nil
		}
	}
	return StateOutside, fmt.Errorf("unknown state %q", name)
}

// LevelSpec describes one visibility level of a stack.
type LevelSpec struct {
	Name   string    `json:"name"`
	Stack  string    `json:"stack"`
	Token  Token     `json:"token"`
	Depth  int       `json:"depth"`
	State  StateKind `json:"state"`
	Flags  []FlagID  `json:"flags"`
	Parent Token     `json:"parent,omitempty"`
}

// AllowsFlag reports whether f is one of the level's sibling alternatives.
func (l LevelSpec) AllowsFlag(f FlagID) bool {
	return slices.Contains(l.Flags, f)
}

// StackSpec groups the levels that share one token namespace.
type StackSpec struct {
	Name string `json:"name"`

	// Namespace is the first token segment owned by this stack.
	Namespace string `json:"namespace"`

	// ExitsSession marks the stack whose emptying ends the user session.
	ExitsSession bool `json:"exits_session"`

	// Levels are ordered by depth.
	Levels []LevelSpec `json:"levels"`
}

// ConfirmSpec configures the single confirmation slot.
type ConfirmSpec struct {
	Token Token  `json:"token"`
	Flag  FlagID `json:"flag,omitempty"`
}

// GateSpec configures the secret gate debounce.
type GateSpec struct {
	Stack     string `json:"stack"`
	Threshold int    `json:"threshold"`
	WindowMS  int64  `json:"window_ms"`
}

// Schema is the compiled navigation schema.
type Schema struct {
	MaxDepth int         `json:"max_depth"`
	Stacks   []StackSpec `json:"stacks"`
	Confirm  ConfirmSpec `json:"confirm"`
	Bypass   []Token     `json:"bypass"`
	Gate     GateSpec    `json:"gate"`
}

// Stack returns the stack with the given name.
func (s *Schema) Stack(name string) (StackSpec, bool) {
	for _, st := range s.Stacks {
		if st.Name == name {
			return st, true
		}
	}
	return StackSpec{}, false
}

// StackFor returns the stack owning the token's namespace.
func (s *Schema) StackFor(t Token) (StackSpec, bool) {
	ns := t.Namespace()
	for _, st := range s.Stacks {
		if st.Namespace == ns {
			return st, true
		}
	}
	return StackSpec{}, false
}

// Level returns the level declared for token t.
func (s *Schema) Level(t Token) (LevelSpec, bool) {
	st, ok := s.StackFor(t)
	if !ok {
		return LevelSpec{}, false
	}
	for _, l := range st.Levels {
		if l.Token == t {
			return l, true
		}
	}
	return LevelSpec{}, false
}

// IsBypass reports whether t is on the bypass allow-list.
func (s *Schema) IsBypass(t Token) bool {
	return slices.Contains(s.Bypass, t)
}

// Known reports whether t falls inside any namespace the schema owns.
func (s *Schema) Known(t Token) bool {
	if _, ok := s.StackFor(t); ok {
		return true
	}
	return s.Confirm.Token.Contains(t) || s.IsBypass(t)
}
