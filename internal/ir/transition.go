package ir

import "fmt"

// EventKind names the engine event a transition was produced by.
type EventKind string

const (
	KindOpen      EventKind = "open"
	KindClose     EventKind = "close"
	KindConfirm   EventKind = "confirm"
	KindAnswer    EventKind = "answer"
	KindGesture   EventKind = "gesture"
	KindNavigate  EventKind = "navigate"
	KindSignal    EventKind = "signal"
	KindExpire    EventKind = "expire"
	KindCloseGate EventKind = "close_gate"
)

// IsInput reports whether events of this kind originate outside the engine.
// Navigate events are produced by the history log and expire events by the
// gate timer; replay regenerates navigate events and re-feeds everything else.
func (k EventKind) IsInput() bool {
	return k != KindNavigate
}

// Effect names one consequence applied while processing an event.
type Effect string

const (
	EffectRecord         Effect = "record"
	EffectReplace        Effect = "replace"
	EffectGoBack         Effect = "go_back"
	EffectGoForward      Effect = "go_forward"
	EffectReset          Effect = "reset"
	EffectExitSession    Effect = "exit_session"
	EffectAbandonConfirm Effect = "abandon_confirm"
	EffectResolveTrue    Effect = "resolve_true"
	EffectResolveFalse   Effect = "resolve_false"
	EffectActivateGate   Effect = "activate_gate"
	EffectCloseGate      Effect = "close_gate"
	EffectDisarm         Effect = "disarm"
	EffectSuperseded     Effect = "superseded"
)

// Direction of a history traversal.
type Direction string

const (
	DirectionBack    Direction = "back"
	DirectionForward Direction = "forward"
)

// Request carries the arguments of an input event.
type Request struct {
	Depth     int       `json:"depth,omitempty"`
	Token     Token     `json:"token,omitempty"`
	Flags     []FlagID  `json:"flags,omitempty"`
	Message   string    `json:"message,omitempty"`
	PendingID string    `json:"pending_id,omitempty"`
	Yes       bool      `json:"yes,omitempty"`
	Direction Direction `json:"direction,omitempty"`
	Gen       int64     `json:"gen,omitempty"`
}

// ToMap converts the request to a canonical-JSON friendly map, omitting
// zero fields the same way the json tags do.
func (r Request) ToMap() map[string]any {
	m := map[string]any{}
	if r.Depth != 0 {
		m["depth"] = r.Depth
	}
	if r.Token != "" {
		m["token"] = string(r.Token)
	}
	if len(r.Flags) > 0 {
		m["flags"] = flagsToAny(r.Flags)
	}
	if r.Message != "" {
		m["message"] = r.Message
	}
	if r.PendingID != "" {
		m["pending_id"] = r.PendingID
	}
	if r.Yes {
		m["yes"] = true
	}
	if r.Direction != "" {
		m["direction"] = string(r.Direction)
	}
	if r.Gen != 0 {
		m["gen"] = r.Gen
	}
	return m
}

// Transition is the record of one processed engine event.
type Transition struct {
	Seq     int64     `json:"seq"`
	Kind    EventKind `json:"kind"`
	Request Request   `json:"request"`
	Index   int       `json:"index"`
	Token   Token     `json:"token"`
	From    StateKind `json:"from"`
	To      StateKind `json:"to"`
	Depth   int       `json:"depth"`
	Flags   []FlagID  `json:"flags"`
	Effects []Effect  `json:"effects"`
	Error   string    `json:"error,omitempty"`
}

// HasEffect reports whether eff was applied.
func (t Transition) HasEffect(eff Effect) bool {
	for _, e := range t.Effects {
		if e == eff {
			return true
		}
	}
	return false
}

// TraceMap is the projection of a transition used in golden traces.
// The request is left out so traces stay readable.
func (t Transition) TraceMap() map[string]any {
	effects := make([]any, len(t.Effects))
	for i, e := range t.Effects {
		effects[i] = string(e)
	}
	m := map[string]any{
		"seq":     t.Seq,
		"kind":    string(t.Kind),
		"index":   t.Index,
		"token":   string(t.Token),
		"from":    t.From.String(),
		"to":      t.To.String(),
		"depth":   t.Depth,
		"flags":   flagsToAny(t.Flags),
		"effects": effects,
	}
	if t.Error != "" {
		m["error"] = t.Error
	}
	return m
}

// RecordMap is the full persisted form, TraceMap plus the request.
func (t Transition) RecordMap() map[string]any {
	m := t.TraceMap()
	m["request"] = t.Request.ToMap()
	return m
}

// MarshalText encodes the state by name.
func (s StateKind) MarshalText() ([]byte, error) {
	if _, ok := stateNames[s]; !ok {
		return nil, fmt.Errorf("unknown state %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *StateKind) UnmarshalText(text []byte) error {
	kind, err := ParseStateKind(string(text))
	if err != nil {
		return err
	}
	*s = kind
	return nil
}

func flagsToAny(flags []FlagID) []any {
	out := make([]any, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return out
}
