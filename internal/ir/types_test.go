package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenContains(t *testing.T) {
	tests := []struct {
		name   string
		parent Token
		child  Token
		want   bool
	}{
		{"self", "dash", "dash", true},
		{"child", "dash", "dash/modal", true},
		{"grandchild", "dash", "dash/modal/overlay", true},
		{"segment prefix is not ancestry", "dash", "dashboard", false},
		{"reverse", "dash/modal", "dash", false},
		{"root contains nothing", TokenRoot, "dash", false},
		{"root contains root", TokenRoot, TokenRoot, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.parent.Contains(tt.child))
		})
	}
}

func TestTokenNamespaceAndParent(t *testing.T) {
	assert.Equal(t, "dash", Token("dash/modal/overlay").Namespace())
	assert.Equal(t, "admin", Token("admin").Namespace())
	assert.Equal(t, Token("dash/modal"), Token("dash/modal/overlay").Parent())
	assert.Equal(t, TokenRoot, Token("dash").Parent())
}

func TestSortFlags(t *testing.T) {
	in := []FlagID{"profileModal", "classModal", "profileModal"}
	out := SortFlags(in)

	assert.Equal(t, []FlagID{"classModal", "profileModal"}, out)
	assert.Equal(t, FlagID("profileModal"), in[0], "input must not be mutated")
	assert.NotNil(t, SortFlags(nil))
}

func TestStateKindRoundTrip(t *testing.T) {
	for kind, name := range stateNames {
		parsed, err := ParseStateKind(name)
		require.NoError(t, err)
		assert.Equal(t, kind, parsed)
		assert.Equal(t, name, kind.String())
	}

	_, err := ParseStateKind("modal")
	assert.Error(t, err)
	assert.Equal(t, "state(42)", StateKind(42).String())
}

func TestStateKindJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		S StateKind `json:"s"`
	}{StateAdminTag})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"admin_tag"}`, string(data))

	var out struct {
		S StateKind `json:"s"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"s":"overlay"}`), &out))
	assert.Equal(t, StateOverlay, out.S)
}

func testSchema() *Schema {
	return &Schema{
		MaxDepth: 3,
		Stacks: []StackSpec{
			{
				Name: "dash", Namespace: "dash", ExitsSession: true,
				Levels: []LevelSpec{
					{Name: "base", Stack: "dash", Token: "dash", Depth: 0, State: StateBase},
					{Name: "detail", Stack: "dash", Token: "dash/modal", Depth: 1, State: StateDetail,
						Flags: []FlagID{"classModal", "profileModal"}, Parent: "dash"},
				},
			},
			{
				Name: "admin", Namespace: "admin",
				Levels: []LevelSpec{
					{Name: "console", Stack: "admin", Token: "admin", Depth: 0, State: StateAdmin,
						Flags: []FlagID{"adminConsole"}},
				},
			},
		},
		Confirm: ConfirmSpec{Token: "confirm", Flag: "confirmDialog"},
		Bypass:  []Token{"confirm"},
		Gate:    GateSpec{Stack: "admin", Threshold: 5, WindowMS: 2000},
	}
}

func TestSchemaLookups(t *testing.T) {
	s := testSchema()

	st, ok := s.StackFor("dash/modal")
	require.True(t, ok)
	assert.Equal(t, "dash", st.Name)

	lvl, ok := s.Level("dash/modal")
	require.True(t, ok)
	assert.Equal(t, StateDetail, lvl.State)
	assert.True(t, lvl.AllowsFlag("classModal"))
	assert.False(t, lvl.AllowsFlag("adminConsole"))

	_, ok = s.Level("dash/modal/overlay")
	assert.False(t, ok, "undeclared token inside a known namespace")

	assert.True(t, s.Known("confirm"))
	assert.True(t, s.Known("admin"))
	assert.False(t, s.Known("settings"))
	assert.True(t, s.IsBypass("confirm"))
	assert.False(t, s.IsBypass("dash"))
}
