package compiler

import (
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

// SchemaPath is where the navigation struct lives in a CUE instance.
const SchemaPath = "navigation"

// DefaultMaxDepth is used when max_depth is omitted.
const DefaultMaxDepth = 3

// CompileSchema parses the navigation struct into an ir.Schema.
// Uses the CUE Go API directly (not the CLI).
//
// The CUE value should be the navigation struct itself:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(src)
//	schema, err := CompileSchema(v.LookupPath(cue.ParsePath("navigation")))
//
// CompileSchema does not validate cross-level rules; call Validate.
func CompileSchema(v cue.Value) (*ir.Schema, error) {
	if !v.Exists() {
		return nil, &CompileError{Field: SchemaPath, Message: "navigation struct not found"}
	}
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	s := &ir.Schema{MaxDepth: DefaultMaxDepth}

	if mv := v.LookupPath(cue.ParsePath("max_depth")); mv.Exists() {
		n, err := mv.Int64()
		if err != nil {
			return nil, &CompileError{Field: "max_depth", Message: "must be an integer", Pos: mv.Pos()}
		}
		s.MaxDepth = int(n)
	}

	confirm := v.LookupPath(cue.ParsePath("confirm"))
	if !confirm.Exists() {
		return nil, &CompileError{Field: "confirm", Message: "confirm is required", Pos: v.Pos()}
	}
	tok, err := requiredString(confirm, "token")
	if err != nil {
		return nil, err
	}
	s.Confirm.Token = ir.Token(tok)
	flag, err := optionalString(confirm, "flag")
	if err != nil {
		return nil, err
	}
	s.Confirm.Flag = ir.FlagID(flag)

	bypass := v.LookupPath(cue.ParsePath("bypass"))
	if bypass.Exists() {
		names, err := stringList(bypass, "bypass")
		if err != nil {
			return nil, err
		}
		s.Bypass = make([]ir.Token, len(names))
		for i, n := range names {
			s.Bypass[i] = ir.Token(n)
		}
	} else {
		s.Bypass = []ir.Token{s.Confirm.Token}
	}

	s.Stacks, err = parseStacks(v)
	if err != nil {
		return nil, err
	}

	s.Gate, err = parseGate(v)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// CompileSource compiles CUE source text and extracts the schema.
func CompileSource(src []byte, filename string) (*ir.Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileSchema(v.LookupPath(cue.ParsePath(SchemaPath)))
}

func parseStacks(v cue.Value) ([]ir.StackSpec, error) {
	stacksVal := v.LookupPath(cue.ParsePath("stacks"))
	if !stacksVal.Exists() {
		return nil, &CompileError{Field: "stacks", Message: "stacks is required", Pos: v.Pos()}
	}

	iter, err := stacksVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var stacks []ir.StackSpec
	for iter.Next() {
		name := iter.Selector().Unquoted()
		sv := iter.Value()

		st := ir.StackSpec{Name: name, Namespace: name}
		ns, err := optionalString(sv, "namespace")
		if err != nil {
			return nil, err
		}
		if ns != "" {
			st.Namespace = ns
		}
		if ev := sv.LookupPath(cue.ParsePath("exits_session")); ev.Exists() {
			b, err := ev.Bool()
			if err != nil {
				return nil, &CompileError{Field: "stacks." + name + ".exits_session", Message: "must be a bool", Pos: ev.Pos()}
			}
			st.ExitsSession = b
		}

		st.Levels, err = parseLevels(name, sv)
		if err != nil {
			return nil, err
		}
		stacks = append(stacks, st)
	}
	return stacks, nil
}

func parseLevels(stack string, sv cue.Value) ([]ir.LevelSpec, error) {
	levelsVal := sv.LookupPath(cue.ParsePath("levels"))
	if !levelsVal.Exists() {
		return nil, &CompileError{Field: "stacks." + stack + ".levels", Message: "levels is required", Pos: sv.Pos()}
	}
	iter, err := levelsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var levels []ir.LevelSpec
	for iter.Next() {
		name := iter.Selector().Unquoted()
		lv := iter.Value()
		field := "stacks." + stack + ".levels." + name

		tok, err := requiredString(lv, "token")
		if err != nil {
			return nil, err
		}

		dv := lv.LookupPath(cue.ParsePath("depth"))
		if !dv.Exists() {
			return nil, &CompileError{Field: field + ".depth", Message: "depth is required", Pos: lv.Pos()}
		}
		depth, err := dv.Int64()
		if err != nil {
			return nil, &CompileError{Field: field + ".depth", Message: "must be an integer", Pos: dv.Pos()}
		}

		stateName, err := requiredString(lv, "state")
		if err != nil {
			return nil, err
		}
		state, err := ir.ParseStateKind(stateName)
		if err != nil || state == ir.StateOutside || state == ir.StateConfirm {
			return nil, &CompileError{
				Field:   field + ".state",
				Message: fmt.Sprintf("unsupported level state %q", stateName),
				Pos:     lv.LookupPath(cue.ParsePath("state")).Pos(),
			}
		}

		var flags []ir.FlagID
		if fv := lv.LookupPath(cue.ParsePath("flags")); fv.Exists() {
			names, err := stringList(fv, field+".flags")
			if err != nil {
				return nil, err
			}
			for _, n := range names {
				flags = append(flags, ir.FlagID(n))
			}
		}

		levels = append(levels, ir.LevelSpec{
			Name:  name,
			Stack: stack,
			Token: ir.Token(tok),
			Depth: int(depth),
			State: state,
			Flags: flags,
		})
	}

	sort.SliceStable(levels, func(i, j int) bool { return levels[i].Depth < levels[j].Depth })
	for i := range levels {
		if i > 0 && levels[i-1].Depth == levels[i].Depth-1 {
			levels[i].Parent = levels[i-1].Token
		}
	}
	return levels, nil
}

func parseGate(v cue.Value) (ir.GateSpec, error) {
	gv := v.LookupPath(cue.ParsePath("gate"))
	if !gv.Exists() {
		return ir.GateSpec{}, &CompileError{Field: "gate", Message: "gate is required", Pos: v.Pos()}
	}
	stack, err := requiredString(gv, "stack")
	if err != nil {
		return ir.GateSpec{}, err
	}
	threshold, err := requiredInt(gv, "gate", "threshold")
	if err != nil {
		return ir.GateSpec{}, err
	}
	window, err := requiredInt(gv, "gate", "window_ms")
	if err != nil {
		return ir.GateSpec{}, err
	}
	return ir.GateSpec{Stack: stack, Threshold: int(threshold), WindowMS: window}, nil
}

func requiredInt(v cue.Value, parent, field string) (int64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, &CompileError{Field: parent + "." + field, Message: field + " is required", Pos: v.Pos()}
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, &CompileError{Field: parent + "." + field, Message: "must be an integer", Pos: fv.Pos()}
	}
	return n, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: "must be a string", Pos: fv.Pos()}
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: "must be a string", Pos: fv.Pos()}
	}
	return s, nil
}

func stringList(v cue.Value, field string) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a list of strings", Pos: v.Pos()}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{Field: field, Message: "must be a list of strings", Pos: iter.Value().Pos()}
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
