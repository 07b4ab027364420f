package compiler

import (
	_ "embed"
	"fmt"

	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

//go:embed default.cue
var defaultSource []byte

// DefaultSource returns the CUE source of the built-in dashboard schema.
func DefaultSource() []byte {
	out := make([]byte, len(defaultSource))
	copy(out, defaultSource)
	return out
}

// DefaultSchema compiles and validates the built-in dashboard schema.
func DefaultSchema() (*ir.Schema, error) {
	s, err := CompileSource(defaultSource, "default.cue")
	if err != nil {
		return nil, err
	}
	if errs := Validate(s); len(errs) > 0 {
		return nil, fmt.Errorf("default schema: %w", errs[0])
	}
	return s, nil
}

// MustDefault is DefaultSchema for callers that cannot recover from a broken
// build.
func MustDefault() *ir.Schema {
	s, err := DefaultSchema()
	if err != nil {
		panic(err)
	}
	return s
}
