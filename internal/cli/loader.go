package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/GuLp-St/Attendance-Studio/internal/compiler"
	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

// Environment variables that supply flag defaults.
const (
	EnvSchema   = "NAVSYNC_SCHEMA"
	EnvDatabase = "NAVSYNC_DB"
)

// DefaultSchemaSource names the embedded schema in output.
const DefaultSchemaSource = "(embedded default)"

// LoadResult is a compiled schema and where it came from.
type LoadResult struct {
	Schema *ir.Schema
	Source string
	Hash   string
}

// LoadError represents an error that occurred during schema loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// schemaPath picks the schema argument, then NAVSYNC_SCHEMA. An empty result
// selects the embedded default.
func schemaPath(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return os.Getenv(EnvSchema)
}

// databasePath returns flag, or NAVSYNC_DB when the flag is unset.
func databasePath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv(EnvDatabase); env != "" {
		return env, nil
	}
	return "", NewExitError(ExitCommandError, "database path required: use --db or set "+EnvDatabase)
}

// LoadSchema compiles the schema at path without validating it. An empty
// path loads the embedded default. Errors are *LoadError.
func LoadSchema(path string) (*LoadResult, error) {
	res := &LoadResult{Source: path}

	if path == "" {
		res.Source = DefaultSchemaSource
		s, err := compiler.CompileSource(compiler.DefaultSource(), "default.cue")
		if err != nil {
			return nil, convertCompileError(err)
		}
		res.Schema = s
	} else {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema not found: %s", path)}
			}
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema: %v", err)}
		}
		s, err := compiler.LoadSchema(path)
		if err != nil {
			return nil, convertCompileError(err)
		}
		res.Schema = s
	}

	hash, err := ir.SchemaHash(res.Schema)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}
	res.Hash = hash
	return res, nil
}

// LoadValidSchema is LoadSchema followed by compiler.Validate. The first
// validation error is returned with its compiler code.
func LoadValidSchema(path string) (*LoadResult, error) {
	res, err := LoadSchema(path)
	if err != nil {
		return nil, err
	}
	if errs := compiler.Validate(res.Schema); len(errs) > 0 {
		return nil, &LoadError{Code: errs[0].Code, Message: fmt.Sprintf("%s: %s", errs[0].Field, errs[0].Message)}
	}
	return res, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
}

// Error code constants - unified across all CLI commands. Schema validation
// codes (E100-E119) come from the compiler package.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeLoadFailed   = "E004" // CUE load or evaluation failed
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeBuildFailed  = "E006" // navigation struct has the wrong shape
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeMissingField = "E008" // required schema field missing
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "cue":
		return ErrCodeLoadFailed
	case compiler.SchemaPath:
		return ErrCodeMissingField
	default:
		return ErrCodeBuildFailed
	}
}
