package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GuLp-St/Attendance-Studio/internal/compiler"
)

func TestValidate_Default(t *testing.T) {
	t.Setenv(EnvSchema, "")

	out, err := executeCommand(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Schema valid: "+DefaultSchemaSource)
	assert.Contains(t, out, "2 stack(s), 5 level(s)")
}

func TestValidate_File(t *testing.T) {
	path := writeSchema(t)

	out, err := executeCommand(t, "validate", path, "-v")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Schema valid: "+path)
	assert.Contains(t, out, "hash: ")
}

func TestValidate_EnvDefault(t *testing.T) {
	path := writeSchema(t)
	t.Setenv(EnvSchema, path)

	out, err := executeCommand(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, path)
}

func TestValidate_RuleViolations(t *testing.T) {
	path := writeSchema(t, "max_depth: 3", "max_depth: 7")

	out, err := executeCommand(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, compiler.ErrMaxDepthRange)
}

func TestValidate_RuleViolationsJSON(t *testing.T) {
	path := writeSchema(t, "max_depth: 3", "max_depth: 7")

	out, err := executeCommand(t, "validate", path, "--format", "json")
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotEmpty(t, resp.Data.Errors)
	assert.Equal(t, compiler.ErrMaxDepthRange, resp.Error.Code)
}

func TestValidate_LoadErrors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		out, err := executeCommand(t, "validate", filepath.Join(t.TempDir(), "nope.cue"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error ["+ErrCodeNotFound+"]")
	})

	t.Run("syntax", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.cue")
		require.NoError(t, os.WriteFile(path, []byte("navigation: {\n\tmax_depth: 3\n\tmax_depth: 4\n}\n"), 0o644))

		_, err := executeCommand(t, "validate", path)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		var loadErr *LoadError
		_, lerr := LoadSchema(path)
		require.ErrorAs(t, lerr, &loadErr)
		assert.Equal(t, ErrCodeLoadFailed, loadErr.Code)
	})

	t.Run("no navigation struct", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.cue")
		require.NoError(t, os.WriteFile(path, []byte("other: 1\n"), 0o644))

		_, err := LoadSchema(path)
		var loadErr *LoadError
		require.ErrorAs(t, err, &loadErr)
		assert.Equal(t, ErrCodeMissingField, loadErr.Code)
	})
}

func TestLoadValidSchema(t *testing.T) {
	res, err := LoadValidSchema("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSchemaSource, res.Source)
	assert.Len(t, res.Hash, 64)

	fromFile, err := LoadValidSchema(writeSchema(t))
	require.NoError(t, err)
	assert.Equal(t, res.Hash, fromFile.Hash, "same source compiles to the same hash")

	_, err = LoadValidSchema(writeSchema(t, "max_depth: 3", "max_depth: 0"))
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, compiler.ErrMaxDepthRange, loadErr.Code)
}

func TestDatabasePath(t *testing.T) {
	t.Setenv(EnvDatabase, "")
	_, err := databasePath("")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	got, err := databasePath("a.db")
	require.NoError(t, err)
	assert.Equal(t, "a.db", got)

	t.Setenv(EnvDatabase, "env.db")
	got, err = databasePath("")
	require.NoError(t, err)
	assert.Equal(t, "env.db", got)
}
