package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GuLp-St/Attendance-Studio/internal/compiler"
	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

func TestCompile_Text(t *testing.T) {
	t.Setenv(EnvSchema, "")

	out, err := executeCommand(t, "compile")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Compiled "+DefaultSchemaSource)
	assert.Contains(t, out, "Stack dash [dash] (exits session)")
	assert.Contains(t, out, "Stack admin [admin]")
	assert.Contains(t, out, "dash/modal/overlay")
	assert.Contains(t, out, "Gate: admin (5 signals / 2000ms)")
}

func TestCompile_OutputFileIsCanonical(t *testing.T) {
	out := filepath.Join(t.TempDir(), "schema.json")

	_, err := executeCommand(t, "compile", writeSchema(t), "-o", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	want, err := ir.MarshalCanonical(compiler.MustDefault().ToMap())
	require.NoError(t, err)
	assert.Equal(t, string(want), string(data))
}

func TestCompile_JSON(t *testing.T) {
	t.Setenv(EnvSchema, "")

	out, err := executeCommand(t, "compile", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Hash   string    `json:"schema_hash"`
			Schema ir.Schema `json:"schema"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	hash, err := ir.SchemaHash(compiler.MustDefault())
	require.NoError(t, err)
	assert.Equal(t, hash, resp.Data.Hash)
	assert.Equal(t, 3, resp.Data.Schema.MaxDepth)
	assert.Len(t, resp.Data.Schema.Stacks, 2)
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := executeCommand(t, "compile", writeSchema(t, "threshold: 5", "threshold: 0"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), compiler.ErrGateConfig)
}

func TestCompile_WriteFailure(t *testing.T) {
	t.Setenv(EnvSchema, "")
	out := filepath.Join(t.TempDir(), "missing", "dir", "schema.json")

	_, err := executeCommand(t, "compile", "-o", out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeWriteFailed)
}
