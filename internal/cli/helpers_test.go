package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GuLp-St/Attendance-Studio/internal/compiler"
)

// executeCommand runs the root command with args and returns its output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// writeSchema writes the default schema with the given replacements applied.
func writeSchema(t *testing.T, replacements ...string) string {
	t.Helper()
	src := string(compiler.DefaultSource())
	for i := 0; i+1 < len(replacements); i += 2 {
		require.Contains(t, src, replacements[i])
		src = strings.Replace(src, replacements[i], replacements[i+1], 1)
	}
	path := filepath.Join(t.TempDir(), "nav.cue")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

const scenariosDir = "../harness/testdata/scenarios"
