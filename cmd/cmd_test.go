package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "family_data.csv")
	sub := filepath.Join(dir, "submission.csv")
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`solver:
  max_iterations: 3000
  report_every: 1000
runlog:
  backend: sqlite
  path: `+filepath.Join(dir, "runs.db")+`
`), 0o644))

	out, err := execute(t, "generate", "--groups", "4000", "--seed", "2", "-o", data)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 4000 families")

	out, err = execute(t, "solve", "-c", cfg, "-i", data, "-o", sub, "--seed", "5", "-q")
	require.NoError(t, err)
	assert.Contains(t, out, "done after 3000 iterations")
	assert.Contains(t, out, "wrote "+sub)

	out, err = execute(t, "score", "-c", cfg, "-i", data, sub)
	require.NoError(t, err)
	assert.Contains(t, out, "total cost")
	assert.Contains(t, out, "true")

	out, err = execute(t, "runs", "-c", cfg, "--state", "done")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "done")

	_, err = execute(t, "runs", "-c", cfg, "--state", "bogus")
	assert.Error(t, err)

	_, err = execute(t, "score", "-c", cfg, "-i", data, filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}
