package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunExecutesPipeline(t *testing.T) {
	tempDir := t.TempDir()
	pipeline := `
buffer "x" {
  size = 4
}

node "ones" "fill" {
  target = "x"
  value  = 1
}
`
	filePath := filepath.Join(tempDir, "main.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(pipeline), 0o600))

	out := &bytes.Buffer{}
	require.NoError(t, run(out, []string{"-log-level", "error", filePath}))
}

func TestRunHelpExitsCleanly(t *testing.T) {
	out := &bytes.Buffer{}
	require.NoError(t, run(out, []string{"-h"}))
	assert.Contains(t, out.String(), "Usage:")
}

func TestRunParseError(t *testing.T) {
	out := &bytes.Buffer{}
	err := run(out, []string{"--this-is-not-a-valid-flag"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flag provided but not defined")
}

func TestRunLoadError(t *testing.T) {
	out := &bytes.Buffer{}
	err := run(out, []string{filepath.Join(t.TempDir(), "missing.hcl")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load pipeline")
}
