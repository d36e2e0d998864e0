package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePipelineFlagVariants(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{name: "long_flag", args: []string{"-pipeline", "run.hcl"}},
		{name: "short_flag", args: []string{"-p", "run.hcl"}},
		{name: "positional", args: []string{"run.hcl"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			cfg, exit, err := Parse(tc.args, &out)
			require.NoError(t, err)
			require.False(t, exit)
			assert.Equal(t, "run.hcl", cfg.PipelinePath)
			assert.Equal(t, 1, cfg.Repeat)
			assert.Equal(t, "text", cfg.LogFormat)
		})
	}
}

func TestParseAllOptions(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{
		"-graph-mode",
		"-describe",
		"-repeat", "3",
		"-log-format", "json",
		"-log-level", "debug",
		"-workers", "8",
		"run.hcl",
	}, &out)
	require.NoError(t, err)
	require.False(t, exit)

	assert.True(t, cfg.GraphMode)
	assert.True(t, cfg.Describe)
	assert.Equal(t, 3, cfg.Repeat)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8, cfg.Workers)
}

func TestParseNoArgsPrintsUsage(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse(nil, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParseHelpExitsCleanly(t *testing.T) {
	var out bytes.Buffer
	_, exit, err := Parse([]string{"-h"}, &out)
	require.NoError(t, err)
	assert.True(t, exit)
}

func TestParseInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{name: "bad_log_format", args: []string{"-log-format", "xml", "run.hcl"}},
		{name: "bad_log_level", args: []string{"-log-level", "loud", "run.hcl"}},
		{name: "unknown_flag", args: []string{"-frobnicate", "run.hcl"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			_, _, err := Parse(tc.args, &out)
			require.Error(t, err)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
		})
	}
}
