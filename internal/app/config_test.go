package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigRequiresPipelinePath(t *testing.T) {
	_, err := NewConfig(Config{})
	assert.Error(t, err)
}

func TestNewConfigDefaultsRepeat(t *testing.T) {
	cfg, err := NewConfig(Config{PipelinePath: "pipeline.hcl"})
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Repeat)

	cfg, err = NewConfig(Config{PipelinePath: "pipeline.hcl", Repeat: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Repeat)
}
