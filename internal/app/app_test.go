package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/slipstream/internal/testutil"
)

const saxpyPipeline = `
buffer "x" {
  size = 8
}

buffer "y" {
  size = 8
}

scalar "total" {
  value = 0
}

node "init_x" "iota" {
  target = "x"
  start  = 1
}

node "init_y" "fill" {
  target = "y"
  value  = 10
}

node "saxpy" "axpy" {
  a = 2
  x = "x"
  y = "y"
}

node "reduce" "sum" {
  from = "y"
  into = "total"
}
`

func TestPipelineEndToEnd(t *testing.T) {
	for _, graphMode := range []bool{false, true} {
		name := "stream_mode"
		if graphMode {
			name = "graph_mode"
		}
		t.Run(name, func(t *testing.T) {
			result := testutil.RunPipeline(t, map[string]string{
				"pipeline.hcl": saxpyPipeline,
			}, graphMode)
			require.NoError(t, result.Err)

			// y = 2*[1..8] + 10
			want := []float64{12, 14, 16, 18, 20, 22, 24, 26}
			assert.Equal(t, want, result.Buffers["y"])
			assert.Equal(t, 152.0, result.Scalars["total"])
		})
	}
}

func TestModesProduceIdenticalResults(t *testing.T) {
	files := map[string]string{"pipeline.hcl": saxpyPipeline}

	stream := testutil.RunPipeline(t, files, false)
	captured := testutil.RunPipeline(t, files, true)
	require.NoError(t, stream.Err)
	require.NoError(t, captured.Err)

	assert.Equal(t, stream.Buffers, captured.Buffers)
	assert.Equal(t, stream.Scalars, captured.Scalars)
}

func TestPipelineSplitAcrossFiles(t *testing.T) {
	result := testutil.RunPipeline(t, map[string]string{
		"10_data.hcl": `
buffer "x" { size = 4 }
`,
		"20_nodes.hcl": `
node "ones" "fill" {
  target = "x"
  value  = 1
}
`,
	}, true)
	require.NoError(t, result.Err)
	assert.Equal(t, []float64{1, 1, 1, 1}, result.Buffers["x"])
}

func TestScaleReadsDeviceScalar(t *testing.T) {
	result := testutil.RunPipeline(t, map[string]string{
		"pipeline.hcl": `
buffer "x" { size = 3 }

scalar "alpha" {
  value = 4
}

node "seq" "iota" {
  target = "x"
  start  = 1
}

node "scale_x" "scale" {
  target = "x"
  factor = "alpha"
}
`,
	}, true)
	require.NoError(t, result.Err)
	assert.Equal(t, []float64{4, 8, 12}, result.Buffers["x"])
	assert.Equal(t, 4.0, result.Scalars["alpha"])
}

func TestPrintOpLogsValues(t *testing.T) {
	result := testutil.RunPipeline(t, map[string]string{
		"pipeline.hcl": `
buffer "x" { size = 2 }

node "ones" "fill" {
  target = "x"
  value  = 1
}

node "show" "print" {
  from = "x"
}
`,
	}, false)
	require.NoError(t, result.Err)
	assert.Contains(t, result.LogOutput, "Buffer contents.")
	assert.Contains(t, result.LogOutput, "buffer=x")
}

func TestUnknownOpFailsBuild(t *testing.T) {
	result := testutil.RunPipeline(t, map[string]string{
		"pipeline.hcl": `
buffer "x" { size = 2 }

node "n" "teleport" {
  target = "x"
}
`,
	}, false)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), `unknown op "teleport"`)
}

func TestBadReferenceFailsBuild(t *testing.T) {
	result := testutil.RunPipeline(t, map[string]string{
		"pipeline.hcl": `
node "n" "fill" {
  target = "ghost"
  value  = 1
}
`,
	}, false)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), `no buffer named "ghost"`)
}

func TestInvalidHCLFailsLoad(t *testing.T) {
	result := testutil.RunPipeline(t, map[string]string{
		"pipeline.hcl": `buffer "x" {`,
	}, false)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "failed to load pipeline")
}
