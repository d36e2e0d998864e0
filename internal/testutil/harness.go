// Package testutil provides the integration-test harness: it materializes
// in-memory pipeline files into a temp directory, runs the full app against
// them, and captures logs and results.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/slipstream/internal/app"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	Buffers   map[string][]float64
	Scalars   map[string]float64
}

// RunPipeline writes the given files (relative path -> HCL content) into a
// temp directory and runs the harness app over it in the given mode.
func RunPipeline(t *testing.T, files map[string]string, graphMode bool) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0o644))
	}

	cfg, err := app.NewConfig(app.Config{
		PipelinePath: tmpDir,
		GraphMode:    graphMode,
		LogLevel:     "debug",
		LogFormat:    "text",
		Workers:      4,
	})
	require.NoError(t, err)

	logBuffer := &SafeBuffer{}
	harness := app.NewApp(logBuffer, cfg, nil)
	runErr := harness.Run(context.Background())

	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Err:       runErr,
		Buffers:   harness.Buffers(),
		Scalars:   harness.Scalars(),
	}
}
