package app

import (
	"io"
	"log/slog"
)

// newLogger builds the harness's isolated logger. The global logger is never
// touched, so tests can capture output per App instance. Text is the default
// format: pipeline runs are short-lived and read by humans, json exists for
// piping into tooling.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if formatStr == "json" {
		return slog.New(slog.NewJSONHandler(outW, opts))
	}
	return slog.New(slog.NewTextHandler(outW, opts))
}
