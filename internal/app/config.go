package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PipelinePath string // .hcl file or directory of .hcl files

	GraphMode bool // capture a native execution graph instead of stream replay
	Describe  bool // print the dependency graph before running
	Repeat    int  // number of launches per run

	LogFormat string
	LogLevel  string
	Workers   int
}

// NewConfig validates a Config and applies defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}
	if cfg.Repeat < 1 {
		cfg.Repeat = 1
	}
	return &cfg, nil
}
