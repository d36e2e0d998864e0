// Package app wires the pipeline harness together: it loads a pipeline
// model, allocates buffers and scalars on a device, builds a compute graph
// through the op registry, launches it, and reads the results back.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/slipstream/buffer"
	"github.com/vk/slipstream/device"
	"github.com/vk/slipstream/graph"
	"github.com/vk/slipstream/internal/ctxlog"
	"github.com/vk/slipstream/internal/loader"
	"github.com/vk/slipstream/internal/ops"
	"github.com/vk/slipstream/internal/pipeline"
)

// App encapsulates the harness's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	registry *ops.Registry
	model    *pipeline.Model

	buffers map[string][]float64
	scalars map[string]float64
}

// NewApp constructs the harness with its own isolated logger. A nil
// registry selects the built-in op set.
func NewApp(outW io.Writer, cfg *Config, registry *ops.Registry) *App {
	if registry == nil {
		registry = ops.New()
	}
	return &App{
		outW:     outW,
		logger:   newLogger(cfg.LogLevel, cfg.LogFormat, outW),
		config:   cfg,
		registry: registry,
		buffers:  make(map[string][]float64),
		scalars:  make(map[string]float64),
	}
}

// LoadPipeline parses the configured pipeline path into the model.
func (a *App) LoadPipeline(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	model, err := loader.Load(ctx, a.config.PipelinePath)
	if err != nil {
		return fmt.Errorf("failed to load pipeline: %w", err)
	}
	a.model = model
	a.logger.Info("Pipeline loaded.",
		"buffers", len(model.Buffers), "scalars", len(model.Scalars), "nodes", len(model.Nodes))
	return nil
}

// Run executes the loaded pipeline end to end and stores the host read-back
// of every buffer and scalar.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	if a.model == nil {
		if err := a.LoadPipeline(ctx); err != nil {
			return err
		}
	}

	dev := device.New(a.config.Workers)
	defer dev.Close()
	g := graph.New(dev, "pipeline")
	defer g.Close()
	data := dev.NewStream("data")

	bufs := make(map[string]*buffer.Growable[float64], len(a.model.Buffers))
	scals := make(map[string]*buffer.Scalar[float64], len(a.model.Scalars))
	env := &ops.Env{
		Graph:   g,
		Buffers: make(map[string]*graph.BufferVar[float64]),
		Scalars: make(map[string]*graph.ScalarVar[float64]),
	}

	for _, def := range a.model.Buffers {
		buf, err := buffer.NewGrowable[float64](data, def.Name, def.Size)
		if err != nil {
			return fmt.Errorf("allocating buffer %q: %w", def.Name, err)
		}
		v, err := graph.DeclareBuffer[float64](g, def.Name)
		if err != nil {
			return fmt.Errorf("declaring var %q: %w", def.Name, err)
		}
		v.Bind(buf)
		bufs[def.Name] = buf
		env.Buffers[def.Name] = v
	}
	for _, def := range a.model.Scalars {
		sc := buffer.NewScalar[float64](data, def.Name, def.Value)
		v, err := graph.DeclareScalar[float64](g, def.Name)
		if err != nil {
			return fmt.Errorf("declaring scalar var %q: %w", def.Name, err)
		}
		v.Bind(sc)
		scals[def.Name] = sc
		env.Scalars[def.Name] = v
	}

	for _, n := range a.model.Nodes {
		if err := a.registry.Build(ctx, env, n); err != nil {
			return fmt.Errorf("failed to build graph: %w", err)
		}
	}

	if a.config.Describe {
		fmt.Fprint(a.outW, g.Describe())
		fmt.Fprint(a.outW, g.DOT())
	}

	a.logger.Info("Launching pipeline.",
		"graph_mode", a.config.GraphMode, "repeat", a.config.Repeat, "nodes", len(a.model.Nodes))
	for i := 0; i < a.config.Repeat; i++ {
		if err := g.Launch(ctx, a.config.GraphMode); err != nil {
			return fmt.Errorf("launch %d failed: %w", i+1, err)
		}
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	a.logger.Info("Execution finished.")

	for name, buf := range bufs {
		vals, err := buf.Read()
		if err != nil {
			return fmt.Errorf("reading back buffer %q: %w", name, err)
		}
		a.buffers[name] = vals
	}
	for name, sc := range scals {
		val, err := sc.Get()
		if err != nil {
			return fmt.Errorf("reading back scalar %q: %w", name, err)
		}
		a.scalars[name] = val
	}

	for _, buf := range bufs {
		buf.Free()
	}
	for _, sc := range scals {
		sc.Free()
	}
	alloc := dev.Allocator()
	a.logger.Debug("Device memory accounting.",
		"live_bytes", alloc.LiveBytes(), "peak_bytes", alloc.PeakBytes(),
		"allocs", alloc.Allocs(), "frees", alloc.Frees())
	return nil
}

// Buffers returns the host read-back of every buffer from the last Run.
func (a *App) Buffers() map[string][]float64 { return a.buffers }

// Scalars returns the host read-back of every scalar from the last Run.
func (a *App) Scalars() map[string]float64 { return a.scalars }
