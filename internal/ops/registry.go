// Package ops maps pipeline node declarations onto compute-graph nodes.
// Each op is a named handler that decodes its own arguments and registers
// one node body on the graph; the registry is the single place the harness
// learns what ops exist.
package ops

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/vk/slipstream/graph"
	"github.com/vk/slipstream/internal/pipeline"
)

// Env is the build environment handed to every op handler: the graph under
// construction and the declared vars by name.
type Env struct {
	Graph   *graph.Graph
	Buffers map[string]*graph.BufferVar[float64]
	Scalars map[string]*graph.ScalarVar[float64]
}

// Handler decodes one pipeline node's arguments and registers it on the
// graph.
type Handler func(ctx context.Context, env *Env, n *pipeline.Node) error

// Registry holds the known ops.
type Registry struct {
	handlers map[string]Handler
}

// New creates a registry pre-populated with the built-in ops.
func New() *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	registerBuiltins(r)
	return r
}

// Register adds an op handler. Registering a duplicate name is a
// programming error and panics.
func (r *Registry) Register(name string, h Handler) {
	if _, exists := r.handlers[name]; exists {
		panic(fmt.Sprintf("op handler %q already registered", name))
	}
	slog.Debug("Registering op handler.", "name", name)
	r.handlers[name] = h
}

// Names returns the registered op names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build registers the pipeline node on the graph via its op handler.
func (r *Registry) Build(ctx context.Context, env *Env, n *pipeline.Node) error {
	h, ok := r.handlers[n.Op]
	if !ok {
		return fmt.Errorf("node %q: unknown op %q (known: %v)", n.Name, n.Op, r.Names())
	}
	if err := h(ctx, env, n); err != nil {
		return fmt.Errorf("node %q (op %q): %w", n.Name, n.Op, err)
	}
	return nil
}
