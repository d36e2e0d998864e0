// Package graph implements a re-launchable compute graph over the
// simulated accelerator: named, typed vars bound to caller-owned buffers,
// nodes whose dependency edges are derived by tracing their closures, and
// two execution modes — a captured native execution graph re-launched with
// a single submission, or sequential re-issue on one stream.
//
// Lifecycle: declare vars and nodes (each node is traced once at
// registration), bind buffers, Launch, Wait; rebind and Update to patch the
// compiled graph in place when only the data changed. A single Graph
// supports one constructing/submitting goroutine; independent graphs may
// run concurrently on their own streams.
package graph

import (
	"context"
	"fmt"
	"reflect"

	"github.com/vk/slipstream/device"
	"github.com/vk/slipstream/internal/ctxlog"
)

// State is the graph's lifecycle position.
type State uint8

const (
	// Unbuilt: no nodes registered yet.
	Unbuilt State = iota
	// Traced: nodes registered and traced, not yet compiled.
	Traced
	// Compiled: dependency DAG scheduled and, in graph mode, captured.
	Compiled
	// Ready: launched at least once; Update may patch in place.
	Ready
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Unbuilt:
		return "unbuilt"
	case Traced:
		return "traced"
	case Compiled:
		return "compiled"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Graph owns its vars and nodes exclusively. It does not own the buffers
// bound to its vars.
type Graph struct {
	name   string
	dev    *device.Device
	stream *device.Stream
	pf     *device.ParallelFor

	state     State
	slots     map[string]*slot
	slotOrder []*slot
	nodes     []*node
	nodeNames map[string]struct{}

	graphMode bool
	inst      *device.ExecInstance
}

// New creates an empty graph with its own submission stream on dev.
func New(dev *device.Device, name string) *Graph {
	return &Graph{
		name:      name,
		dev:       dev,
		stream:    dev.NewStream("graph:" + name),
		pf:        dev.NewParallelFor(0),
		slots:     make(map[string]*slot),
		nodeNames: make(map[string]struct{}),
	}
}

// Name returns the graph's identifier.
func (g *Graph) Name() string { return g.name }

// State returns the current lifecycle state.
func (g *Graph) State() State { return g.state }

// Device returns the device the graph runs on.
func (g *Graph) Device() *device.Device { return g.dev }

// Wait blocks until all launched work has completed and returns the first
// execution error since the previous Wait. It is the only blocking call on
// a graph; Launch and Update never wait.
func (g *Graph) Wait() error {
	return g.stream.Wait()
}

// Close drains and releases the graph's stream. Vars and nodes die with
// the graph; bound buffers are untouched, they belong to the caller.
func (g *Graph) Close() {
	g.stream.Close()
}

func (g *Graph) declare(name string, elem, bindType reflect.Type, scalar bool) (*slot, error) {
	if g.state >= Compiled {
		return nil, fmt.Errorf("graph %q: cannot declare var %q after compilation: %w", g.name, name, device.ErrInvalidArgument)
	}
	if _, exists := g.slots[name]; exists {
		return nil, fmt.Errorf("graph %q: var %q already declared: %w", g.name, name, ErrNameConflict)
	}
	s := &slot{name: name, elem: elem, bindType: bindType, scalar: scalar}
	g.slots[name] = s
	g.slotOrder = append(g.slotOrder, s)
	return s, nil
}

// AddNode registers a unit of work and immediately runs its body once in
// trace mode to record which vars it evaluates. The recorded access set is
// fixed for the node's lifetime; edges are derived from it when the graph
// compiles. Nodes cannot be added once the graph has compiled.
func (g *Graph) AddNode(ctx context.Context, name string, body NodeBody) error {
	logger := ctxlog.FromContext(ctx)
	if g.state >= Compiled {
		return fmt.Errorf("graph %q: cannot add node %q after compilation: %w", g.name, name, device.ErrInvalidArgument)
	}
	if _, exists := g.nodeNames[name]; exists {
		return fmt.Errorf("graph %q: node %q already declared: %w", g.name, name, ErrNameConflict)
	}
	n := &node{name: name, idx: len(g.nodes), body: body}
	tc := newTaskContext(g, n, modeTrace)
	if err := body(tc); err != nil {
		return fmt.Errorf("graph %q: tracing node %q: %w", g.name, name, err)
	}
	n.accesses = tc.seen
	n.order = tc.order
	g.nodes = append(g.nodes, n)
	g.nodeNames[name] = struct{}{}
	g.state = Traced
	logger.Debug("Traced node.", "graph", g.name, "node", name, "vars_touched", len(tc.order))
	return nil
}

// Launch compiles the graph if needed and submits one execution, returning
// without waiting.
//
// With graphMode true the traced DAG is captured once into a native
// execution graph: every node body runs a single time to freeze its kernels
// against the current bindings, and each subsequent Launch is a single
// low-overhead submission in which independent nodes may overlap. With
// graphMode false every Launch re-invokes each body sequentially on the
// graph's stream in declaration order, which permits bodies that branch on
// current var values.
//
// Switching modes between launches forces a recompile. A node that
// evaluates a var with no current binding fails here with
// ErrUnboundVariable before anything is submitted.
func (g *Graph) Launch(ctx context.Context, graphMode bool) error {
	logger := ctxlog.FromContext(ctx)
	if err := g.validateBindings(); err != nil {
		return err
	}
	if g.state < Compiled || g.graphMode != graphMode {
		if err := g.compile(ctx, graphMode); err != nil {
			return err
		}
	}
	if g.graphMode {
		for _, s := range g.slotOrder {
			if s.dirty {
				logger.Warn("Var was rebound after capture; the compiled graph still references the old binding. Call Update.",
					"graph", g.name, "var", s.name)
			}
		}
		g.inst.Launch(g.stream)
	} else {
		for _, n := range g.nodes {
			g.stream.Submit("node:"+n.name, g.streamTask(n))
		}
		g.clearDirty()
	}
	g.state = Ready
	logger.Debug("Launched graph.", "graph", g.name, "graph_mode", g.graphMode, "nodes", len(g.nodes))
	return nil
}

// Update re-binds the compiled graph to the vars' current bindings without
// rebuilding it. Every node body is re-run in capture mode; if any node's
// accessed-var set differs from the traced one the update hard-fails with
// ErrStructureChanged and the compiled graph is left untouched. Otherwise,
// in graph mode, each node's frozen parameters are patched in place — an
// order of magnitude cheaper than recompiling.
//
// Update is valid only after a successful Launch, and the caller must have
// synchronized any buffer streams whose resizes should be visible.
func (g *Graph) Update(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	if g.state != Ready {
		return fmt.Errorf("graph %q: update in state %s, need %s: %w", g.name, g.state, Ready, device.ErrInvalidArgument)
	}
	if err := g.validateBindings(); err != nil {
		return err
	}
	params := make([]device.NodeParams, len(g.nodes))
	for i, n := range g.nodes {
		tc := newTaskContext(g, n, modeCapture)
		if err := n.body(tc); err != nil {
			return fmt.Errorf("graph %q: updating node %q: %w", g.name, n.name, err)
		}
		if !sameAccesses(n, tc) {
			return fmt.Errorf("graph %q: node %q touched a different var set than traced: %w", g.name, n.name, ErrStructureChanged)
		}
		params[i] = mergeKernels(tc.kernels)
	}
	if g.graphMode {
		for i := range g.nodes {
			if err := g.inst.UpdateNodeParams(i, params[i]); err != nil {
				return err
			}
		}
	}
	g.clearDirty()
	logger.Debug("Updated graph in place.", "graph", g.name, "graph_mode", g.graphMode)
	return nil
}

// compile derives the dependency DAG from the traced access sets and, in
// graph mode, captures every node into a native execution graph.
func (g *Graph) compile(ctx context.Context, graphMode bool) error {
	logger := ctxlog.FromContext(ctx)
	deps := g.edges()
	for i, n := range g.nodes {
		n.deps = deps[i]
	}
	g.inst = nil
	if graphMode {
		captured := make([]device.CapturedNode, len(g.nodes))
		for i, n := range g.nodes {
			tc := newTaskContext(g, n, modeCapture)
			if err := n.body(tc); err != nil {
				return fmt.Errorf("graph %q: capturing node %q: %w", g.name, n.name, err)
			}
			if !sameAccesses(n, tc) {
				return fmt.Errorf("graph %q: node %q touched a different var set than traced: %w", g.name, n.name, ErrStructureChanged)
			}
			captured[i] = device.CapturedNode{
				Name:   n.name,
				Params: mergeKernels(tc.kernels),
				Deps:   n.deps,
			}
		}
		eg, err := device.Capture(captured)
		if err != nil {
			return fmt.Errorf("graph %q: %w", g.name, err)
		}
		g.inst = eg.Instantiate(g.dev.Workers())
	}
	g.graphMode = graphMode
	g.clearDirty()
	g.state = Compiled
	logger.Debug("Compiled graph.", "graph", g.name, "graph_mode", graphMode, "nodes", len(g.nodes))
	return nil
}

// streamTask wraps a node body for sequential stream execution. The body
// runs in exec mode with live views; afterwards its accesses are checked
// against the trace so a structure violation surfaces at the next Wait
// instead of silently corrupting the schedule.
func (g *Graph) streamTask(n *node) func() error {
	return func() error {
		tc := newTaskContext(g, n, modeExec)
		if err := n.body(tc); err != nil {
			return &device.ExecError{Node: n.name, Op: "body", Err: err}
		}
		if !sameAccesses(n, tc) {
			return fmt.Errorf("node %q touched a different var set than traced: %w", n.name, ErrStructureChanged)
		}
		return nil
	}
}

// edges derives, for every node, the earlier nodes it conflicts with: two
// nodes sharing a var where at least one access is a write are ordered by
// declaration. Edges only ever point from earlier- to later-declared nodes,
// so the result is acyclic by construction.
func (g *Graph) edges() [][]int {
	deps := make([][]int, len(g.nodes))
	for j, nj := range g.nodes {
		for i := 0; i < j; i++ {
			if conflicts(g.nodes[i], nj) {
				deps[j] = append(deps[j], i)
			}
		}
	}
	return deps
}

func conflicts(a, b *node) bool {
	// Iterate the smaller access set.
	if len(b.accesses) < len(a.accesses) {
		a, b = b, a
	}
	for s, ka := range a.accesses {
		if kb, ok := b.accesses[s]; ok && (ka|kb)&accessWrite != 0 {
			return true
		}
	}
	return false
}

// validateBindings fails with ErrUnboundVariable if any traced access
// refers to a var with no current binding.
func (g *Graph) validateBindings() error {
	for _, n := range g.nodes {
		for _, s := range n.order {
			if s.binding == nil {
				return fmt.Errorf("graph %q: node %q evaluates var %q which has no binding: %w", g.name, n.name, s.name, ErrUnboundVariable)
			}
		}
	}
	return nil
}

func (g *Graph) clearDirty() {
	for _, s := range g.slotOrder {
		s.dirty = false
	}
}
