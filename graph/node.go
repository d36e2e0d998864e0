package graph

import (
	"strings"

	"github.com/vk/slipstream/device"
)

// NodeBody declares one unit of work. It is invoked once in trace mode at
// registration to discover which vars it touches, and again for real
// execution (either re-issued per launch in stream mode, or once at capture
// time in graph mode). A body must be referentially deterministic: every
// invocation must evaluate exactly the vars the trace saw.
type NodeBody func(tc *TaskContext) error

type access uint8

const (
	accessRead access = 1 << iota
	accessWrite
)

func (a access) String() string {
	switch {
	case a&accessWrite != 0 && a&accessRead != 0:
		return "read-write"
	case a&accessWrite != 0:
		return "write"
	default:
		return "read"
	}
}

// node is one scheduled unit of work and its traced access set. The access
// set is fixed once tracing completes; deps are derived from it at compile
// time.
type node struct {
	name     string
	idx      int
	body     NodeBody
	accesses map[*slot]access
	order    []*slot // access discovery order, for deterministic diagnostics
	deps     []int   // earlier nodes this node must follow, set at compile
}

type ctxMode uint8

const (
	// modeTrace intercepts var accesses and kernel launches: accesses are
	// recorded, kernels are no-ops.
	modeTrace ctxMode = iota
	// modeCapture resolves live views and freezes kernels into node
	// parameters without running them.
	modeCapture
	// modeExec resolves live views and runs kernels immediately.
	modeExec
)

// TaskContext is handed to a node body on every invocation. It is the only
// way a body may touch vars or launch device work, which is what lets the
// same closure serve tracing, capture, and execution.
type TaskContext struct {
	g    *Graph
	node *node
	mode ctxMode

	seen    map[*slot]access
	order   []*slot
	kernels []device.NodeParams
}

func newTaskContext(g *Graph, n *node, mode ctxMode) *TaskContext {
	return &TaskContext{
		g:    g,
		node: n,
		mode: mode,
		seen: make(map[*slot]access),
	}
}

func (tc *TaskContext) record(s *slot, a access) {
	if _, ok := tc.seen[s]; !ok {
		tc.order = append(tc.order, s)
	}
	tc.seen[s] |= a
}

// ParallelFor schedules count independent invocations of fn as this node's
// kernel. In trace mode it records nothing and runs nothing; at capture
// time it freezes the launch into the node's parameters; during stream
// execution it runs across the device pool before returning.
func (tc *TaskContext) ParallelFor(op string, count int, fn func(i int)) error {
	switch tc.mode {
	case modeTrace:
		return nil
	case modeCapture:
		p, err := tc.g.pf.NodeParams(op, count, fn)
		if err != nil {
			return err
		}
		tc.kernels = append(tc.kernels, p)
		return nil
	default:
		return tc.g.pf.Run(op, count, fn)
	}
}

// Run schedules a sequential device operation (a copy, a reduction, a
// diagnostic read) as part of this node. Same mode behavior as ParallelFor.
func (tc *TaskContext) Run(op string, fn func() error) error {
	switch tc.mode {
	case modeTrace:
		return nil
	case modeCapture:
		tc.kernels = append(tc.kernels, device.NodeParams{Op: op, Run: fn})
		return nil
	default:
		return fn()
	}
}

// sameAccesses reports whether a re-invocation touched exactly the traced
// var set with the same access kinds.
func sameAccesses(n *node, tc *TaskContext) bool {
	if len(tc.seen) != len(n.accesses) {
		return false
	}
	for s, a := range n.accesses {
		if tc.seen[s] != a {
			return false
		}
	}
	return true
}

// mergeKernels folds a body's captured operations into one executable node
// parameter set, preserving their in-body order.
func mergeKernels(kernels []device.NodeParams) device.NodeParams {
	switch len(kernels) {
	case 0:
		return device.NodeParams{Op: "noop", Run: func() error { return nil }}
	case 1:
		return kernels[0]
	}
	ops := make([]string, len(kernels))
	for i, k := range kernels {
		ops[i] = k.Op
	}
	frozen := append([]device.NodeParams(nil), kernels...)
	return device.NodeParams{
		Op: strings.Join(ops, "+"),
		Run: func() error {
			for _, k := range frozen {
				if err := k.Run(); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
