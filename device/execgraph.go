package device

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// NodeParams is the frozen, executable form of one graph node: an operation
// name for diagnostics and a closure whose captured state (buffer views,
// counts) was fixed at capture time. Updating a node means replacing its
// NodeParams wholesale.
type NodeParams struct {
	Op  string
	Run func() error
}

// CapturedNode is one entry of a captured node list: its name, its frozen
// parameters, and the indices of the earlier nodes it depends on.
type CapturedNode struct {
	Name   string
	Params NodeParams
	Deps   []int
}

// ExecGraph is an immutable captured node DAG. Instantiate it to obtain a
// launchable executable.
type ExecGraph struct {
	nodes []CapturedNode
}

// Capture validates and freezes a node list into an execution graph.
// Dependencies must point at earlier entries, which makes cycles
// unrepresentable by construction.
func Capture(nodes []CapturedNode) (*ExecGraph, error) {
	for i, n := range nodes {
		if n.Params.Run == nil {
			return nil, fmt.Errorf("capture: node %q has no operation: %w", n.Name, ErrInvalidArgument)
		}
		for _, d := range n.Deps {
			if d < 0 || d >= i {
				return nil, fmt.Errorf("capture: node %q dependency %d is not an earlier node: %w", n.Name, d, ErrInvalidArgument)
			}
		}
	}
	frozen := make([]CapturedNode, len(nodes))
	for i, n := range nodes {
		frozen[i] = CapturedNode{
			Name:   n.Name,
			Params: n.Params,
			Deps:   append([]int(nil), n.Deps...),
		}
	}
	return &ExecGraph{nodes: frozen}, nil
}

// Len returns the number of captured nodes.
func (g *ExecGraph) Len() int { return len(g.nodes) }

// ExecInstance is a launchable instantiation of an ExecGraph. Its node
// parameters can be patched in place between launches, which is an order of
// magnitude cheaper than re-capturing the graph.
//
// An instance must not be launched again while a previous launch is still
// in flight on the same stream; the stream's FIFO ordering already
// guarantees that for single-stream use.
type ExecInstance struct {
	nodes      []CapturedNode
	dependents [][]int
	baseDeps   []int32
	lanes      int
}

// Instantiate builds an executable from the captured graph. lanes bounds
// how many independent nodes may run concurrently; 0 or less means one lane
// per node.
func (g *ExecGraph) Instantiate(lanes int) *ExecInstance {
	n := len(g.nodes)
	if lanes <= 0 || lanes > n {
		lanes = n
	}
	inst := &ExecInstance{
		nodes:      make([]CapturedNode, n),
		dependents: make([][]int, n),
		baseDeps:   make([]int32, n),
		lanes:      lanes,
	}
	copy(inst.nodes, g.nodes)
	for i, node := range g.nodes {
		inst.baseDeps[i] = int32(len(node.Deps))
		for _, d := range node.Deps {
			inst.dependents[d] = append(inst.dependents[d], i)
		}
	}
	return inst
}

// UpdateNodeParams replaces the parameters of node i. The dependency
// structure is fixed at capture time and cannot be changed here.
func (e *ExecInstance) UpdateNodeParams(i int, p NodeParams) error {
	if i < 0 || i >= len(e.nodes) {
		return fmt.Errorf("update node params: index %d out of range [0,%d): %w", i, len(e.nodes), ErrInvalidArgument)
	}
	if p.Run == nil {
		return fmt.Errorf("update node params: node %q has no operation: %w", e.nodes[i].Name, ErrInvalidArgument)
	}
	e.nodes[i].Params = p
	return nil
}

// Launch submits the whole instance as a single stream task and returns
// immediately. Inside that task the node DAG executes with up to lanes
// nodes in flight at once; nodes connected by an edge observe
// writes-before-reads ordering, unconnected nodes may overlap freely.
// The first node failure aborts the remaining nodes and surfaces at the
// stream's next Wait.
func (e *ExecInstance) Launch(s *Stream) {
	s.Submit("graph-launch", e.run)
}

// run executes the DAG: each node carries an atomic count of unfinished
// dependencies; nodes whose count reaches zero are handed to one of the
// lane workers. After a failure the remaining nodes are skipped but still
// flow through the counters so the launch terminates cleanly.
func (e *ExecInstance) run() error {
	n := len(e.nodes)
	if n == 0 {
		return nil
	}

	depCount := make([]atomic.Int32, n)
	for i := range depCount {
		depCount[i].Store(e.baseDeps[i])
	}

	ready := make(chan int, n)
	for i := 0; i < n; i++ {
		if e.baseDeps[i] == 0 {
			ready <- i
		}
	}

	var (
		wg       sync.WaitGroup
		aborted  atomic.Bool
		errOnce  sync.Once
		firstErr error
	)
	wg.Add(n)

	worker := func() {
		for idx := range ready {
			if !aborted.Load() {
				node := &e.nodes[idx]
				if err := e.runNode(node); err != nil {
					errOnce.Do(func() {
						firstErr = &ExecError{Node: node.Name, Op: node.Params.Op, Err: err}
					})
					aborted.Store(true)
				}
			}
			for _, dep := range e.dependents[idx] {
				if depCount[dep].Add(-1) == 0 {
					ready <- dep
				}
			}
			wg.Done()
		}
	}
	for i := 0; i < e.lanes; i++ {
		go worker()
	}

	wg.Wait()
	close(ready)
	return firstErr
}

func (e *ExecInstance) runNode(node *CapturedNode) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return node.Params.Run()
}
