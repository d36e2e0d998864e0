package device

import "fmt"

// defaultGrain is the per-chunk index count used when the caller does not
// pick one. Small enough to balance uneven kernels, large enough that the
// per-chunk dispatch cost stays negligible.
const defaultGrain = 1024

// ParallelFor schedules count independent invocations of a per-index
// closure, chunked across the device's worker pool. It is the simulated
// equivalent of a parallel-for kernel launch: Apply is stream-ordered and
// asynchronous, Run executes synchronously (for use inside an already
// stream-ordered task), and NodeParams freezes a launch into parameters for
// execution-graph capture.
type ParallelFor struct {
	dev   *Device
	grain int
}

// NewParallelFor creates a launcher with the given chunk grain.
// A grain of 0 or less selects the default.
func (d *Device) NewParallelFor(grain int) *ParallelFor {
	if grain <= 0 {
		grain = defaultGrain
	}
	return &ParallelFor{dev: d, grain: grain}
}

// Apply submits the launch onto stream and returns without waiting.
// count must not be negative; a zero count is a valid empty launch.
func (p *ParallelFor) Apply(s *Stream, op string, count int, fn func(i int)) error {
	if err := checkRange(op, count); err != nil {
		return err
	}
	s.Submit(op, func() error {
		if err := p.dev.pool.forEach(count, p.grain, fn); err != nil {
			return &ExecError{Op: op, Err: err}
		}
		return nil
	})
	return nil
}

// Run executes the launch synchronously on the calling goroutine, blocking
// until every index has been processed. It is meant for node bodies that
// are already executing inside a stream task or a captured graph node.
func (p *ParallelFor) Run(op string, count int, fn func(i int)) error {
	if err := checkRange(op, count); err != nil {
		return err
	}
	if err := p.dev.pool.forEach(count, p.grain, fn); err != nil {
		return &ExecError{Op: op, Err: err}
	}
	return nil
}

// NodeParams freezes the launch into execution-graph node parameters.
// The index count and closure are fixed at this point; re-freezing is the
// only way to change them, which is exactly what a graph update does.
func (p *ParallelFor) NodeParams(op string, count int, fn func(i int)) (NodeParams, error) {
	if err := checkRange(op, count); err != nil {
		return NodeParams{}, err
	}
	return NodeParams{
		Op: op,
		Run: func() error {
			return p.dev.pool.forEach(count, p.grain, fn)
		},
	}, nil
}

func checkRange(op string, count int) error {
	if count < 0 {
		return fmt.Errorf("parallel for %q: count %d: %w", op, count, ErrInvalidArgument)
	}
	return nil
}
