// Package device simulates a host-resident accelerator: stream-ordered
// asynchronous execution, tracked allocations, a parallel-map kernel
// primitive, and a capturable, re-launchable execution graph.
//
// Device memory is ordinary host memory that callers agree to touch only
// through stream-ordered operations; kernels are Go closures run across the
// device's worker pool. The simulation keeps the CUDA-like contract intact:
// submission is non-blocking, effects become host-visible only after an
// explicit Wait, and execution errors surface at the next synchronization
// point.
package device

import (
	"runtime"
	"sync"
)

// Device is the root of the simulated accelerator. It owns the worker pool
// shared by all kernel launches and the allocation accounting for every
// buffer created against it.
//
// A Device is safe for concurrent use by multiple streams.
type Device struct {
	workers int
	pool    *pool
	alloc   Allocator

	mu      sync.Mutex
	streams []*Stream
	closed  bool
}

// New creates a device with the given number of kernel workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func New(workers int) *Device {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Device{
		workers: workers,
		pool:    newPool(workers),
	}
}

// Workers returns the number of kernel workers the device runs.
func (d *Device) Workers() int { return d.workers }

// Allocator returns the device's allocation accounting.
func (d *Device) Allocator() *Allocator { return &d.alloc }

// NewStream creates an execution stream owned by this device. The stream
// starts immediately and accepts work until Close is called.
func (d *Device) NewStream(name string) *Stream {
	s := newStream(d, name)
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s
}

// Close shuts down every stream created on the device and stops the worker
// pool. Pending work is drained first. The device must not be used after
// Close returns.
func (d *Device) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	streams := d.streams
	d.streams = nil
	d.mu.Unlock()

	for _, s := range streams {
		s.Close()
	}
	d.pool.close()
}
