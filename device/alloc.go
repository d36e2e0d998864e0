package device

import (
	"fmt"
	"sync/atomic"
)

// Allocator tracks device memory accounting. The simulated device backs
// allocations with host slices, so the allocator only keeps the books:
// live bytes, peak bytes, and allocation counts. Buffers call Grab when
// they reserve storage and Release when they drop it; the two must balance
// over a buffer's lifetime.
type Allocator struct {
	live   atomic.Int64
	peak   atomic.Int64
	allocs atomic.Int64
	frees  atomic.Int64
}

// Grab records an allocation of the given number of bytes.
func (a *Allocator) Grab(bytes int64) {
	if bytes < 0 {
		panic(fmt.Sprintf("allocator: negative allocation of %d bytes", bytes))
	}
	a.allocs.Add(1)
	live := a.live.Add(bytes)
	for {
		peak := a.peak.Load()
		if live <= peak || a.peak.CompareAndSwap(peak, live) {
			return
		}
	}
}

// Release records the return of the given number of bytes.
func (a *Allocator) Release(bytes int64) {
	a.frees.Add(1)
	if live := a.live.Add(-bytes); live < 0 {
		panic(fmt.Sprintf("allocator: released more bytes than allocated (live=%d)", live))
	}
}

// LiveBytes returns the number of bytes currently allocated.
func (a *Allocator) LiveBytes() int64 { return a.live.Load() }

// PeakBytes returns the high-water mark of live allocation.
func (a *Allocator) PeakBytes() int64 { return a.peak.Load() }

// Allocs returns the total number of allocations recorded.
func (a *Allocator) Allocs() int64 { return a.allocs.Load() }

// Frees returns the total number of releases recorded.
func (a *Allocator) Frees() int64 { return a.frees.Load() }
