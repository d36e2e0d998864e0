// Package buffer provides device-resident storage for the simulated
// accelerator: growable typed arrays with explicit resize policies, single
// device scalars, and the bounds-checked views kernels use to touch them.
//
// All data movement is asynchronous on the owning stream; host-visible
// effects require an explicit Wait. Buffers own only their internal
// storage — binding a buffer to a graph var never transfers ownership.
package buffer

import "fmt"

// View is a mutable, bounds-checked window over a buffer's logical range.
// Views are cheap values intended to be captured by kernel closures; they
// alias the buffer's storage as it was when the view was taken, so a view
// taken before a reallocating resize goes stale and must be re-taken
// (a graph update does exactly that).
type View[T any] struct {
	name string
	data []T
}

// Len returns the number of accessible elements.
func (v View[T]) Len() int { return len(v.data) }

// Get returns element i. Out-of-range access panics with the buffer name,
// the device-side analogue of a kernel assert; the worker pool converts the
// panic into an execution error.
func (v View[T]) Get(i int) T {
	v.check(i)
	return v.data[i]
}

// Set stores x at element i.
func (v View[T]) Set(i int, x T) {
	v.check(i)
	v.data[i] = x
}

func (v View[T]) check(i int) {
	if i < 0 || i >= len(v.data) {
		panic(fmt.Sprintf("viewer %q: index %d out of range [0,%d)", v.name, i, len(v.data)))
	}
}

// Const returns the read-only form of the view.
func (v View[T]) Const() CView[T] {
	return CView[T]{name: v.name, data: v.data}
}

// CView is the read-only counterpart of View.
type CView[T any] struct {
	name string
	data []T
}

// Len returns the number of accessible elements.
func (v CView[T]) Len() int { return len(v.data) }

// Get returns element i, panicking on out-of-range access.
func (v CView[T]) Get(i int) T {
	if i < 0 || i >= len(v.data) {
		panic(fmt.Sprintf("viewer %q: index %d out of range [0,%d)", v.name, i, len(v.data)))
	}
	return v.data[i]
}

// ScalarView is a mutable window over a single device value.
type ScalarView[T any] struct {
	data []T // always length 1
}

// Get returns the value.
func (v ScalarView[T]) Get() T { return v.data[0] }

// Set stores the value.
func (v ScalarView[T]) Set(x T) { v.data[0] = x }

// Const returns the read-only form of the view.
func (v ScalarView[T]) Const() CScalarView[T] { return CScalarView[T]{data: v.data} }

// DetachedScalarView returns a scalar view backed by throwaway storage.
// Dependency tracing hands these to node bodies so a body that reads a
// placeholder value at trace time sees a zero instead of faulting.
func DetachedScalarView[T any]() ScalarView[T] {
	return ScalarView[T]{data: make([]T, 1)}
}

// CScalarView is the read-only counterpart of ScalarView.
type CScalarView[T any] struct {
	data []T
}

// Get returns the value.
func (v CScalarView[T]) Get() T { return v.data[0] }
