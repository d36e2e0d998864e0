package buffer

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/vk/slipstream/device"
)

// Policy governs what happens to existing data when a buffer's logical size
// changes.
type Policy int

const (
	// Set overwrites the entire new logical range with the supplied value;
	// nothing survives.
	Set Policy = iota
	// Keep preserves the overlapping prefix verbatim. When growing, the
	// newly exposed range is left uninitialized.
	Keep
	// KeepSet preserves the overlapping prefix and overwrites the newly
	// exposed range with the supplied value. Only meaningful when growing;
	// applying it while shrinking is a usage error.
	KeepSet
)

// String implements fmt.Stringer.
func (p Policy) String() string {
	switch p {
	case Set:
		return "set"
	case Keep:
		return "keep"
	case KeepSet:
		return "keep_set"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Growable is a device-resident dynamic array of T. It owns its storage
// exclusively; logical size and physical capacity are host-side bookkeeping
// updated synchronously, while all data movement (copying during
// reallocation, policy fills) happens asynchronously on the buffer's
// stream. Callers must Wait on the stream before assuming host-visible
// effects, and must not resize or free the buffer while work referencing it
// is still in flight.
type Growable[T any] struct {
	name     string
	stream   *device.Stream
	data     []T
	size     int // logical size, host bookkeeping
	capacity int // physical capacity, host bookkeeping
	elemSize int64
	freed    bool
}

// NewGrowable allocates a buffer with the given initial logical size. The
// initial contents are zero-valued.
func NewGrowable[T any](s *device.Stream, name string, size int) (*Growable[T], error) {
	if size < 0 {
		return nil, fmt.Errorf("buffer %q: negative size %d: %w", name, size, device.ErrInvalidArgument)
	}
	var zero T
	b := &Growable[T]{
		name:     name,
		stream:   s,
		data:     make([]T, size),
		size:     size,
		capacity: size,
		elemSize: int64(unsafe.Sizeof(zero)),
	}
	s.Device().Allocator().Grab(int64(size) * b.elemSize)
	return b, nil
}

// Name returns the buffer's identifier.
func (b *Growable[T]) Name() string { return b.name }

// Size returns the logical element count.
func (b *Growable[T]) Size() int { return b.size }

// Capacity returns the physical element capacity.
func (b *Growable[T]) Capacity() int { return b.capacity }

// Stream returns the buffer's execution stream.
func (b *Growable[T]) Stream() *device.Stream { return b.stream }

// ElemType reports the element type; the graph uses it to check bindings.
func (b *Growable[T]) ElemType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Resize changes the logical size to n under the given policy, with init as
// the fill value for Set and KeepSet (ignored for Keep).
//
// Growth reallocates only when n exceeds the current capacity; shrinking
// never reallocates, it just reduces the logical size and keeps the
// capacity for future growth. Policy violations (KeepSet while shrinking,
// negative n) fail fast and synchronously; the data movement itself is
// stream-ordered and asynchronous.
func (b *Growable[T]) Resize(n int, policy Policy, init T) error {
	if n < 0 {
		return fmt.Errorf("buffer %q: resize to negative size %d: %w", b.name, n, device.ErrInvalidArgument)
	}
	if policy == KeepSet && n < b.size {
		return fmt.Errorf("buffer %q: resize %d -> %d: keep_set cannot shrink: %w", b.name, b.size, n, device.ErrInvalidArgument)
	}

	oldSize := b.size
	oldCap := b.capacity
	newCap := b.capacity
	if n > b.capacity {
		// Grow geometrically so repeated small growth amortizes.
		newCap = b.capacity * 2
		if newCap < n {
			newCap = n
		}
	}
	grew := newCap != oldCap

	// Host bookkeeping is synchronous so Size and Capacity reflect the
	// request immediately; only the data movement is deferred.
	b.size = n
	b.capacity = newCap

	alloc := b.stream.Device().Allocator()
	b.stream.Submit(fmt.Sprintf("resize(%s)", policy), func() error {
		data := b.data
		if grew {
			fresh := make([]T, newCap)
			if policy != Set {
				copy(fresh, data[:min(oldSize, n)])
			}
			alloc.Grab(int64(newCap) * b.elemSize)
			alloc.Release(int64(oldCap) * b.elemSize)
			data = fresh
			b.data = fresh
		}
		switch policy {
		case Set:
			fill(data[:n], init)
		case KeepSet:
			if n > oldSize {
				fill(data[oldSize:n], init)
			}
		case Keep:
			// Overlap already in place; the exposed suffix (if any) is
			// deliberately left as-is.
		}
		return nil
	})
	return nil
}

// Fill overwrites the whole logical range with v, asynchronously.
func (b *Growable[T]) Fill(v T) {
	n := b.size
	b.stream.Submit("fill", func() error {
		fill(b.data[:n], v)
		return nil
	})
}

// CopyFrom overwrites the logical range with src, which must match the
// current size exactly. The copy is stream-ordered; src must stay untouched
// until the stream is waited on.
func (b *Growable[T]) CopyFrom(src []T) error {
	if len(src) != b.size {
		return fmt.Errorf("buffer %q: copy from %d elements into size %d: %w", b.name, len(src), b.size, device.ErrInvalidArgument)
	}
	n := b.size
	b.stream.Submit("copy-from", func() error {
		copy(b.data[:n], src)
		return nil
	})
	return nil
}

// CopyTo copies the logical range into dst, which must match the current
// size exactly. The copy is stream-ordered; dst holds the data only after
// the stream is waited on.
func (b *Growable[T]) CopyTo(dst []T) error {
	if len(dst) != b.size {
		return fmt.Errorf("buffer %q: copy %d elements into %d-element destination: %w", b.name, b.size, len(dst), device.ErrInvalidArgument)
	}
	n := b.size
	b.stream.Submit("copy-to", func() error {
		copy(dst, b.data[:n])
		return nil
	})
	return nil
}

// Read copies the logical range back to the host and blocks until the copy
// (and everything submitted before it) completes.
func (b *Growable[T]) Read() ([]T, error) {
	out := make([]T, b.size)
	n := b.size
	b.stream.Submit("read-back", func() error {
		copy(out, b.data[:n])
		return nil
	})
	if err := b.stream.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// View returns a mutable view over the current logical range. The caller
// must have synchronized the stream since the last resize; a view taken
// across an unsynchronized reallocation may alias the old storage.
func (b *Growable[T]) View() View[T] {
	return View[T]{name: b.name, data: b.data[:b.size]}
}

// CView returns a read-only view over the current logical range.
func (b *Growable[T]) CView() CView[T] {
	return b.View().Const()
}

// Free releases the buffer's storage accounting. The buffer must not be
// used afterwards, and no in-flight work may still reference it.
func (b *Growable[T]) Free() {
	if b.freed {
		return
	}
	b.freed = true
	b.stream.Device().Allocator().Release(int64(b.capacity) * b.elemSize)
	b.data = nil
	b.size = 0
	b.capacity = 0
}

func fill[T any](dst []T, v T) {
	for i := range dst {
		dst[i] = v
	}
}
