package buffer

import (
	"reflect"
	"unsafe"

	"github.com/vk/slipstream/device"
)

// Scalar is a single device-resident value of T: the degenerate one-element
// buffer. Writes are asynchronous on the owning stream; reads synchronize.
type Scalar[T any] struct {
	name     string
	stream   *device.Stream
	data     []T // always length 1
	elemSize int64
	freed    bool
}

// NewScalar allocates a device scalar holding value.
func NewScalar[T any](s *device.Stream, name string, value T) *Scalar[T] {
	var zero T
	sc := &Scalar[T]{
		name:     name,
		stream:   s,
		data:     []T{value},
		elemSize: int64(unsafe.Sizeof(zero)),
	}
	s.Device().Allocator().Grab(sc.elemSize)
	return sc
}

// Name returns the scalar's identifier.
func (s *Scalar[T]) Name() string { return s.name }

// Stream returns the scalar's execution stream.
func (s *Scalar[T]) Stream() *device.Stream { return s.stream }

// ElemType reports the element type; the graph uses it to check bindings.
func (s *Scalar[T]) ElemType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Set copies a host value to the device, asynchronously.
func (s *Scalar[T]) Set(v T) {
	s.stream.Submit("scalar-set", func() error {
		s.data[0] = v
		return nil
	})
}

// Get copies the device value back to the host, blocking until every
// operation submitted before it has completed.
func (s *Scalar[T]) Get() (T, error) {
	var out T
	s.stream.Submit("scalar-get", func() error {
		out = s.data[0]
		return nil
	})
	if err := s.stream.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

// View returns a mutable view of the value.
func (s *Scalar[T]) View() ScalarView[T] {
	return ScalarView[T]{data: s.data}
}

// CView returns a read-only view of the value.
func (s *Scalar[T]) CView() CScalarView[T] {
	return s.View().Const()
}

// Free releases the scalar's storage accounting.
func (s *Scalar[T]) Free() {
	if s.freed {
		return
	}
	s.freed = true
	s.stream.Device().Allocator().Release(s.elemSize)
	s.data = nil
}
