package graph

import (
	"fmt"
	"reflect"

	"github.com/vk/slipstream/buffer"
)

// Binding is anything that can back a var: a growable buffer or a device
// scalar. The graph never owns a binding; the caller keeps it alive until
// the next rebinding or graph destruction.
type Binding interface {
	ElemType() reflect.Type
}

// slot is the type-erased storage for one declared var. The typed handles
// (BufferVar, ScalarVar) are thin views over a slot; rebinding never
// invalidates them.
type slot struct {
	name     string
	elem     reflect.Type
	bindType reflect.Type // concrete binding type, e.g. *buffer.Growable[float64]
	scalar   bool
	binding  Binding // nil until bound
	dirty    bool    // rebound since last compile/update
}

func (s *slot) kind() string {
	if s.scalar {
		return "scalar"
	}
	return "buffer"
}

// BufferVar is a named, typed slot bound to a growable device buffer.
// Declared once per graph; rebindable any number of times.
type BufferVar[T any] struct {
	g *Graph
	s *slot
}

// DeclareBuffer registers a buffer-backed var on the graph. The element
// type is fixed forever; only the bound buffer may change later.
func DeclareBuffer[T any](g *Graph, name string) (*BufferVar[T], error) {
	s, err := g.declare(name, reflect.TypeOf((*T)(nil)).Elem(), reflect.TypeOf((**buffer.Growable[T])(nil)).Elem(), false)
	if err != nil {
		return nil, err
	}
	return &BufferVar[T]{g: g, s: s}, nil
}

// Name returns the var's name.
func (v *BufferVar[T]) Name() string { return v.s.name }

// Bind attaches b as the var's current backing buffer and marks the var
// dirty. Bind(nil) removes the binding. Binding does not re-derive the
// dependency graph; after a launch, call Update to patch the compiled
// graph.
func (v *BufferVar[T]) Bind(b *buffer.Growable[T]) {
	if b == nil {
		v.s.binding = nil
	} else {
		v.s.binding = b
	}
	v.s.dirty = true
}

// Eval returns a write-capable view of the bound buffer and establishes a
// write dependency on the var. During tracing it records the access and
// returns a detached view.
func (v *BufferVar[T]) Eval(tc *TaskContext) buffer.View[T] {
	tc.record(v.s, accessWrite)
	if tc.mode == modeTrace {
		return buffer.View[T]{}
	}
	return v.s.binding.(*buffer.Growable[T]).View()
}

// ConstEval returns a read-only view of the bound buffer and establishes a
// read dependency on the var.
func (v *BufferVar[T]) ConstEval(tc *TaskContext) buffer.CView[T] {
	tc.record(v.s, accessRead)
	if tc.mode == modeTrace {
		return buffer.CView[T]{}
	}
	return v.s.binding.(*buffer.Growable[T]).CView()
}

// ScalarVar is a named, typed slot bound to a single device value.
type ScalarVar[T any] struct {
	g *Graph
	s *slot
}

// DeclareScalar registers a scalar-backed var on the graph.
func DeclareScalar[T any](g *Graph, name string) (*ScalarVar[T], error) {
	s, err := g.declare(name, reflect.TypeOf((*T)(nil)).Elem(), reflect.TypeOf((**buffer.Scalar[T])(nil)).Elem(), true)
	if err != nil {
		return nil, err
	}
	return &ScalarVar[T]{g: g, s: s}, nil
}

// Name returns the var's name.
func (v *ScalarVar[T]) Name() string { return v.s.name }

// Bind attaches sc as the var's current backing scalar and marks the var
// dirty. Bind(nil) removes the binding.
func (v *ScalarVar[T]) Bind(sc *buffer.Scalar[T]) {
	if sc == nil {
		v.s.binding = nil
	} else {
		v.s.binding = sc
	}
	v.s.dirty = true
}

// Eval returns a write-capable view of the bound scalar and establishes a
// write dependency on the var.
func (v *ScalarVar[T]) Eval(tc *TaskContext) buffer.ScalarView[T] {
	tc.record(v.s, accessWrite)
	if tc.mode == modeTrace {
		return buffer.DetachedScalarView[T]()
	}
	return v.s.binding.(*buffer.Scalar[T]).View()
}

// ConstEval returns a read-only view of the bound scalar and establishes a
// read dependency on the var.
func (v *ScalarVar[T]) ConstEval(tc *TaskContext) buffer.CScalarView[T] {
	tc.record(v.s, accessRead)
	if tc.mode == modeTrace {
		return buffer.DetachedScalarView[T]().Const()
	}
	return v.s.binding.(*buffer.Scalar[T]).CView()
}

// LookupBuffer resolves a previously declared buffer var by name. It fails
// with ErrTypeMismatch when the var was declared with a different element
// type or as a scalar.
func LookupBuffer[T any](g *Graph, name string) (*BufferVar[T], error) {
	s, ok := g.slots[name]
	if !ok {
		return nil, fmt.Errorf("graph %q: no var named %q", g.name, name)
	}
	want := reflect.TypeOf((**buffer.Growable[T])(nil)).Elem()
	if s.bindType != want {
		return nil, fmt.Errorf("graph %q: var %q is a %s of %s, not a buffer of %s: %w",
			g.name, name, s.kind(), s.elem, reflect.TypeOf((*T)(nil)).Elem(), ErrTypeMismatch)
	}
	return &BufferVar[T]{g: g, s: s}, nil
}

// LookupScalar resolves a previously declared scalar var by name.
func LookupScalar[T any](g *Graph, name string) (*ScalarVar[T], error) {
	s, ok := g.slots[name]
	if !ok {
		return nil, fmt.Errorf("graph %q: no var named %q", g.name, name)
	}
	want := reflect.TypeOf((**buffer.Scalar[T])(nil)).Elem()
	if s.bindType != want {
		return nil, fmt.Errorf("graph %q: var %q is a %s of %s, not a scalar of %s: %w",
			g.name, name, s.kind(), s.elem, reflect.TypeOf((*T)(nil)).Elem(), ErrTypeMismatch)
	}
	return &ScalarVar[T]{g: g, s: s}, nil
}

// BindNamed attaches a binding to a declared var dynamically, checking kind
// and element type at runtime. It is the type-erased counterpart of the
// typed Bind methods, used when bindings come from configuration rather
// than code.
func (g *Graph) BindNamed(name string, b Binding) error {
	s, ok := g.slots[name]
	if !ok {
		return fmt.Errorf("graph %q: no var named %q", g.name, name)
	}
	if b == nil {
		s.binding = nil
		s.dirty = true
		return nil
	}
	if reflect.TypeOf(b) != s.bindType {
		return fmt.Errorf("graph %q: cannot bind %T to %s var %q of %s: %w",
			g.name, b, s.kind(), name, s.elem, ErrTypeMismatch)
	}
	s.binding = b
	s.dirty = true
	return nil
}
