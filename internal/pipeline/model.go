// Package pipeline defines the format-agnostic model of a pipeline file:
// the buffers and scalars to allocate, and the ops to register as graph
// nodes. The HCL loader produces this model; the op registry consumes it.
package pipeline

import "github.com/zclconf/go-cty/cty"

// Model is a fully loaded pipeline definition.
type Model struct {
	Buffers []*Buffer
	Scalars []*Scalar
	Nodes   []*Node
}

// Buffer declares a growable device buffer of float64 elements.
type Buffer struct {
	Name string
	Size int
}

// Scalar declares a single device value.
type Scalar struct {
	Name  string
	Value float64
}

// Node declares one graph node: a named instance of a registered op with
// already-evaluated arguments.
type Node struct {
	Name string
	Op   string
	Args map[string]cty.Value
}
