// Package hclspec holds the HCL decoding schema for pipeline files. It is
// deliberately dumb: structure only, no evaluation. The loader translates
// these into the format-agnostic pipeline model.
package hclspec

import "github.com/hashicorp/hcl/v2"

// File represents the top-level structure of one pipeline file.
type File struct {
	Buffers []*Buffer `hcl:"buffer,block"`
	Scalars []*Scalar `hcl:"scalar,block"`
	Nodes   []*Node   `hcl:"node,block"`
}

// Buffer represents a `buffer "name" { size = N }` block.
type Buffer struct {
	Name string `hcl:"name,label"`
	Size int    `hcl:"size"`
}

// Scalar represents a `scalar "name" { value = X }` block.
type Scalar struct {
	Name  string  `hcl:"name,label"`
	Value float64 `hcl:"value"`
}

// Node represents a `node "name" "op" { ... }` block. Op arguments stay an
// undecoded body; each op decodes its own argument set.
type Node struct {
	Name string   `hcl:"name,label"`
	Op   string   `hcl:"op,label"`
	Body hcl.Body `hcl:",remain"`
}
