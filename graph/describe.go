package graph

import (
	"fmt"
	"strings"
)

// Describe returns a human-readable dump of the graph: every node, the vars
// it touches with their access kinds, and the derived dependency edges.
// It reads nothing but construction state and never affects execution.
func (g *Graph) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "graph %q (%s, %d vars, %d nodes)\n", g.name, g.state, len(g.slotOrder), len(g.nodes))
	deps := g.edges()
	for i, n := range g.nodes {
		fmt.Fprintf(&b, "  node %q\n", n.name)
		for _, s := range n.order {
			fmt.Fprintf(&b, "    %s %s %q (%s)\n", n.accesses[s], s.kind(), s.name, s.elem)
		}
		for _, d := range deps[i] {
			fmt.Fprintf(&b, "    after %q\n", g.nodes[d].name)
		}
	}
	return b.String()
}

// DOT returns the dependency graph in Graphviz dot format for
// visualization. Edges follow the derived writes-before-reads ordering.
func (g *Graph) DOT() string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", g.name)
	b.WriteString("  rankdir=LR;\n")
	for _, n := range g.nodes {
		fmt.Fprintf(&b, "  %q;\n", n.name)
	}
	deps := g.edges()
	for i, n := range g.nodes {
		for _, d := range deps[i] {
			fmt.Fprintf(&b, "  %q -> %q;\n", g.nodes[d].name, n.name)
		}
	}
	b.WriteString("}\n")
	return b.String()
}
