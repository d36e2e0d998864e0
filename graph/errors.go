package graph

import "errors"

// Sentinel errors for construction-time and binding-time failures. All are
// reported synchronously at the offending call and wrapped with context;
// match them with errors.Is.
var (
	// ErrNameConflict is returned when a var or node is declared with a
	// name already registered on the graph.
	ErrNameConflict = errors.New("graph: name conflict")

	// ErrTypeMismatch is returned when a binding's element type or kind
	// disagrees with the var's declaration.
	ErrTypeMismatch = errors.New("graph: type mismatch")

	// ErrUnboundVariable is returned at launch or update time when a node
	// evaluates a var that has no current binding.
	ErrUnboundVariable = errors.New("graph: unbound variable")

	// ErrStructureChanged is returned when re-running a node body touches a
	// different set of vars than the traced one. The graph never silently
	// recompiles: structure changes are a contract violation and always
	// hard-fail.
	ErrStructureChanged = errors.New("graph: node structure changed")
)
