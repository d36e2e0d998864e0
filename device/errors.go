package device

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned for malformed requests that can be rejected
// synchronously at the offending call: negative sizes, bad kernel ranges,
// resize-policy misuse, and similar.
var ErrInvalidArgument = errors.New("device: invalid argument")

// ExecError reports a failure inside asynchronously executed device work.
// It carries the node and operation names so a failure deep inside a
// captured graph can be traced back to its origin. Execution errors are
// never swallowed: they are returned from the Wait call that follows the
// failed submission.
type ExecError struct {
	Node string // graph node or stream task that failed, if any
	Op   string // the operation within the node, e.g. a kernel name
	Err  error
}

// Error implements the error interface.
func (e *ExecError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("device: op %q failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("device: node %q op %q failed: %v", e.Node, e.Op, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *ExecError) Unwrap() error { return e.Err }
