// Package coreerr defines the error taxonomy shared by the coordinator,
// the mutation API, and the storage layer.
package coreerr

import "errors"

// Sentinel errors surfaced as request failures. Cycle and ExecutionError
// are deliberately absent here: they are cell-state outcomes, not request
// failures (see CycleError below and the coordinator's execute_result
// handling).
var (
	ErrNotFound     = errors.New("resource not found")
	ErrForbidden    = errors.New("caller does not own this resource")
	ErrConflict     = errors.New("revision conflict")
	ErrTimeout      = errors.New("kernel round-trip timed out")
	ErrKernelDied   = errors.New("kernel process died")
	ErrShuttingDown = errors.New("coordinator is shutting down")
	ErrInvalidInput = errors.New("invalid input")
)

// CycleError reports that committing a cell's code would introduce a
// dependency cycle. It is not a request failure: the caller's mutation
// still succeeds and the cell is committed in the blocked state.
type CycleError struct {
	CellID string
	Cycle  []string
}

func (e *CycleError) Error() string {
	msg := "cell " + e.CellID + " would introduce a dependency cycle"
	if len(e.Cycle) > 0 {
		msg += ": "
		for i, id := range e.Cycle {
			if i > 0 {
				msg += " -> "
			}
			msg += id
		}
	}
	return msg
}

// ConflictError carries the current revision so callers can retry with an
// up-to-date expected_revision.
type ConflictError struct {
	NotebookID string
	Expected   int
	Current    int
}

func (e *ConflictError) Error() string {
	return "revision conflict on notebook " + e.NotebookID
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// ExecutionError wraps a user-code failure captured by the Kernel. It is
// never returned from a Coordinator operation; it is attached to the cell
// and broadcast as cell_error, propagation policy.
type ExecutionError struct {
	CellID  string
	Message string
}

func (e *ExecutionError) Error() string {
	return "cell " + e.CellID + " execution failed: " + e.Message
}
