package graph

import (
	"errors"
	"fmt"
)

// ErrExecution marks every failure reported by a graph backend.
var ErrExecution = errors.New("graph execution failed")

// ExecError wraps a backend error with the primitive operation that failed.
// errors.Is(err, ErrExecution) holds for every ExecError.
type ExecError struct {
	Op  string
	Err error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("graph: %s: %v", e.Op, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

func (e *ExecError) Is(target error) bool { return target == ErrExecution }

// Exec wraps err as an ExecError for op. A nil err returns nil, and an error
// that already is an ExecError is returned unchanged.
func Exec(op string, err error) error {
	if err == nil {
		return nil
	}
	var ee *ExecError
	if errors.As(err, &ee) {
		return err
	}
	return &ExecError{Op: op, Err: err}
}
