package grading

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound     = errors.New("grade record not found")
	ErrPeriodClosed = errors.New("score entry period is closed")
)

// PersistenceError is a storage read/write failure, along with the batch scope it happened in.
type PersistenceError struct {
	Op    string
	Scope string
	Err   error
}

func newPersistenceError(op string, scope fmt.Stringer, err error) error {
	return &PersistenceError{Op: op, Scope: scope.String(), Err: err}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Scope, e.Err)
}

func (e *PersistenceError) Cause() error  { return e.Err }
func (e *PersistenceError) Unwrap() error { return e.Err }

// StudentFailure records why the rollup of one student failed.
type StudentFailure struct {
	StudentID int64  `json:"student_id"`
	Error     string `json:"error"`
}

// BatchError reports that one or more students of a batch failed while the others went through.
type BatchError struct {
	Operation Operation
	Scope     string
	Total     int
	Failures  []StudentFailure
}

func (e *BatchError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, fmt.Sprint(f.StudentID))
	}
	return fmt.Sprintf("%s (%s): %d of %d students failed: %s",
		e.Operation, e.Scope, len(e.Failures), e.Total, strings.Join(ids, ", "))
}

// IsBatchError reports whether err (or its cause) is a *BatchError, and returns it.
func IsBatchError(err error) (*BatchError, bool) {
	var bErr *BatchError
	ok := errors.As(err, &bErr)
	return bErr, ok
}
