package box

import (
	"errors"
	"fmt"
)

var (
	ErrNilProject          = errors.New("box: nil project")
	ErrNilFeature          = errors.New("box: case must belong to a feature")
	ErrNilCase             = errors.New("box: nil case")
	ErrNilFunc             = errors.New("box: nil callable")
	ErrAlreadyRegistered   = errors.New("box: already registered")
	ErrForeignFeature      = errors.New("box: feature belongs to another project")
	ErrForeignCase         = errors.New("box: case belongs to another feature")
	ErrDuplicateStep       = errors.New("box: duplicate step name")
	ErrDuplicateCaseNumber = errors.New("box: duplicate case number")
	ErrMissingCaseInfo     = errors.New("box: case number and title are required")
	ErrFrozen              = errors.New("box: configuration is frozen once a run has started")
	ErrRunInProgress       = errors.New("box: run already in progress")
	ErrAlreadyRun          = errors.New("box: already executed, reset first")
)

// FaultError records a callable that returned an error or panicked.
type FaultError struct {
	Node  string // case number or "case/step" path
	Err   error  // returned error, nil when the callable panicked
	Panic any    // recovered panic value
	Stack []byte // stack captured at recovery
}

func (e *FaultError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: panic: %v", e.Node, e.Panic)
	}
	return fmt.Sprintf("%s: %v", e.Node, e.Err)
}

func (e *FaultError) Unwrap() error { return e.Err }

// Panicked reports whether the fault came from a recovered panic.
func (e *FaultError) Panicked() bool { return e.Err == nil }
