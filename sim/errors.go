package sim

import (
	"errors"
	"fmt"
)

// Sentinel solver failures surfaced by State implementations. Concretization reports
// ErrUnsat when no satisfying assignment exists and ErrSolverMode when the state's solver is
// configured in a mode that cannot answer the query.
var (
	ErrUnsat      = errors.New("unsatisfiable constraints")
	ErrSolverMode = errors.New("solver mode cannot answer query")
)

// EngineError describes a failure raised by the transfer engine while lifting or executing a
// block. Engine errors are recoverable: a path capturing one may be retried.
type EngineError struct {
	Addr   uint64
	Reason string
}

// Error returns the formatted engine failure description.
func (e *EngineError) Error() string {
	return fmt.Sprintf("engine failure at %#x: %s", e.Addr, e.Reason)
}

// SolverError describes a failure raised by the constraint solver backing a program state.
type SolverError struct {
	Reason string
	Cause  error
}

// Error returns the formatted solver failure description.
func (e *SolverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("solver failure: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("solver failure: %s", e.Reason)
}

// Unwrap exposes the underlying cause for errors.Is checks against the solver sentinels.
func (e *SolverError) Unwrap() error { return e.Cause }

// ValueError describes a domain error encountered while interpreting operands, such as an
// out-of-range shift amount or a zero divisor with concrete operands.
type ValueError struct {
	Reason string
}

// Error returns the formatted value error description.
func (e *ValueError) Error() string {
	return fmt.Sprintf("value error: %s", e.Reason)
}

// IsRecoverable reports whether err belongs to the narrow set of transfer failures a path may
// capture and later retry: engine failures, solver failures, and operand domain errors.
// Anything else, resource exhaustion in particular, must propagate to the caller.
func IsRecoverable(err error) bool {
	var engineErr *EngineError
	var solverErr *SolverError
	var valueErr *ValueError
	return errors.As(err, &engineErr) || errors.As(err, &solverErr) || errors.As(err, &valueErr) ||
		errors.Is(err, ErrUnsat) || errors.Is(err, ErrSolverMode)
}
