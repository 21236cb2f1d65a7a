package sim

import (
	"fmt"
	"reflect"
)

// RunConfig carries the per-step options accepted by the transfer engine. The zero value requests
// a default step from the state's current instruction pointer.
type RunConfig struct {
	// Addr overrides the address to execute at instead of the state's instruction pointer.
	Addr *uint64

	// StmtWhitelist confines execution to the given statement indexes within the block.
	StmtWhitelist []int

	// LastStmt stops execution after the given statement index.
	LastStmt *int

	// Thumb lifts the block in ARM's THUMB mode.
	Thumb bool

	// BackupState supplies a state to read instruction bytes from instead of program memory.
	BackupState State

	// OptLevel is the IR optimization level to lift with.
	OptLevel int

	// InsnBytes overrides the instruction bytes for the block.
	InsnBytes []byte

	// MaxSize bounds the size of the lifted block in bytes. Zero means the engine default.
	MaxSize int

	// NumInst bounds the number of instructions lifted. Zero means the engine default.
	NumInst int

	// TraceFlags passes lifter trace flags through to the backend.
	TraceFlags int
}

// Equal reports whether two configurations request the identical option set. Step result caching
// keys on this.
func (c *RunConfig) Equal(other *RunConfig) bool {
	if c == nil || other == nil {
		return c == other
	}
	return reflect.DeepEqual(c, other)
}

// RunResult exposes the classified successor states computed by one application of the transfer
// engine, along with the size of the lifted block.
type RunResult struct {
	// Flat holds satisfiable successors with concrete instruction pointers.
	Flat []State

	// Unconstrained holds successors whose instruction pointer remains symbolic.
	Unconstrained []State

	// Unsat holds successors proven infeasible, kept for diagnostics.
	Unsat []State

	// All holds the flat successors before deduplication.
	All []State

	// Addr is the address the block was lifted at.
	Addr uint64

	// Size is the size of the lifted block in bytes. Zero when the run was a procedure summary
	// rather than lifted code.
	Size int

	// Procedure names the procedure summary executed instead of lifted code, if any.
	Procedure string
}

// IsLifted indicates whether the run executed lifted code rather than a procedure summary.
func (r *RunResult) IsLifted() bool { return r.Procedure == "" }

// String returns the run description recorded into path histories.
func (r *RunResult) String() string {
	if !r.IsLifted() {
		return fmt.Sprintf("<Procedure %s from %#x>", r.Procedure, r.Addr)
	}
	return fmt.Sprintf("<Block %#x (%d bytes)>", r.Addr, r.Size)
}

// Engine is the transfer engine contract: apply one unit of symbolic execution to a state under a
// configuration, producing classified successors. Failures are reported as EngineError,
// SolverError, or ValueError values when they have recovery semantics; any other error is fatal.
type Engine interface {
	Run(s State, cfg *RunConfig) (*RunResult, error)
}
