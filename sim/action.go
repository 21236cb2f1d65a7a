package sim

import "fmt"

// Event is anything a program state records while executing one block: memory and register
// accesses, constraint additions, exit decisions. Only accesses are modeled structurally; other
// event kinds pass through as opaque records.
type Event interface {
	// EventBlockAddr returns the address of the block the event was recorded in.
	EventBlockAddr() uint64
}

// ActionLoc identifies the storage class an access touched.
type ActionLoc string

const (
	// LocRegister indicates a register access. The action address is the register file offset.
	LocRegister ActionLoc = "reg"

	// LocMemory indicates a memory access. The action address is the memory address.
	LocMemory ActionLoc = "mem"
)

// ActionOp identifies the direction of an access.
type ActionOp string

const (
	OpRead  ActionOp = "read"
	OpWrite ActionOp = "write"
)

// Action records a single memory or register access performed during a step. Actions are the
// subset of events that diagnostic filtering operates on.
type Action struct {
	// Loc is the storage class accessed.
	Loc ActionLoc

	// Op is the access direction.
	Op ActionOp

	// Addr is the accessed location: a register file offset for register accesses, a memory
	// address for memory accesses. It may be symbolic.
	Addr Expr

	// Data is the value read or written, if recorded.
	Data Expr

	// BlockAddr is the address of the block the access originated in.
	BlockAddr uint64

	// StmtIdx is the index of the originating statement within the lifted block, or -1 when the
	// access came from a procedure summary rather than lifted code.
	StmtIdx int

	// FromProcedure indicates the access was performed by a procedure summary.
	FromProcedure bool
}

// EventBlockAddr returns the address of the block the access was recorded in.
func (a *Action) EventBlockAddr() uint64 { return a.BlockAddr }

// String summarizes the access for logs.
func (a *Action) String() string {
	return fmt.Sprintf("<%s %s at %s (block %#x stmt %d)>", a.Loc, a.Op, a.Addr, a.BlockAddr, a.StmtIdx)
}
