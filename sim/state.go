package sim

// Endness identifies a byte order for memory accesses.
type Endness uint8

const (
	LittleEndian Endness = iota
	BigEndian
)

// Arch describes the fixed architectural facts a path needs to maintain its call stack. The
// program-metadata provider supplies one per loaded binary; states carry a reference to it.
type Arch struct {
	// Bits is the width of a machine word in bits.
	Bits uint

	// MemoryEndness is the byte order of memory loads.
	MemoryEndness Endness

	// CallPushesRet indicates the calling convention pushes the return address on the stack.
	// When false, the return address is read from LinkRegister instead.
	CallPushesRet bool

	// StackPointer is the name of the stack pointer register.
	StackPointer string

	// LinkRegister is the name of the link register, for architectures where CallPushesRet is
	// false. Empty otherwise.
	LinkRegister string
}

// State is the program-state provider contract: one point in a program's execution, owning the
// concrete and symbolic values of its registers and memory. A State is exclusively owned by at
// most one path; Copy produces an independent state sharing nothing mutable.
//
// All solver-backed operations are potentially long-latency and block until the solver answers.
// Aborting a long solve is the solver configuration's concern, not this interface's.
type State interface {
	// IP returns the instruction pointer expression. It may be symbolic.
	IP() Expr

	// SetIP overwrites the instruction pointer with a concrete address.
	SetIP(addr uint64) error

	// RegisterRead returns the current expression held by the named register.
	RegisterRead(name string) (Expr, error)

	// MemLoad reads size bytes at addr with the given byte order. When inspect is false the
	// access must not be recorded as an event.
	MemLoad(addr Expr, size uint, endness Endness, inspect bool) (Expr, error)

	// Concretize resolves an expression to a single concrete integer, consulting the solver if
	// needed. It fails with ErrUnsat or ErrSolverMode (possibly wrapped in a SolverError) when
	// no single value can be produced.
	Concretize(e Expr) (uint64, error)

	// Satisfiable reports whether the state's constraints admit any solution.
	Satisfiable() (bool, error)

	// AddConstraint conjoins a boolean expression onto the state's constraint set.
	AddConstraint(c Expr) error

	// Simplify rewrites the state's constraints into a simpler equivalent form.
	Simplify()

	// Copy returns a deep copy of the state.
	Copy() State

	// Merge combines the state with others at the same instruction pointer. It returns the
	// combined state, a fresh boolean selector expression distinguishing the inputs by position,
	// and opaque auxiliary merge data.
	Merge(others ...State) (State, Expr, any, error)

	// Jumpkind returns the classification of the transfer that produced this state.
	Jumpkind() Jumpkind

	// BlockAddr returns the visited-block tag for the current step: the address of the block the
	// state is positioned at. For flat successors this equals the concretized instruction pointer.
	BlockAddr() uint64

	// Guard returns the symbolic condition under which the transfer producing this state was
	// taken, or nil for unconditional transfers.
	Guard() Expr

	// GuardAvoidable indicates the guard was not already forced by prior constraints, meaning
	// the branch could have gone the other way.
	GuardAvoidable() bool

	// JumpSource returns the address of the instruction that performed the transfer.
	JumpSource() uint64

	// Events returns the events recorded during the last step, oldest first.
	Events() []Event

	// Arch returns the architectural description for the state.
	Arch() *Arch
}
