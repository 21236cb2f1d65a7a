package path

import (
	"fmt"

	"github.com/benbjohnson/immutable"
	"github.com/pkg/errors"

	"github.com/kestrelsec/kestrel/sim"
)

// CallFrame is a snapshot of one call stack entry: the function entered, the caller's stack
// pointer at entry, and the return address. Address fields are nil when the underlying value was
// symbolic and could not be resolved to a single integer.
//
// Each frame carries a per-block visit counter for the blocks executed while the frame was on
// top of the stack. The counter map is immutable, so copying a frame never copies counter
// storage.
type CallFrame struct {
	// FuncAddr is the entry address of the function this frame belongs to.
	FuncAddr *uint64

	// StackPtr is the stack pointer value at function entry.
	StackPtr *uint64

	// RetAddr is the address control returns to when the frame is popped.
	RetAddr *uint64

	// Jumpkind is the transfer that created this frame.
	Jumpkind sim.Jumpkind

	// visits counts executed block addresses while this frame was the top frame.
	visits *immutable.SortedMap
}

// NewCallFrame creates a frame from explicit values. A nil address marks an unresolvable value.
func NewCallFrame(funcAddr, stackPtr, retAddr *uint64, jumpkind sim.Jumpkind) *CallFrame {
	return &CallFrame{
		FuncAddr: funcAddr,
		StackPtr: stackPtr,
		RetAddr:  retAddr,
		Jumpkind: jumpkind,
		visits:   immutable.NewSortedMap(&uint64Comparer{}),
	}
}

// sentinelFrame returns the all-zero frame pushed when a return would empty the stack.
func sentinelFrame() *CallFrame {
	zero := uint64(0)
	return NewCallFrame(&zero, &zero, &zero, sim.JumpBoring)
}

// frameFromState builds the frame for a call-type transfer into the given state. The function
// address and stack pointer are concretized from the state; the return address is read from the
// memory word at the stack pointer for stack-based conventions, or from the link register
// otherwise. Values the solver cannot pin to one integer are stored as nil.
func frameFromState(s sim.State) (*CallFrame, error) {
	arch := s.Arch()

	funcAddr, err := concretizeOpt(s, s.IP())
	if err != nil {
		return nil, err
	}

	spExpr, err := s.RegisterRead(arch.StackPointer)
	if err != nil {
		return nil, errors.Wrap(err, "reading stack pointer")
	}
	stackPtr, err := concretizeOpt(s, spExpr)
	if err != nil {
		return nil, err
	}

	var retExpr sim.Expr
	if arch.CallPushesRet {
		retExpr, err = s.MemLoad(spExpr, arch.Bits/8, arch.MemoryEndness, false)
		if err != nil {
			return nil, errors.Wrap(err, "reading return address from stack")
		}
	} else {
		retExpr, err = s.RegisterRead(arch.LinkRegister)
		if err != nil {
			return nil, errors.Wrap(err, "reading link register")
		}
	}
	retAddr, err := concretizeOpt(s, retExpr)
	if err != nil {
		return nil, err
	}

	return NewCallFrame(funcAddr, stackPtr, retAddr, s.Jumpkind()), nil
}

// concretizeOpt resolves an expression to a single integer, mapping solver-side resolution
// failures to an absent value. Any other failure propagates.
func concretizeOpt(s sim.State, e sim.Expr) (*uint64, error) {
	v, err := s.Concretize(e)
	if err != nil {
		if sim.IsRecoverable(err) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

// RecordVisit increments the visit count for a block address executed under this frame.
func (f *CallFrame) RecordVisit(addr uint64) {
	count := 0
	if v, ok := f.visits.Get(addr); ok {
		count = v.(int)
	}
	f.visits = f.visits.Set(addr, count+1)
}

// VisitCount returns how many times the given block address was executed under this frame.
func (f *CallFrame) VisitCount(addr uint64) int {
	if v, ok := f.visits.Get(addr); ok {
		return v.(int)
	}
	return 0
}

// MaxVisit returns the block address with the highest visit count under this frame. Returns
// false when no block has been visited yet.
func (f *CallFrame) MaxVisit() (addr uint64, count int, ok bool) {
	itr := f.visits.Iterator()
	for !itr.Done() {
		k, v := itr.Next()
		if v.(int) > count {
			addr, count = k.(uint64), v.(int)
		}
	}
	return addr, count, count > 0
}

// Copy returns an independent frame. Counter storage is shared structurally and copies on write.
func (f *CallFrame) Copy() *CallFrame {
	clone := *f
	return &clone
}

// String renders the frame for backtrace output.
func (f *CallFrame) String() string {
	return fmt.Sprintf("func %s, sp=%s, ret=%s", fmtOptAddr(f.FuncAddr), fmtOptAddr(f.StackPtr), fmtOptAddr(f.RetAddr))
}

// fmtOptAddr renders an optional address for display.
func fmtOptAddr(a *uint64) string {
	if a == nil {
		return "<symbolic>"
	}
	return fmt.Sprintf("%#x", *a)
}

// optAddrEqual compares two optional addresses; two absent values compare equal.
func optAddrEqual(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// uint64Comparer compares two 64-bit unsigned integers. Implements immutable.Comparer.
type uint64Comparer struct{}

// Compare returns -1 if a is less than b, 1 if a is greater than b, and 0 if equal. Panics if a
// or b is not a uint64.
func (c *uint64Comparer) Compare(a, b interface{}) int {
	if i, j := a.(uint64), b.(uint64); i < j {
		return -1
	} else if i > j {
		return 1
	}
	return 0
}
