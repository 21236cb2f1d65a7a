package path

import (
	"github.com/pkg/errors"

	"github.com/kestrelsec/kestrel/sim"
	"github.com/kestrelsec/kestrel/utils"
)

// ActionTarget selects a location an access must touch: any register, any memory, one named
// register, or one concrete memory address.
type ActionTarget struct {
	loc    sim.ActionLoc
	reg    string
	addr   uint64
	hasLoc bool
}

// AnyRegister matches accesses to any register.
func AnyRegister() ActionTarget {
	return ActionTarget{loc: sim.LocRegister}
}

// AnyMemory matches accesses to any memory address.
func AnyMemory() ActionTarget {
	return ActionTarget{loc: sim.LocMemory}
}

// Register matches accesses to the named register.
func Register(name string) ActionTarget {
	return ActionTarget{loc: sim.LocRegister, reg: name, hasLoc: true}
}

// MemAddr matches accesses to one concrete memory address.
func MemAddr(addr uint64) ActionTarget {
	return ActionTarget{loc: sim.LocMemory, addr: addr, hasLoc: true}
}

// ActionFilter narrows the accesses returned by FilterActions. Nil fields match everything.
type ActionFilter struct {
	// BlockAddr keeps accesses originating in the block starting at this address.
	BlockAddr *uint64

	// BlockStmt keeps accesses originating in this statement index of their block.
	BlockStmt *int

	// InsnAddr keeps accesses originating in the machine instruction at this address, resolved
	// through the program-metadata provider's block disassembly. Accesses from procedure
	// summaries never match.
	InsnAddr *uint64

	// ReadFrom keeps read accesses touching the target. Mutually exclusive with WriteTo.
	ReadFrom *ActionTarget

	// WriteTo keeps write accesses touching the target. Mutually exclusive with ReadFrom.
	WriteTo *ActionTarget
}

// FilterActions queries the recorded memory and register accesses of the most recent step,
// most recent first. Note that with IR optimization enabled, reads and writes may be folded out
// of the instruction they originally came from, so per-instruction filters can under-report.
func (p *Path) FilterActions(filter ActionFilter) ([]*sim.Action, error) {
	if filter.ReadFrom != nil && filter.WriteTo != nil {
		return nil, ErrFilterConflict
	}

	var op sim.ActionOp
	var target *ActionTarget
	if filter.ReadFrom != nil {
		op, target = sim.OpRead, filter.ReadFrom
	} else if filter.WriteTo != nil {
		op, target = sim.OpWrite, filter.WriteTo
	}

	// A named register resolves through the register table once, up front.
	var offset *uint64
	if target != nil && target.hasLoc {
		if target.loc == sim.LocRegister {
			off, ok := p.project.Metadata.RegisterOffset(target.reg)
			if !ok {
				return nil, errors.Errorf("unknown register %q", target.reg)
			}
			offset = &off
		} else {
			addr := target.addr
			offset = &addr
		}
	}

	var out []*sim.Action
	for _, a := range utils.SliceReversed(p.LastActions()) {
		if filter.BlockAddr != nil && a.BlockAddr != *filter.BlockAddr {
			continue
		}
		if filter.BlockStmt != nil && a.StmtIdx != *filter.BlockStmt {
			continue
		}
		if target != nil && !p.actionTouches(a, op, target.loc, offset) {
			continue
		}
		if filter.InsnAddr != nil {
			if a.FromProcedure {
				continue
			}
			insn, ok, err := p.insnAddrOfStmt(a.BlockAddr, a.StmtIdx)
			if err != nil {
				return nil, err
			}
			if !ok || insn != *filter.InsnAddr {
				continue
			}
		}
		out = append(out, a)
	}
	return out, nil
}

// actionTouches reports whether the access matches the direction, storage class, and optional
// concrete offset. A symbolic access address never matches an offset filter; forcing a solve to
// compare it is not worth the cost.
func (p *Path) actionTouches(a *sim.Action, op sim.ActionOp, loc sim.ActionLoc, offset *uint64) bool {
	if a.Op != op || a.Loc != loc {
		return false
	}
	if offset == nil {
		return true
	}
	if a.Addr == nil || a.Addr.Symbolic() {
		return false
	}
	c, ok := a.Addr.(sim.Concretizable)
	if !ok {
		return false
	}
	v, ok := c.ConcreteValue()
	if !ok {
		return false
	}
	return v.IsUint64() && v.Uint64() == *offset
}

// insnAddrOfStmt resolves a statement index within a block to the address of its enclosing
// instruction via the program-metadata provider.
func (p *Path) insnAddrOfStmt(blockAddr uint64, stmtIdx int) (uint64, bool, error) {
	if stmtIdx < 0 {
		return 0, false, nil
	}
	block, err := p.project.Metadata.Block(blockAddr)
	if err != nil {
		return 0, false, errors.Wrapf(err, "disassembling block %#x", blockAddr)
	}
	addr, ok := block.InsnAddr(stmtIdx)
	return addr, ok, nil
}
