package path

import (
	"github.com/kestrelsec/kestrel/sim"
)

// History is one link in the persistent, backward-linked record of a path's life. A node is
// mutated only between creation and the moment it is linked as a parent; from then on it is
// shared read-only by every descendant leaf. Branch points are nodes with several children, so
// the full structure is a tree of which each path holds one leaf.
type History struct {
	parent *History

	// addr is the block address the path reached on this step. addrOK is false when the
	// instruction pointer was symbolic and unresolved, or for the root node.
	addr   uint64
	addrOK bool

	// jumpkind classifies the transfer that reached addr.
	jumpkind sim.Jumpkind

	// guard is the branch condition of the transfer, nil when unconditional. avoidable marks
	// guards not already forced by prior constraints.
	guard      sim.Expr
	avoidable  bool
	jumpSource uint64

	// events recorded by the state during this step.
	events []sim.Event

	// runDesc is a textual description of the run that produced this step.
	runDesc string

	// length counts steps since the root. extraLength counts synthetic steps that do not
	// contribute to length, such as merge markers. On merge-marker nodes length is an explicit
	// override rather than parent.length+1; see newMergeHistory.
	length      int
	extraLength int
}

// newRootHistory returns the empty root node of a fresh path's history.
func newRootHistory() *History {
	return &History{}
}

// newChildHistory links a new leaf under parent with the step counters advanced.
func newChildHistory(parent *History) *History {
	return &History{
		parent:      parent,
		length:      parent.length + 1,
		extraLength: parent.extraLength,
	}
}

// newMergeHistory links a synthetic merge-marker node under parent. The node's length is set to
// the merge's divergence index rather than derived from the parent, a deliberate modeling choice:
// post-merge length means "steps to the divergence point", not literal step count.
func newMergeHistory(parent *History, desc string, length int) *History {
	return &History{
		parent:      parent,
		runDesc:     desc,
		length:      length,
		extraLength: parent.extraLength + 1,
	}
}

// recordState captures the per-step metadata from a successor state. Must only be called before
// the node is linked as a parent.
func (h *History) recordState(s sim.State) {
	h.addr = s.BlockAddr()
	h.addrOK = !s.IP().Symbolic()
	h.jumpkind = s.Jumpkind()
	h.guard = s.Guard()
	h.avoidable = s.GuardAvoidable()
	h.jumpSource = s.JumpSource()

	events := s.Events()
	h.events = make([]sim.Event, len(events))
	copy(h.events, events)
}

// recordRun captures the description of the run that produced this step.
func (h *History) recordRun(r *sim.RunResult) {
	if r != nil {
		h.runDesc = r.String()
	}
}

// cloneDetached returns a copy of the node with no parent link, used to cut a path's history
// off from its ancestry.
func (h *History) cloneDetached() *History {
	clone := *h
	clone.parent = nil
	return &clone
}

// clone returns a copy of the node sharing the same parent link.
func (h *History) clone() *History {
	clone := *h
	return &clone
}

// Parent returns the preceding node, or nil at the root.
func (h *History) Parent() *History { return h.parent }

// Addr returns the block address recorded for this step. ok is false for the root node and for
// steps whose instruction pointer stayed symbolic.
func (h *History) Addr() (addr uint64, ok bool) { return h.addr, h.addrOK }

// Jumpkind returns the transfer classification recorded for this step.
func (h *History) Jumpkind() sim.Jumpkind { return h.jumpkind }

// Guard returns the branch condition recorded for this step, or nil.
func (h *History) Guard() sim.Expr { return h.guard }

// GuardAvoidable indicates the recorded guard was not forced by prior constraints.
func (h *History) GuardAvoidable() bool { return h.avoidable }

// JumpSource returns the address of the instruction that performed this step's transfer.
func (h *History) JumpSource() uint64 { return h.jumpSource }

// Events returns the events recorded during this step, oldest first.
func (h *History) Events() []sim.Event { return h.events }

// Description returns the textual description of this step's run.
func (h *History) Description() string { return h.runDesc }

// Length returns the number of counted steps between the root and this node.
func (h *History) Length() int { return h.length }

// ExtraLength returns the number of synthetic steps between the root and this node.
func (h *History) ExtraLength() int { return h.extraLength }
