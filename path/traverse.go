package path

import (
	"iter"

	"github.com/kestrelsec/kestrel/sim"
)

// History traversal. Every method below returns a lazy, finite sequence walking parent links
// from the path's current leaf, most recent step first. Ranging over the same sequence again
// restarts from the leaf. Materialize flips a sequence into a root-to-leaf slice for algorithms
// that need forward order.

// Target is one control transfer recorded in a history: the block reached and the address of the
// instruction that jumped there.
type Target struct {
	Addr   uint64
	Source uint64
}

// Materialize drains a history-ordered sequence into a slice ordered root to leaf.
func Materialize[T any](seq iter.Seq[T]) []T {
	var out []T
	for v := range seq {
		out = append(out, v)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// ancestry walks parent links from leaf to root.
func ancestry(leaf *History) iter.Seq[*History] {
	return func(yield func(*History) bool) {
		for h := leaf; h != nil; h = h.parent {
			if !yield(h) {
				return
			}
		}
	}
}

// projectHistory applies one projection per node, skipping nodes where the projection reports
// no value. All traversal kinds below are instances of this walk.
func projectHistory[T any](leaf *History, f func(*History) (T, bool)) iter.Seq[T] {
	return func(yield func(T) bool) {
		for h := leaf; h != nil; h = h.parent {
			if v, ok := f(h); ok {
				if !yield(v) {
					return
				}
			}
		}
	}
}

// HistoryNodes yields the raw history nodes, most recent first.
func (p *Path) HistoryNodes() iter.Seq[*History] {
	return ancestry(p.history)
}

// AddrTrace yields the block addresses the path visited, most recent first. Steps whose address
// stayed symbolic are skipped, as is the root node.
func (p *Path) AddrTrace() iter.Seq[uint64] {
	return projectHistory(p.history, func(h *History) (uint64, bool) {
		return h.addr, h.addrOK
	})
}

// Trace yields the run descriptions along the path, most recent first.
func (p *Path) Trace() iter.Seq[string] {
	return projectHistory(p.history, func(h *History) (string, bool) {
		return h.runDesc, h.runDesc != ""
	})
}

// Targets yields the recorded control transfers, most recent first.
func (p *Path) Targets() iter.Seq[Target] {
	return projectHistory(p.history, func(h *History) (Target, bool) {
		return Target{Addr: h.addr, Source: h.jumpSource}, h.addrOK
	})
}

// Guards yields the branch conditions along the path, most recent first. Unconditional steps are
// skipped.
func (p *Path) Guards() iter.Seq[sim.Expr] {
	return projectHistory(p.history, func(h *History) (sim.Expr, bool) {
		return h.guard, h.guard != nil
	})
}

// Jumpkinds yields the transfer classifications along the path, most recent first.
func (p *Path) Jumpkinds() iter.Seq[sim.Jumpkind] {
	return projectHistory(p.history, func(h *History) (sim.Jumpkind, bool) {
		return h.jumpkind, h.addrOK
	})
}

// Events yields every recorded event along the path, most recent first: nodes are walked leaf to
// root and each node's events are yielded newest first.
func (p *Path) Events() iter.Seq[sim.Event] {
	return func(yield func(sim.Event) bool) {
		for h := range ancestry(p.history) {
			for i := len(h.events) - 1; i >= 0; i-- {
				if !yield(h.events[i]) {
					return
				}
			}
		}
	}
}

// Actions yields the memory and register accesses along the path, most recent first.
func (p *Path) Actions() iter.Seq[*sim.Action] {
	return func(yield func(*sim.Action) bool) {
		for e := range p.Events() {
			if a, ok := e.(*sim.Action); ok {
				if !yield(a) {
					return
				}
			}
		}
	}
}

// LastActions returns the accesses recorded by the most recent step only, oldest first.
func (p *Path) LastActions() []*sim.Action {
	var out []*sim.Action
	for _, e := range p.history.events {
		if a, ok := e.(*sim.Action); ok {
			out = append(out, a)
		}
	}
	return out
}
