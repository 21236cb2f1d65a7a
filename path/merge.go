package path

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/kestrelsec/kestrel/sim"
	"github.com/kestrelsec/kestrel/utils"
)

// MergeRecord is one recorded merge: the selector expression distinguishing the merged inputs,
// the candidate value per input, each input's trace at merge time, and the history depth the
// merge occurred at. Records are consumed by Unmerge in the order they were made.
type MergeRecord struct {
	// Selector is the expression the state provider introduced to distinguish the inputs.
	Selector sim.Expr

	// Values holds one candidate selector value per input, by position.
	Values []uint64

	// Traces holds each input's run descriptions root to leaf, by position.
	Traces [][]string

	// AddrTraces holds each input's address trace root to leaf, by position.
	AddrTraces [][]uint64

	// Depth is the divergence index the merge occurred at.
	Depth int
}

// MergeLedger is a path's pending symbolic choices, one record per merge the path or an
// ancestor has undergone.
type MergeLedger struct {
	Records []MergeRecord
}

// Copy returns an independent ledger. Record contents are shared, as records are never mutated
// once appended.
func (l MergeLedger) Copy() MergeLedger {
	return MergeLedger{Records: append([]MergeRecord(nil), l.Records...)}
}

// Ledger returns the path's merge ledger.
func (p *Path) Ledger() MergeLedger { return p.ledger }

// Merge collapses this path and the given others into a single path summarizing all of them as
// symbolic possibilities. Every participant must be at the identical current address. The merged
// path's history is rooted at the participants' common ancestor with one synthetic merge-marker
// node appended, and its length is the divergence index: the distance to the point the
// participants began to differ.
func (p *Path) Merge(others ...*Path) (*Path, error) {
	all := append([]*Path{p}, others...)

	// Address precondition, checked before any state work.
	addr0, err := p.Addr()
	if err != nil {
		return nil, errors.Wrap(err, "resolving merge address")
	}
	for _, o := range others {
		addr, err := o.Addr()
		if err != nil {
			return nil, errors.Wrap(err, "resolving merge address")
		}
		if addr != addr0 {
			return nil, errors.Wrapf(ErrMergeAddrMismatch, "%#x != %#x", addr, addr0)
		}
	}

	otherStates := utils.SliceSelect(others, func(o *Path) sim.State { return o.state })
	mergedState, selector, _, err := p.state.Merge(otherStates...)
	if err != nil {
		return nil, errors.Wrap(err, "merging states")
	}

	np, err := newSuccessor(p, mergedState)
	if err != nil {
		return nil, err
	}

	addrTraces := utils.SliceSelect(all, func(o *Path) []uint64 { return Materialize(o.AddrTrace()) })
	divergenceIdx := divergenceIndex(addrTraces)

	// Rewind the first participant's history to the common ancestor node. Only address-bearing
	// nodes count toward the trace, so synthetic nodes from earlier merges are skipped over.
	ancestor := p.history
	for remaining := len(addrTraces[0]); remaining > divergenceIdx; ancestor = ancestor.parent {
		if ancestor.addrOK {
			remaining--
		}
	}
	if divergenceIdx > 0 {
		check := ancestor
		for check != nil && !check.addrOK {
			check = check.parent
		}
		if check == nil {
			panic(fmt.Sprintf("path: no merge ancestor matches trace value %#x", addrTraces[0][divergenceIdx-1]))
		}
		if got, ok := check.Addr(); !ok || got != addrTraces[0][divergenceIdx-1] {
			// A mismatch here means the history bookkeeping is corrupt, not a caller mistake.
			panic(fmt.Sprintf("path: merge ancestor at %#x does not match trace value %#x", got, addrTraces[0][divergenceIdx-1]))
		}
	}

	np.history = newMergeHistory(ancestor, fmt.Sprintf("merge point: %s", selector), divergenceIdx)
	np.ledger.Records = append(np.ledger.Records, MergeRecord{
		Selector:   selector,
		Values:     candidateValues(len(all)),
		Traces:     utils.SliceSelect(all, func(o *Path) []string { return Materialize(o.Trace()) }),
		AddrTraces: addrTraces,
		Depth:      divergenceIdx,
	})
	return np, nil
}

// divergenceIndex returns the first position at which the traces disagree across any pair, or
// the length of the shortest trace when no disagreement is found within it.
func divergenceIndex(traces [][]uint64) int {
	shortest := len(traces[0])
	for _, t := range traces[1:] {
		if len(t) < shortest {
			shortest = len(t)
		}
	}
	for i := 0; i < shortest; i++ {
		for _, t := range traces[1:] {
			if t[i] != traces[0][i] {
				return i
			}
		}
	}
	return shortest
}

// candidateValues returns the selector domain 0..n-1, one value per merge input by position.
func candidateValues(n int) []uint64 {
	values := make([]uint64, n)
	for i := range values {
		values[i] = uint64(i)
	}
	return values
}

// Unmerge re-expands a merged path into the concrete alternatives it summarizes. Ledger records
// are processed oldest first; for each record every tracked state is cloned once per candidate
// selector value with the constraint "selector == candidate" added, keeping only satisfiable
// results. Each surviving state is simplified and wrapped as a fresh path branching from this
// one, with the consumed ledger cleared.
func (p *Path) Unmerge() ([]*Path, error) {
	logger.Debug("unmerging", p.String())

	states := []sim.State{p.state}
	for _, rec := range p.ledger.Records {
		logger.Debug(fmt.Sprintf("processing selector %s with %d possibilities", rec.Selector, len(rec.Values)))

		var next []sim.State
		for _, v := range rec.Values {
			for _, s := range states {
				sc := s.Copy()
				if err := sc.AddConstraint(rec.Selector.Eq(sim.NewConst(v, 64))); err != nil {
					return nil, errors.Wrap(err, "constraining selector")
				}
				sat, err := sc.Satisfiable()
				if err != nil {
					return nil, errors.Wrap(err, "checking satisfiability")
				}
				if sat {
					next = append(next, sc)
				}
			}
		}
		states = next
		logger.Debug(fmt.Sprintf("%d satisfiable states remain", len(states)))
	}

	out := make([]*Path, 0, len(states))
	for _, s := range states {
		s.Simplify()
		np, err := newSuccessor(p, s)
		if err != nil {
			return nil, err
		}
		np.ledger = MergeLedger{}
		out = append(out, np)
	}
	return out, nil
}
