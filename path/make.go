package path

import (
	"github.com/pkg/errors"

	"github.com/kestrelsec/kestrel/sim"
)

// Run pairs one transfer result with the state it started from, for rebuilding a path from a
// previously executed sequence.
type Run struct {
	// InitialState is the state the run started from.
	InitialState sim.State

	// Result is the transfer result the run produced.
	Result *sim.RunResult
}

// MakePath reconstructs a Path from a sequence of already-executed runs, replaying the history
// and call stack bookkeeping without invoking the transfer engine. The resulting path's state is
// the last run's initial state.
func MakePath(proj *sim.Project, runs []Run) (*Path, error) {
	if len(runs) == 0 {
		return nil, errors.New("cannot build a path from an empty run sequence")
	}

	p, err := NewPath(proj, runs[0].InitialState)
	if err != nil {
		return nil, err
	}
	leaf := newChildHistory(p.history)
	leaf.recordRun(runs[0].Result)
	p.history = leaf

	if len(runs) == 1 {
		// A lone run still lands in the leaf: its starting state backs the history node and
		// counts a visit of the entry block.
		p.history.recordState(runs[0].InitialState)
		if err := p.manageCallstack(runs[0].InitialState); err != nil {
			return nil, err
		}
		return p, nil
	}

	for i, r := range runs[1:] {
		p.history.recordState(r.InitialState)
		if err := p.manageCallstack(r.InitialState); err != nil {
			return nil, err
		}
		p.state = r.InitialState

		// The final run is the pending next step, not a recorded one.
		if i < len(runs)-2 {
			leaf = newChildHistory(p.history)
			leaf.recordRun(r.Result)
			p.history = leaf
		}
	}
	return p, nil
}
