// Package path implements the path-management core of the analysis platform: one execution
// trace through the program under analysis, its reconstructed call stack, its shared persistent
// history, and the merge bookkeeping that lets symbolically-divergent traces collapse and later
// re-expand.
//
// Paths are inert data: they advance only when a caller invokes Step, Merge, or Unmerge.
// Sibling paths share only read-only structures (ancestor history nodes and the project's
// collaborators), so distinct paths may be operated on concurrently; a single path must be
// serialized by its owner.
package path

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kestrelsec/kestrel/logging"
	"github.com/kestrelsec/kestrel/sim"
	"github.com/kestrelsec/kestrel/utils"
)

// logger is the package's sub-logger.
var logger = logging.GlobalLogger.NewSubLogger("module", "path")

// BacktraceRecord snapshots the call stack shape at the moment a frame was pushed.
type BacktraceRecord struct {
	// Digest is the structural hash of the whole stack after the push.
	Digest [32]byte

	// Frame is the frame that was pushed.
	Frame *CallFrame

	// Depth is the stack depth after the push.
	Depth int
}

// Path represents one execution trace through the program under analysis. It owns its program
// state and call stack exclusively, holds a shared leaf reference into the history tree, and
// carries the merge ledger of pending symbolic choices.
type Path struct {
	// Name identifies the path in logs. Defaults to the path's ID.
	Name string

	// ID is the path's unique identity.
	ID uuid.UUID

	// Info is a free-form metadata store propagated to descendants, each key copied by
	// assignment on branch.
	Info map[string]any

	project   *sim.Project
	state     sim.State
	callstack *CallStack
	history   *History
	ledger    MergeLedger

	// poppedFrame is the frame most recently removed by a return-type transfer.
	poppedFrame *CallFrame

	// backtrace records every frame push over the path's life.
	backtrace []BacktraceRecord

	// previousRun is the run that produced this path's state.
	previousRun *sim.RunResult

	// Cached transfer result, keyed by the exact configuration in runCfg. Exactly one of run
	// and runErr is set once the path has been stepped.
	runCfg *sim.RunConfig
	run    *sim.RunResult
	runErr error

	// err is the captured transfer failure on an errored path. Errored paths cannot be stepped
	// except through Retry.
	err error
}

// NewPath creates a fresh root path from an initial program state. The call stack starts with a
// single frame describing the entry point; an unresolvable stack pointer or entry address is
// recorded as absent.
func NewPath(proj *sim.Project, state sim.State) (*Path, error) {
	p := &Path{
		ID:        uuid.New(),
		Info:      map[string]any{},
		project:   proj,
		state:     state,
		callstack: NewCallStack(),
		history:   newRootHistory(),
	}
	p.Name = p.ID.String()

	funcAddr, err := concretizeOpt(state, state.IP())
	if err != nil {
		return nil, err
	}
	spExpr, err := state.RegisterRead(state.Arch().StackPointer)
	var stackPtr *uint64
	if err == nil {
		if stackPtr, err = concretizeOpt(state, spExpr); err != nil {
			return nil, err
		}
	}
	p.callstack.Push(NewCallFrame(funcAddr, stackPtr, nil, sim.JumpBoring))
	return p, nil
}

// newSuccessor branches a child path from parent with the given successor state. The history
// gains one shared leaf recording the step; the call stack is deep-copied and updated by the
// call stack state machine; the merge ledger and metadata are copied.
func newSuccessor(parent *Path, state sim.State) (*Path, error) {
	h := newChildHistory(parent.history)
	h.recordState(state)
	h.recordRun(parent.run)

	p := &Path{
		ID:          uuid.New(),
		Info:        utils.CloneMapShallow(parent.Info),
		project:     parent.project,
		state:       state,
		callstack:   parent.callstack.Copy(),
		history:     h,
		ledger:      parent.ledger.Copy(),
		poppedFrame: parent.poppedFrame,
		backtrace:   append([]BacktraceRecord(nil), parent.backtrace...),
		previousRun: parent.run,
	}
	p.Name = p.ID.String()

	if err := p.manageCallstack(state); err != nil {
		return nil, err
	}
	return p, nil
}

// manageCallstack applies one transfer to the call stack state machine: call-type transfers push
// a frame, return-type transfers pop one, everything else leaves the stack alone. Every step
// bumps the reached block's visit counter on the current top frame, keeping loop accounting
// frame-local.
func (p *Path) manageCallstack(state sim.State) error {
	switch kind := state.Jumpkind(); {
	case kind.IsCall():
		frame, err := frameFromState(state)
		if err != nil {
			return err
		}
		p.callstack.Push(frame)
		p.backtrace = append(p.backtrace, BacktraceRecord{
			Digest: p.callstack.Digest(),
			Frame:  frame,
			Depth:  p.callstack.Depth(),
		})
	case kind.IsReturn():
		popped, _ := p.callstack.Pop()
		p.poppedFrame = popped
		if p.callstack.Depth() == 0 {
			logger.Info("path call stack unbalanced, pushing sentinel frame", logging.StructuredLogInfo{"path": p.Name})
			p.callstack.Push(sentinelFrame())
		}
	}

	p.callstack.Top().RecordVisit(state.BlockAddr())
	return nil
}

// Addr returns the path's current address, resolved from the state's instruction pointer.
func (p *Path) Addr() (uint64, error) {
	return p.state.Concretize(p.state.IP())
}

// State returns the path's program state. The state is exclusively owned: callers must not
// retain it across a branch.
func (p *Path) State() sim.State { return p.state }

// CallStack returns the path's call stack.
func (p *Path) CallStack() *CallStack { return p.callstack }

// History returns the path's current leaf history node.
func (p *Path) History() *History { return p.history }

// PoppedFrame returns the frame removed by the most recent return-type transfer, or nil.
func (p *Path) PoppedFrame() *CallFrame { return p.poppedFrame }

// Backtrace returns the records of every frame push over the path's life.
func (p *Path) Backtrace() []BacktraceRecord { return p.backtrace }

// PreviousRun returns the run that produced this path's state, or nil for a root path.
func (p *Path) PreviousRun() *sim.RunResult { return p.previousRun }

// Errored indicates the path captured a transfer failure and is terminal. See Err and Retry.
func (p *Path) Errored() bool { return p.err != nil }

// Err returns the captured transfer failure, or nil.
func (p *Path) Err() error { return p.err }

// Length returns the number of counted steps in the path's history. After a merge this is the
// distance to the divergence point, not the literal step count.
func (p *Path) Length() int { return p.history.length }

// ExtraLength returns the number of synthetic steps in the path's history.
func (p *Path) ExtraLength() int { return p.history.extraLength }

// WeightedLength returns counted plus synthetic steps.
func (p *Path) WeightedLength() int { return p.history.length + p.history.extraLength }

// Jumpkind returns the transfer classification of the most recent step.
func (p *Path) Jumpkind() sim.Jumpkind { return p.history.jumpkind }

// Reachable reports whether the path's constraints admit any solution.
func (p *Path) Reachable() (bool, error) { return p.state.Satisfiable() }

// Step computes the successors of applying one unit of symbolic transfer under cfg. The result
// is cached on the exact configuration: stepping again with an equal configuration and no
// intervening Clear returns the cached classification without consulting the engine.
//
// Recognized transfer failures (engine, solver, and operand domain errors) are captured rather
// than returned: the result is then a single errored path holding the failure. Any other
// failure, resource exhaustion included, propagates. Errored paths cannot be stepped again
// except through Retry.
func (p *Path) Step(cfg *sim.RunConfig) ([]*Path, error) {
	if p.Errored() {
		return nil, ErrErrored
	}
	if !cfg.Equal(p.runCfg) || (p.run == nil && p.runErr == nil) {
		p.runCfg = cfg
		if err := p.makeRun(); err != nil {
			return nil, err
		}
	}

	if p.runErr != nil {
		return []*Path{p.copyWithError(p.runErr)}, nil
	}

	out := make([]*Path, 0, len(p.run.Flat))
	for _, s := range p.run.Flat {
		child, err := newSuccessor(p, s)
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}

	// Injected instruction bytes that fall through past the supplied block model an inline
	// sequence, not an advance: pull the lone successor back to the original address.
	if cfg != nil && cfg.InsnBytes != nil && cfg.Addr == nil && len(out) == 1 && p.run.IsLifted() {
		if addr, err := p.Addr(); err == nil {
			if childAddr, err := out[0].Addr(); err == nil && addr+uint64(p.run.Size) == childAddr {
				if err := out[0].state.SetIP(addr); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

// StepChecked behaves like Step but propagates recognized transfer failures to the caller
// instead of capturing them into an errored path. The failure stays cached either way.
func (p *Path) StepChecked(cfg *sim.RunConfig) ([]*Path, error) {
	out, err := p.Step(cfg)
	if err != nil {
		return nil, err
	}
	if p.runErr != nil {
		return nil, p.runErr
	}
	return out, nil
}

// makeRun invokes the transfer engine, capturing recognized failures into the run cache and
// propagating everything else.
func (p *Path) makeRun() error {
	p.run, p.runErr = nil, nil
	run, err := p.project.Engine.Run(p.state, p.runCfg)
	if err != nil {
		if !sim.IsRecoverable(err) {
			return err
		}
		logger.Debug("captured transfer failure", err, logging.StructuredLogInfo{"path": p.Name})
		p.runErr = err
		return nil
	}
	p.run = run
	return nil
}

// Clear invalidates the cached transfer result so the next Step recomputes. Call it after
// mutating the path's state directly.
func (p *Path) Clear() {
	p.run = nil
	p.runErr = nil
}

// NextRun returns the cached transfer result. It is nil on a path whose step captured a
// failure, and ErrNotStepped before the first Step.
func (p *Path) NextRun() (*sim.RunResult, error) {
	if p.runErr != nil {
		return nil, nil
	}
	if p.run == nil {
		return nil, ErrNotStepped
	}
	return p.run, nil
}

// Successors re-delivers the flat successors of the most recent Step.
func (p *Path) Successors() ([]*Path, error) {
	if p.run == nil && p.runErr == nil {
		return nil, ErrNotStepped
	}
	return p.Step(p.runCfg)
}

// UnconstrainedSuccessors wraps the successors whose instruction pointer stayed symbolic.
func (p *Path) UnconstrainedSuccessors() ([]*Path, error) {
	return p.wrapSuccessors(func(r *sim.RunResult) []sim.State { return r.Unconstrained })
}

// UnsatSuccessors wraps the successors proven infeasible. They exist for diagnostics only.
func (p *Path) UnsatSuccessors() ([]*Path, error) {
	return p.wrapSuccessors(func(r *sim.RunResult) []sim.State { return r.Unsat })
}

// NonflatSuccessors wraps the union of pre-deduplication flat successors and unconstrained
// successors.
func (p *Path) NonflatSuccessors() ([]*Path, error) {
	return p.wrapSuccessors(func(r *sim.RunResult) []sim.State {
		return append(append([]sim.State(nil), r.All...), r.Unconstrained...)
	})
}

// UnconstrainedSuccessorStates returns the raw unconstrained successor states without wrapping
// them into paths.
func (p *Path) UnconstrainedSuccessorStates() ([]sim.State, error) {
	if p.runErr != nil {
		return nil, nil
	}
	if p.run == nil {
		return nil, ErrNotStepped
	}
	return p.run.Unconstrained, nil
}

// wrapSuccessors builds child paths for a selected view of the cached run. A captured failure
// yields an empty view; an unstepped path is a usage error.
func (p *Path) wrapSuccessors(view func(*sim.RunResult) []sim.State) ([]*Path, error) {
	if p.runErr != nil {
		return nil, nil
	}
	if p.run == nil {
		return nil, ErrNotStepped
	}
	states := view(p.run)
	out := make([]*Path, 0, len(states))
	for _, s := range states {
		child, err := newSuccessor(p, s)
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, nil
}

// Retry re-attempts the transfer on a path that captured a failure, then behaves like a normal
// step. Unlike Step, the engine failure propagates directly.
func (p *Path) Retry(cfg *sim.RunConfig) ([]*Path, error) {
	if !p.Errored() {
		return nil, ErrNotErrored
	}
	run, err := p.project.Engine.Run(p.state, cfg)
	if err != nil {
		return nil, err
	}
	p.err = nil
	p.runCfg = cfg
	p.run, p.runErr = run, nil
	return p.Step(cfg)
}

// Copy returns an independent path at the same position: the state and call stack are deep
// copies, the history leaf is cloned onto the same shared ancestry, and the merge ledger and
// metadata are copied. The cached transfer result carries over.
func (p *Path) Copy() *Path {
	return p.copyInternal(nil)
}

// copyWithError copies the path and marks the copy errored with the given captured failure.
func (p *Path) copyWithError(err error) *Path {
	return p.copyInternal(err)
}

func (p *Path) copyInternal(capturedErr error) *Path {
	c := &Path{
		ID:          uuid.New(),
		Info:        utils.CloneMapShallow(p.Info),
		project:     p.project,
		state:       p.state.Copy(),
		callstack:   p.callstack.Copy(),
		history:     p.history.clone(),
		ledger:      p.ledger.Copy(),
		poppedFrame: p.poppedFrame,
		backtrace:   append([]BacktraceRecord(nil), p.backtrace...),
		previousRun: p.previousRun,
		runCfg:      p.runCfg,
		run:         p.run,
		runErr:      p.runErr,
		err:         capturedErr,
	}
	c.Name = c.ID.String()
	return c
}

// TrimHistory cuts the path's history off from its ancestry, leaving the current leaf as a new
// root. Ancestor nodes referenced by sibling paths are unaffected.
func (p *Path) TrimHistory() {
	p.history = p.history.cloneDetached()
}

// BranchCause describes one avoidable branch along a path's history: where it happened and
// which symbolic variables decided it.
type BranchCause struct {
	// BlockAddr is the block the branch landed in.
	BlockAddr uint64

	// JumpSource is the instruction that performed the branch.
	JumpSource uint64

	// Variables names the symbolic variables the guard depends on.
	Variables []string
}

// BranchCauses explains why this path diverged from others: every avoidable guard along the
// history, most recent first, with the variables it depends on.
func (p *Path) BranchCauses() []BranchCause {
	var out []BranchCause
	for h := range p.HistoryNodes() {
		if h.guard != nil && h.avoidable {
			out = append(out, BranchCause{
				BlockAddr:  h.addr,
				JumpSource: h.jumpSource,
				Variables:  h.guard.Variables(),
			})
		}
	}
	return out
}

// DivergenceAddr returns the block address at which this path and other began to differ: the
// address immediately preceding the first trace mismatch, or the address where the shorter
// trace ends when one is a prefix of the other. ok is false when the traces differ from the
// very first block or do not differ at all.
func (p *Path) DivergenceAddr(other *Path) (uint64, bool) {
	trace1 := Materialize(p.AddrTrace())
	trace2 := Materialize(other.AddrTrace())

	longest := len(trace1)
	if len(trace2) > longest {
		longest = len(trace2)
	}
	for i := 0; i < longest; i++ {
		switch {
		case i >= len(trace1):
			return trace1[i-1], i > 0
		case i >= len(trace2):
			return trace2[i-1], i > 0
		case trace1[i] != trace2[i]:
			if i == 0 {
				return 0, false
			}
			return trace1[i-1], true
		}
	}
	return 0, false
}

// DetectLoops returns the highest block visit count in the current top call frame. ok is false
// for a freshly pushed frame that has not executed a block yet.
func (p *Path) DetectLoops() (count int, ok bool) {
	top := p.callstack.Top()
	if top == nil {
		return 0, false
	}
	_, count, ok = top.MaxVisit()
	return count, ok
}

// String renders the path for logs.
func (p *Path) String() string {
	if addr, err := p.Addr(); err == nil {
		return fmt.Sprintf("<path %s: %d steps, at %#x>", p.Name, p.Length(), addr)
	}
	return fmt.Sprintf("<path %s: %d steps, symbolic ip>", p.Name, p.Length())
}
