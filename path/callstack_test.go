package path

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kestrelsec/kestrel/sim"
)

// addrOf is a test helper for building optional addresses.
func addrOf(v uint64) *uint64 { return &v }

// TestCallStackPushPopTop tests basic stack discipline.
func TestCallStackPushPopTop(t *testing.T) {
	cs := NewCallStack()
	assert.Nil(t, cs.Top())
	assert.Equal(t, 0, cs.Depth())

	f1 := NewCallFrame(addrOf(0x1000), addrOf(0x7fff0000), addrOf(0x2000), sim.JumpCall)
	f2 := NewCallFrame(addrOf(0x3000), addrOf(0x7ffe0000), addrOf(0x4000), sim.JumpCall)
	cs.Push(f1)
	cs.Push(f2)

	assert.Equal(t, 2, cs.Depth())
	assert.Same(t, f2, cs.Top())
	assert.Same(t, f2, cs.At(0))
	assert.Same(t, f1, cs.At(1))
	assert.Nil(t, cs.At(2))

	popped, ok := cs.Pop()
	assert.True(t, ok)
	assert.Same(t, f2, popped)
	assert.Same(t, f1, cs.Top())

	_, ok = cs.Pop()
	assert.True(t, ok)
	_, ok = cs.Pop()
	assert.False(t, ok)
}

// TestCallStackEqualityIgnoresVisits tests that structural equality covers the frame triples
// but not the visit counters.
func TestCallStackEqualityIgnoresVisits(t *testing.T) {
	build := func() *CallStack {
		cs := NewCallStack()
		cs.Push(NewCallFrame(addrOf(0x1000), addrOf(0x7fff0000), addrOf(0x2000), sim.JumpCall))
		cs.Push(NewCallFrame(addrOf(0x3000), nil, addrOf(0x4000), sim.JumpSyscall))
		return cs
	}

	a, b := build(), build()
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Digest(), b.Digest())

	// Visit counters do not affect equality or the digest.
	b.Top().RecordVisit(0x3000)
	b.Top().RecordVisit(0x3000)
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Digest(), b.Digest())

	// A differing return address does.
	c := build()
	c.Top().RetAddr = addrOf(0x4444)
	assert.False(t, a.Equal(c))
	assert.NotEqual(t, a.Digest(), c.Digest())

	// An absent value differs from any present one.
	d := build()
	d.Top().RetAddr = nil
	assert.False(t, a.Equal(d))
	assert.NotEqual(t, a.Digest(), d.Digest())
}

// TestCallStackCopyIndependent tests that mutating a copied stack never affects the original.
func TestCallStackCopyIndependent(t *testing.T) {
	cs := NewCallStack()
	cs.Push(NewCallFrame(addrOf(0x1000), addrOf(0x7fff0000), addrOf(0x2000), sim.JumpCall))
	cs.Top().RecordVisit(0x1000)

	clone := cs.Copy()
	assert.True(t, cs.Equal(clone))

	clone.Push(NewCallFrame(addrOf(0x5000), nil, nil, sim.JumpCall))
	clone.At(1).RecordVisit(0x1000)

	assert.Equal(t, 1, cs.Depth())
	assert.Equal(t, 2, clone.Depth())
	assert.Equal(t, 1, cs.Top().VisitCount(0x1000))
	assert.Equal(t, 2, clone.At(1).VisitCount(0x1000))
}

// TestCallFrameMaxVisit tests the per-frame loop counter.
func TestCallFrameMaxVisit(t *testing.T) {
	f := NewCallFrame(addrOf(0x1000), nil, nil, sim.JumpCall)

	_, _, ok := f.MaxVisit()
	assert.False(t, ok)

	for i := 0; i < 5; i++ {
		f.RecordVisit(0x2000)
	}
	f.RecordVisit(0x3000)

	addr, count, ok := f.MaxVisit()
	assert.True(t, ok)
	assert.Equal(t, uint64(0x2000), addr)
	assert.Equal(t, 5, count)
}

// TestCallStackNeverEmptyAfterInit tests the sentinel recovery: a path whose trace returns more
// often than it calls still has a non-empty call stack.
func TestCallStackNeverEmptyAfterInit(t *testing.T) {
	engine := &mockEngine{}
	p, err := NewPath(newTestProject(engine), newMockState(0x1000))
	assert.NoError(t, err)
	assert.Equal(t, 1, p.CallStack().Depth())

	// One call, then two returns: the second return would empty the stack.
	p, err = stepTo(p, engine, 0x2000, sim.JumpCall)
	assert.NoError(t, err)
	assert.Equal(t, 2, p.CallStack().Depth())

	p, err = stepTo(p, engine, 0x1004, sim.JumpReturn)
	assert.NoError(t, err)
	assert.Equal(t, 1, p.CallStack().Depth())

	p, err = stepTo(p, engine, 0x401f00, sim.JumpReturn)
	assert.NoError(t, err)
	assert.Equal(t, 1, p.CallStack().Depth())

	// The sentinel frame is the all-zero frame.
	top := p.CallStack().Top()
	assert.NotNil(t, top)
	assert.Equal(t, uint64(0), *top.FuncAddr)
	assert.Equal(t, uint64(0), *top.RetAddr)
}

// TestManageCallstackPushAndPop tests the transfer-driven state machine: call-type transfers
// push a frame with the resolved return address, return-type transfers pop and record the
// popped frame.
func TestManageCallstackPushAndPop(t *testing.T) {
	engine := &mockEngine{}
	root, err := NewPath(newTestProject(engine), newMockState(0x1000))
	assert.NoError(t, err)

	called, err := stepTo(root, engine, 0x2000, sim.JumpCall)
	assert.NoError(t, err)

	top := called.CallStack().Top()
	assert.Equal(t, uint64(0x2000), *top.FuncAddr)
	assert.Equal(t, uint64(0x7fff0000), *top.StackPtr)
	// Return address comes from the memory word at the stack pointer.
	assert.Equal(t, uint64(0x401f00), *top.RetAddr)

	// The push was recorded in the backtrace.
	bt := called.Backtrace()
	assert.Len(t, bt, 1)
	assert.Equal(t, 2, bt[0].Depth)
	assert.Equal(t, called.CallStack().Digest(), bt[0].Digest)

	returned, err := stepTo(called, engine, 0x1004, sim.JumpReturn)
	assert.NoError(t, err)
	assert.Equal(t, 1, returned.CallStack().Depth())
	assert.NotNil(t, returned.PoppedFrame())
	assert.Equal(t, uint64(0x2000), *returned.PoppedFrame().FuncAddr)
}

// TestVisitCountsAreFrameLocal tests that block visit counters accumulate on the top frame
// only, so recursive invocations count independently.
func TestVisitCountsAreFrameLocal(t *testing.T) {
	engine := &mockEngine{}
	p, err := NewPath(newTestProject(engine), newMockState(0x1000))
	assert.NoError(t, err)

	// Loop twice at 0x1100 in the entry frame.
	p, err = stepTo(p, engine, 0x1100, sim.JumpBoring)
	assert.NoError(t, err)
	p, err = stepTo(p, engine, 0x1100, sim.JumpBoring)
	assert.NoError(t, err)

	count, ok := p.DetectLoops()
	assert.True(t, ok)
	assert.Equal(t, 2, count)

	// A call pushes a fresh frame whose counter starts over.
	p, err = stepTo(p, engine, 0x2000, sim.JumpCall)
	assert.NoError(t, err)
	count, ok = p.DetectLoops()
	assert.True(t, ok)
	assert.Equal(t, 1, count)
}
