package path

import (
	"encoding/binary"
	"strings"

	"golang.org/x/crypto/sha3"
)

// CallStack is the ordered stack of call frames owned by one path, top frame last pushed. It is
// never empty after path initialization: a return that would empty it pushes a sentinel frame
// instead (handled by the path's call stack maintenance).
type CallStack struct {
	frames []*CallFrame
}

// NewCallStack returns an empty call stack.
func NewCallStack() *CallStack {
	return &CallStack{}
}

// Push adds a frame on top of the stack.
func (cs *CallStack) Push(f *CallFrame) {
	cs.frames = append(cs.frames, f)
}

// Pop removes and returns the top frame. Returns false when the stack is empty.
func (cs *CallStack) Pop() (*CallFrame, bool) {
	if len(cs.frames) == 0 {
		return nil, false
	}
	f := cs.frames[len(cs.frames)-1]
	cs.frames = cs.frames[:len(cs.frames)-1]
	return f, true
}

// Top returns the top frame without removing it, or nil when the stack is empty.
func (cs *CallStack) Top() *CallFrame {
	if len(cs.frames) == 0 {
		return nil
	}
	return cs.frames[len(cs.frames)-1]
}

// At returns the frame at depth k from the top, with 0 being the top frame. Returns nil when out
// of range.
func (cs *CallStack) At(k int) *CallFrame {
	if k < 0 || k >= len(cs.frames) {
		return nil
	}
	return cs.frames[len(cs.frames)-1-k]
}

// Depth returns the number of frames on the stack.
func (cs *CallStack) Depth() int {
	return len(cs.frames)
}

// Frames returns the frames ordered most recent first.
func (cs *CallStack) Frames() []*CallFrame {
	r := make([]*CallFrame, len(cs.frames))
	for i := range cs.frames {
		r[i] = cs.frames[len(cs.frames)-1-i]
	}
	return r
}

// Equal compares two stacks structurally over the (function, stack pointer, return address)
// triples of every frame. Visit counters are ignored.
func (cs *CallStack) Equal(other *CallStack) bool {
	if len(cs.frames) != len(other.frames) {
		return false
	}
	for i := range cs.frames {
		a, b := cs.frames[i], other.frames[i]
		if !optAddrEqual(a.FuncAddr, b.FuncAddr) || !optAddrEqual(a.StackPtr, b.StackPtr) || !optAddrEqual(a.RetAddr, b.RetAddr) {
			return false
		}
	}
	return true
}

// Digest returns a structural hash over the stack's frame triples, used to identify call stack
// shapes in backtrace bookkeeping. Stacks that compare Equal have equal digests.
func (cs *CallStack) Digest() [32]byte {
	h := sha3.New256()
	var buf [9]byte
	writeOpt := func(a *uint64) {
		if a == nil {
			buf[0] = 0
			binary.LittleEndian.PutUint64(buf[1:], 0)
		} else {
			buf[0] = 1
			binary.LittleEndian.PutUint64(buf[1:], *a)
		}
		h.Write(buf[:])
	}
	for _, f := range cs.frames {
		writeOpt(f.FuncAddr)
		writeOpt(f.StackPtr)
		writeOpt(f.RetAddr)
	}
	var sum [32]byte
	h.Sum(sum[:0])
	return sum
}

// Copy returns a deep copy of the stack.
func (cs *CallStack) Copy() *CallStack {
	frames := make([]*CallFrame, len(cs.frames))
	for i, f := range cs.frames {
		frames[i] = f.Copy()
	}
	return &CallStack{frames: frames}
}

// String renders the stack as a backtrace, most recent frame first.
func (cs *CallStack) String() string {
	var sb strings.Builder
	sb.WriteString("backtrace:")
	for _, f := range cs.Frames() {
		sb.WriteString("\n  ")
		sb.WriteString(f.String())
	}
	return sb.String()
}
