package path

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/kestrelsec/kestrel/sim"
)

// Test fixtures: in-memory implementations of the external collaborator contracts, small enough
// to script per test. The state models constraints as variable/value bindings; satisfiability
// fails only when two bindings on the same variable conflict.

// mockExpr is either a concrete 64-bit value or a named symbolic variable.
type mockExpr struct {
	sym  bool
	name string
	val  uint64
}

func concreteExpr(v uint64) *mockExpr  { return &mockExpr{val: v} }
func symbolExpr(name string) *mockExpr { return &mockExpr{sym: true, name: name} }

func (e *mockExpr) Symbolic() bool { return e.sym }

func (e *mockExpr) Variables() []string {
	if e.sym {
		return []string{e.name}
	}
	return nil
}

func (e *mockExpr) ConcreteValue() (*uint256.Int, bool) {
	if e.sym {
		return nil, false
	}
	return uint256.NewInt(e.val), true
}

func (e *mockExpr) Eq(other sim.Expr) sim.Expr {
	return &mockBinding{lhs: e, rhs: other}
}

func (e *mockExpr) String() string {
	if e.sym {
		return e.name
	}
	return fmt.Sprintf("%#x", e.val)
}

// mockBinding is the boolean expression "lhs == rhs" produced by mockExpr.Eq.
type mockBinding struct {
	lhs *mockExpr
	rhs sim.Expr
}

func (b *mockBinding) Symbolic() bool { return b.lhs.sym || b.rhs.Symbolic() }

func (b *mockBinding) Variables() []string {
	return append(b.lhs.Variables(), b.rhs.Variables()...)
}

func (b *mockBinding) Eq(other sim.Expr) sim.Expr {
	return &mockBinding{lhs: &mockExpr{sym: true, name: b.String()}, rhs: other}
}
func (b *mockBinding) String() string {
	return fmt.Sprintf("%s == %s", b.lhs, b.rhs)
}

// binding extracts the variable/value pair asserted by the expression, if it has that shape.
func (b *mockBinding) binding() (string, uint64, bool) {
	if !b.lhs.sym {
		return "", 0, false
	}
	c, ok := b.rhs.(sim.Concretizable)
	if !ok {
		return "", 0, false
	}
	v, ok := c.ConcreteValue()
	if !ok {
		return "", 0, false
	}
	return b.lhs.name, v.Uint64(), true
}

// testArch is the architecture every fixture state runs under.
var testArch = &sim.Arch{
	Bits:          64,
	MemoryEndness: sim.LittleEndian,
	CallPushesRet: true,
	StackPointer:  "rsp",
}

// mockState implements sim.State over plain maps.
type mockState struct {
	ip         sim.Expr
	regs       map[string]sim.Expr
	mem        map[uint64]sim.Expr
	jumpkind   sim.Jumpkind
	blockAddr  uint64
	guard      sim.Expr
	avoidable  bool
	jumpSource uint64
	events     []sim.Event
	arch       *sim.Arch

	// constraints holds the variable bindings added so far.
	constraints map[string]uint64

	// contradictory is set when conflicting bindings were added.
	contradictory bool

	// mergeCalls counts Merge invocations, for precondition tests.
	mergeCalls int

	// simplified is set by Simplify, for unmerge tests.
	simplified bool
}

// newMockState returns a state positioned at addr with a sane stack setup: rsp holds a concrete
// stack pointer and the word at the stack pointer holds a return address.
func newMockState(addr uint64) *mockState {
	return &mockState{
		ip:        concreteExpr(addr),
		blockAddr: addr,
		arch:      testArch,
		regs: map[string]sim.Expr{
			"rsp": concreteExpr(0x7fff0000),
		},
		mem: map[uint64]sim.Expr{
			0x7fff0000: concreteExpr(0x401f00),
		},
		constraints: map[string]uint64{},
	}
}

// successorState derives the state reached from s at addr via the given transfer kind.
func successorState(s *mockState, addr uint64, kind sim.Jumpkind) *mockState {
	n := s.Copy().(*mockState)
	n.ip = concreteExpr(addr)
	n.blockAddr = addr
	n.jumpkind = kind
	n.guard = nil
	n.avoidable = false
	n.jumpSource = 0
	n.events = nil
	return n
}

func (s *mockState) IP() sim.Expr { return s.ip }

func (s *mockState) SetIP(addr uint64) error {
	s.ip = concreteExpr(addr)
	s.blockAddr = addr
	return nil
}

func (s *mockState) RegisterRead(name string) (sim.Expr, error) {
	if e, ok := s.regs[name]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("no register %q", name)
}

func (s *mockState) MemLoad(addr sim.Expr, size uint, endness sim.Endness, inspect bool) (sim.Expr, error) {
	a, err := s.Concretize(addr)
	if err != nil {
		return nil, err
	}
	if e, ok := s.mem[a]; ok {
		return e, nil
	}
	return concreteExpr(0), nil
}

func (s *mockState) Concretize(e sim.Expr) (uint64, error) {
	if c, ok := e.(sim.Concretizable); ok {
		if v, concrete := c.ConcreteValue(); concrete {
			return v.Uint64(), nil
		}
	}
	// A bound symbolic variable resolves to its binding.
	if m, ok := e.(*mockExpr); ok && m.sym {
		if v, bound := s.constraints[m.name]; bound {
			return v, nil
		}
	}
	return 0, &sim.SolverError{Reason: "unresolved symbolic value", Cause: sim.ErrSolverMode}
}

func (s *mockState) Satisfiable() (bool, error) {
	return !s.contradictory, nil
}

func (s *mockState) AddConstraint(c sim.Expr) error {
	b, ok := c.(*mockBinding)
	if !ok {
		return fmt.Errorf("unsupported constraint %s", c)
	}
	name, val, ok := b.binding()
	if !ok {
		return fmt.Errorf("unsupported constraint shape %s", c)
	}
	if prev, bound := s.constraints[name]; bound && prev != val {
		s.contradictory = true
	}
	s.constraints[name] = val
	return nil
}

func (s *mockState) Simplify() { s.simplified = true }

func (s *mockState) Copy() sim.State {
	regs := make(map[string]sim.Expr, len(s.regs))
	for k, v := range s.regs {
		regs[k] = v
	}
	mem := make(map[uint64]sim.Expr, len(s.mem))
	for k, v := range s.mem {
		mem[k] = v
	}
	constraints := make(map[string]uint64, len(s.constraints))
	for k, v := range s.constraints {
		constraints[k] = v
	}
	clone := *s
	clone.regs = regs
	clone.mem = mem
	clone.constraints = constraints
	clone.events = append([]sim.Event(nil), s.events...)
	return &clone
}

var mergeSelectorCount int

func (s *mockState) Merge(others ...sim.State) (sim.State, sim.Expr, any, error) {
	s.mergeCalls++
	mergeSelectorCount++
	selector := symbolExpr(fmt.Sprintf("merge_sel_%d", mergeSelectorCount))
	merged := s.Copy().(*mockState)
	return merged, selector, nil, nil
}

func (s *mockState) Jumpkind() sim.Jumpkind { return s.jumpkind }

func (s *mockState) BlockAddr() uint64 { return s.blockAddr }

func (s *mockState) Guard() sim.Expr { return s.guard }

func (s *mockState) GuardAvoidable() bool { return s.avoidable }

func (s *mockState) JumpSource() uint64 { return s.jumpSource }

func (s *mockState) Events() []sim.Event { return s.events }

func (s *mockState) Arch() *sim.Arch { return s.arch }

// mockEngine implements sim.Engine via a scripted callback and counts invocations.
type mockEngine struct {
	calls int
	runFn func(s sim.State, cfg *sim.RunConfig) (*sim.RunResult, error)
}

func (e *mockEngine) Run(s sim.State, cfg *sim.RunConfig) (*sim.RunResult, error) {
	e.calls++
	return e.runFn(s, cfg)
}

// mockMetadata implements sim.Metadata over plain maps.
type mockMetadata struct {
	blocks    map[uint64]*sim.Block
	registers map[string]uint64
}

func newMockMetadata() *mockMetadata {
	return &mockMetadata{
		blocks:    map[uint64]*sim.Block{},
		registers: map[string]uint64{"rsp": 48, "rax": 16, "rbx": 24},
	}
}

func (m *mockMetadata) Block(addr uint64) (*sim.Block, error) {
	if b, ok := m.blocks[addr]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("no block at %#x", addr)
}

func (m *mockMetadata) RegisterOffset(name string) (uint64, bool) {
	off, ok := m.registers[name]
	return off, ok
}

// flatRun wraps successor states as an ordinary run result starting at addr.
func flatRun(addr uint64, size int, successors ...sim.State) *sim.RunResult {
	return &sim.RunResult{
		Flat: successors,
		All:  successors,
		Addr: addr,
		Size: size,
	}
}

// newTestProject bundles a scripted engine with empty metadata.
func newTestProject(engine *mockEngine) *sim.Project {
	return &sim.Project{Engine: engine, Metadata: newMockMetadata()}
}

// stepTo scripts the engine to produce exactly one successor at addr with the given transfer
// kind and steps the path once, returning the child.
func stepTo(p *Path, engine *mockEngine, addr uint64, kind sim.Jumpkind) (*Path, error) {
	parent := p.state.(*mockState)
	parentAddr, _ := p.Addr()
	engine.runFn = func(s sim.State, cfg *sim.RunConfig) (*sim.RunResult, error) {
		return flatRun(parentAddr, 4, successorState(parent, addr, kind)), nil
	}
	p.Clear()
	children, err := p.Step(&sim.RunConfig{})
	if err != nil {
		return nil, err
	}
	if len(children) != 1 {
		return nil, fmt.Errorf("expected 1 successor, got %d", len(children))
	}
	return children[0], nil
}
