package sim

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Expr describes a symbolic bitvector or boolean expression produced by a program state or the
// transfer engine. Implementations are provided by the solver backend; this package only supplies
// the Const implementation for concrete values.
type Expr interface {
	// Symbolic indicates whether the expression depends on any symbolic variable.
	Symbolic() bool

	// Variables returns the names of the symbolic variables the expression depends on.
	Variables() []string

	// Eq returns the boolean expression asserting equality with other.
	Eq(other Expr) Expr

	// String returns a human-readable rendering of the expression.
	String() string
}

// Concretizable is implemented by expressions that can report a concrete value without invoking
// a solver.
type Concretizable interface {
	// ConcreteValue returns the expression's value if it is fully concrete.
	ConcreteValue() (*uint256.Int, bool)
}

// Const is a concrete bitvector constant of a fixed width in bits. It implements Expr and is the
// value representation used for extracted solver models and merge selector candidates.
type Const struct {
	value *uint256.Int
	width uint
}

// NewConst creates a constant expression from a 64-bit value with the given width in bits.
func NewConst(value uint64, width uint) *Const {
	return &Const{value: uint256.NewInt(value), width: width}
}

// NewConstFromUint256 creates a constant expression from a 256-bit value with the given width.
// The provided value is copied.
func NewConstFromUint256(value *uint256.Int, width uint) *Const {
	return &Const{value: new(uint256.Int).Set(value), width: width}
}

// Bool returns a one-bit constant representing the given truth value.
func Bool(v bool) *Const {
	if v {
		return NewConst(1, 1)
	}
	return NewConst(0, 1)
}

// Symbolic always returns false for constants.
func (c *Const) Symbolic() bool { return false }

// Variables returns nil, as constants depend on no symbolic variables.
func (c *Const) Variables() []string { return nil }

// Width returns the width of the constant in bits.
func (c *Const) Width() uint { return c.width }

// ConcreteValue returns a copy of the constant's value.
func (c *Const) ConcreteValue() (*uint256.Int, bool) {
	return new(uint256.Int).Set(c.value), true
}

// Uint64 returns the constant's value truncated to 64 bits.
func (c *Const) Uint64() uint64 { return c.value.Uint64() }

// Eq returns a boolean constant when other is also concrete. If other is symbolic, equality
// construction is delegated to it, as only the solver backend can build the symbolic assertion.
func (c *Const) Eq(other Expr) Expr {
	if o, ok := other.(Concretizable); ok {
		if v, concrete := o.ConcreteValue(); concrete {
			return Bool(c.value.Eq(v))
		}
	}
	return other.Eq(c)
}

// String returns the constant in hexadecimal form.
func (c *Const) String() string {
	return fmt.Sprintf("%s[%d]", c.value.Hex(), c.width)
}
