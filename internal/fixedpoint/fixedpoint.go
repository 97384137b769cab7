// Package fixedpoint implements 17.14 binary fixed-point arithmetic for
// scheduler accounting. Kernel context rules out floating point, so the
// load average and recent-CPU estimates are kept in this representation.
//
// A value x is stored as x * 2^14 in a signed 32-bit integer: 17 integer
// bits, 14 fraction bits, 1 sign bit. Intermediate products and quotients
// widen to 64 bits to avoid overflow.
package fixedpoint

// FP is a 17.14 fixed-point number.
type FP int32

const (
	fracBits = 14
	scale    = 1 << fracBits
)

// FromInt converts an integer to fixed point.
func FromInt(n int) FP {
	return FP(n * scale)
}

// Trunc converts x to an integer, rounding toward zero.
func (x FP) Trunc() int {
	return int(x / scale)
}

// Round converts x to an integer, rounding to nearest with ties away
// from zero. The MLFQS priority and getter formulas depend on this exact
// rounding mode.
func (x FP) Round() int {
	if x >= 0 {
		return int((x + scale/2) / scale)
	}
	return int((x - scale/2) / scale)
}

// Add returns x + y.
func (x FP) Add(y FP) FP { return x + y }

// Sub returns x - y.
func (x FP) Sub(y FP) FP { return x - y }

// AddInt returns x + n for integer n.
func (x FP) AddInt(n int) FP { return x + FromInt(n) }

// SubInt returns x - n for integer n.
func (x FP) SubInt(n int) FP { return x - FromInt(n) }

// Mul returns x * y.
func (x FP) Mul(y FP) FP {
	return FP(int64(x) * int64(y) / scale)
}

// Div returns x / y.
func (x FP) Div(y FP) FP {
	return FP(int64(x) * scale / int64(y))
}

// MulInt returns x * n for integer n.
func (x FP) MulInt(n int) FP { return x * FP(n) }

// DivInt returns x / n for integer n.
func (x FP) DivInt(n int) FP { return x / FP(n) }
