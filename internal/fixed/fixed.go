// Package fixed implements checked fixed-point arithmetic on 256-bit unsigned
// integers where Base represents 1.0.
package fixed

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

const (
	// Decimals is the number of fractional decimal digits of a fixed-point value.
	Decimals = 10

	// One is the raw representation of 1.0.
	One uint64 = 10_000_000_000
	// Hundredth is the raw representation of 0.01.
	Hundredth = One / 100

	base = One
	cent = Hundredth
)

var (
	ErrOverflow       = errors.New("fixed: arithmetic overflow")
	ErrUnderflow      = errors.New("fixed: arithmetic underflow")
	ErrDivisionByZero = errors.New("fixed: division by zero")
)

// Base returns a fresh copy of 1.0.
func Base() *uint256.Int { return uint256.NewInt(base) }

// Cent returns a fresh copy of 0.01.
func Cent() *uint256.Int { return uint256.NewInt(cent) }

// Zero returns a fresh zero value.
func Zero() *uint256.Int { return new(uint256.Int) }

// Units returns n whole units (n * Base).
func Units(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(base))
}

// Frac returns num/den expressed in fixed point, floored.
func Frac(num, den uint64) *uint256.Int {
	z, _ := new(uint256.Int).MulDivOverflow(uint256.NewInt(num), uint256.NewInt(base), uint256.NewInt(den))
	return z
}

// Parse reads a decimal string such as "12.5" into fixed point.
func Parse(s string) (*uint256.Int, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("fixed: invalid number %q", s)
	}
	if r.Sign() < 0 {
		return nil, fmt.Errorf("fixed: negative number %q", s)
	}
	r.Mul(r, new(big.Rat).SetInt64(int64(base)))
	q := new(big.Int).Quo(r.Num(), r.Denom())
	z, overflow := uint256.FromBig(q)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// Format renders a fixed-point value as a decimal string.
func Format(x *uint256.Int) string {
	if x == nil {
		return "0"
	}
	r := new(big.Rat).SetFrac(x.ToBig(), new(big.Int).SetUint64(base))
	return r.FloatString(Decimals)
}

// Add returns x + y.
func Add(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// Sub returns x - y.
func Sub(x, y *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(x, y)
	if underflow {
		return nil, ErrUnderflow
	}
	return z, nil
}

// Mul returns x * y / Base, rounded down.
func Mul(x, y *uint256.Int) (*uint256.Int, error) {
	return MulDiv(x, y, uint256.NewInt(base))
}

// MulCeil returns x * y / Base, rounded up.
func MulCeil(x, y *uint256.Int) (*uint256.Int, error) {
	return MulDivCeil(x, y, uint256.NewInt(base))
}

// Div returns x * Base / y, rounded down.
func Div(x, y *uint256.Int) (*uint256.Int, error) {
	return MulDiv(x, uint256.NewInt(base), y)
}

// DivCeil returns x * Base / y, rounded up.
func DivCeil(x, y *uint256.Int) (*uint256.Int, error) {
	return MulDivCeil(x, uint256.NewInt(base), y)
}

// MulDiv returns x * y / d with a 512-bit intermediate, rounded down.
func MulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// MulDivCeil returns x * y / d with a 512-bit intermediate, rounded up.
func MulDivCeil(x, y, d *uint256.Int) (*uint256.Int, error) {
	z, err := MulDiv(x, y, d)
	if err != nil {
		return nil, err
	}
	if new(uint256.Int).MulMod(x, y, d).IsZero() {
		return z, nil
	}
	return Add(z, uint256.NewInt(1))
}

// Min returns the smaller of x and y.
func Min(x, y *uint256.Int) *uint256.Int {
	if x.Lt(y) {
		return x
	}
	return y
}

// AbsDiff returns |x - y|.
func AbsDiff(x, y *uint256.Int) *uint256.Int {
	if x.Lt(y) {
		return new(uint256.Int).Sub(y, x)
	}
	return new(uint256.Int).Sub(x, y)
}
