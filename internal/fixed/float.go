package fixed

import (
	"errors"
	"math/big"

	"github.com/ALTree/bigfloat"
	"github.com/holiman/uint256"
)

// Prec is the mantissa precision used for transcendental evaluation.
const Prec = 256

var ErrNegative = errors.New("fixed: negative result")

// Float converts a fixed-point value to its real value (x / Base).
func Float(x *uint256.Int) *big.Float {
	f := new(big.Float).SetPrec(Prec).SetInt(x.ToBig())
	return f.Quo(f, baseFloat())
}

// NewFloat returns a Prec-precision float.
func NewFloat(v float64) *big.Float {
	return new(big.Float).SetPrec(Prec).SetFloat64(v)
}

// FromFloat converts a real value back to fixed point, rounded down.
func FromFloat(f *big.Float) (*uint256.Int, error) {
	if f.Sign() < 0 {
		return nil, ErrNegative
	}
	if f.IsInf() {
		return nil, ErrOverflow
	}
	scaled := new(big.Float).SetPrec(Prec).Mul(f, baseFloat())
	i, _ := scaled.Int(nil)
	z, overflow := uint256.FromBig(i)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// Exp returns e^x.
func Exp(x *big.Float) *big.Float {
	return bigfloat.Exp(withPrec(x))
}

// Ln returns the natural logarithm of x. x must be strictly positive.
func Ln(x *big.Float) (*big.Float, error) {
	if x.Sign() <= 0 {
		return nil, ErrNegative
	}
	return bigfloat.Log(withPrec(x)), nil
}

func withPrec(x *big.Float) *big.Float {
	if x.Prec() == Prec {
		return x
	}
	return new(big.Float).SetPrec(Prec).Set(x)
}

func baseFloat() *big.Float {
	return new(big.Float).SetPrec(Prec).SetUint64(base)
}
