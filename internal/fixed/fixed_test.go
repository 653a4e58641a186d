package fixed

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want string
	}{
		{"1", "1.0000000000"},
		{"0.01", "0.0100000000"},
		{"12.5", "12.5000000000"},
		{"0.00000000009", "0.0000000000"},
	} {
		v, err := Parse(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, Format(v), tc.in)
	}

	_, err := Parse("-1")
	assert.Error(t, err)
	_, err = Parse("abc")
	assert.Error(t, err)
	assert.Equal(t, "0", Format(nil))
}

func TestCheckedArithmetic(t *testing.T) {
	top := new(uint256.Int).SetAllOne()

	_, err := Add(top, uint256.NewInt(1))
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = Sub(uint256.NewInt(1), uint256.NewInt(2))
	assert.ErrorIs(t, err, ErrUnderflow)

	_, err = Div(Base(), Zero())
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = Mul(top, Units(2))
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestRounding(t *testing.T) {
	third, err := Div(Base(), Units(3))
	require.NoError(t, err)
	assert.Equal(t, uint64(3_333_333_333), third.Uint64())

	up, err := DivCeil(Base(), Units(3))
	require.NoError(t, err)
	assert.Equal(t, uint64(3_333_333_334), up.Uint64())

	exact, err := MulCeil(Units(2), Frac(1, 2))
	require.NoError(t, err)
	assert.True(t, exact.Eq(Base()))

	assert.Equal(t, Cent().Uint64(), Frac(1, 100).Uint64())
	assert.True(t, AbsDiff(Units(1), Units(3)).Eq(Units(2)))
	assert.True(t, Min(Units(4), Units(3)).Eq(Units(3)))
}

func TestExpLn(t *testing.T) {
	half := Float(Frac(1, 2))
	ln, err := Ln(half)
	require.NoError(t, err)

	back, err := FromFloat(Exp(ln))
	require.NoError(t, err)
	assert.InDelta(t, Frac(1, 2).Uint64(), back.Uint64(), 1)

	_, err = Ln(NewFloat(0))
	assert.ErrorIs(t, err, ErrNegative)

	_, err = FromFloat(big.NewFloat(-1))
	assert.ErrorIs(t, err, ErrNegative)
}
