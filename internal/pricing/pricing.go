// Package pricing holds the closed-form LMSR formulas used by neo-swaps pools
// together with the numerical guards that keep their exp/ln terms in range.
//
// Prices are exp(-reserve/liquidity). All results are floored to fixed point,
// which always leaves the rounding dust with the pool.
package pricing

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"neoswaps/internal/fixed"
)

const (
	MinSpotPrice          = fixed.Hundredth / 2
	MaxSpotPrice          = fixed.One - fixed.Hundredth/2
	ComboMinSpotPrice     = fixed.Hundredth / 100
	ComboMaxSpotPrice     = fixed.One - fixed.Hundredth/100
	SpotPriceSumTolerance = fixed.One / 100_000

	// ExpNumericalLimit bounds amount/liquidity for every exp term.
	ExpNumericalLimit = 10
)

var (
	ErrZeroLiquidity           = errors.New("liquidity parameter is zero")
	ErrMaxAmountExceeded       = errors.New("amount exceeds numerical limit")
	ErrMinAmountNotMet         = errors.New("amount below numerical minimum")
	ErrSpotPriceTooHigh        = errors.New("spot price too high")
	ErrSpotPriceTooLow         = errors.New("spot price too low")
	ErrSpotPriceSlippedTooHigh = errors.New("spot price slipped too high")
	ErrSpotPriceSlippedTooLow  = errors.New("spot price slipped too low")
)

// MaxAmount returns the largest amount a single trade may move for liquidity b.
func MaxAmount(liquidity *uint256.Int) *uint256.Int {
	return new(uint256.Int).Mul(liquidity, uint256.NewInt(ExpNumericalLimit))
}

// CheckAmount fails with ErrMaxAmountExceeded when amount/liquidity exceeds
// ExpNumericalLimit.
func CheckAmount(amount, liquidity *uint256.Int) error {
	if liquidity.IsZero() {
		return ErrZeroLiquidity
	}
	if amount.Gt(MaxAmount(liquidity)) {
		return ErrMaxAmountExceeded
	}
	return nil
}

// SpotPrice returns exp(-reserve/liquidity) in fixed point.
func SpotPrice(reserve, liquidity *uint256.Int) (*uint256.Int, error) {
	p, err := priceFloat(reserve, liquidity)
	if err != nil {
		return nil, err
	}
	return fixed.FromFloat(p)
}

// PriceMass returns the sum of exp(-r/liquidity) over reserves as a real number.
func PriceMass(reserves []*uint256.Int, liquidity *uint256.Int) (*big.Float, error) {
	sum := fixed.NewFloat(0)
	for _, r := range reserves {
		p, err := priceFloat(r, liquidity)
		if err != nil {
			return nil, err
		}
		sum.Add(sum, p)
	}
	return sum, nil
}

// BuyAmountOut returns the amount of the bought asset paid out when amountIn
// complete sets are minted into a reserve r:
//
//	r + b*ln(exp(x/b) - 1 + exp(-r/b))
//
// The result is never below amountIn.
func BuyAmountOut(amountIn, reserve, liquidity *uint256.Int) (*uint256.Int, error) {
	if err := CheckAmount(amountIn, liquidity); err != nil {
		return nil, err
	}
	b := fixed.Float(liquidity)
	p, err := priceFloat(reserve, liquidity)
	if err != nil {
		return nil, err
	}
	// exp(x/b) - 1 + p
	arg := fixed.Exp(ratio(amountIn, liquidity))
	arg.Sub(arg, fixed.NewFloat(1))
	arg.Add(arg, p)
	ln, err := fixed.Ln(arg)
	if err != nil {
		return nil, ErrMinAmountNotMet
	}
	out := ln.Mul(ln, b)
	out.Add(out, fixed.Float(reserve))
	return fixed.FromFloat(out)
}

// SellAmountOut returns the number of complete sets the pool can burn after
// receiving amountIn of an asset with reserve r:
//
//	-b*ln(exp(-r/b)*exp(-x/b) + 1 - exp(-r/b))
func SellAmountOut(amountIn, reserve, liquidity *uint256.Int) (*uint256.Int, error) {
	if err := CheckAmount(amountIn, liquidity); err != nil {
		return nil, err
	}
	p, err := priceFloat(reserve, liquidity)
	if err != nil {
		return nil, err
	}
	one := fixed.NewFloat(1)
	arg := fixed.Exp(new(big.Float).Neg(ratio(amountIn, liquidity)))
	arg.Mul(arg, p)
	arg.Add(arg, one)
	arg.Sub(arg, p)
	return negLogAmount(arg, liquidity)
}

// ComboBuyAmountOut returns the amount of every buy-set asset paid out when
// amountIn complete sets are minted, given the buy-set reserves:
//
//	b*ln(exp(x/b) - 1 + P_B) - b*ln(P_B)
func ComboBuyAmountOut(amountIn *uint256.Int, buy []*uint256.Int, liquidity *uint256.Int) (*uint256.Int, error) {
	if err := CheckAmount(amountIn, liquidity); err != nil {
		return nil, err
	}
	mass, err := PriceMass(buy, liquidity)
	if err != nil {
		return nil, err
	}
	if mass.Sign() <= 0 {
		return nil, ErrMinAmountNotMet
	}
	arg := fixed.Exp(ratio(amountIn, liquidity))
	arg.Sub(arg, fixed.NewFloat(1))
	arg.Add(arg, mass)
	arg.Quo(arg, mass)
	ln, err := fixed.Ln(arg)
	if err != nil {
		return nil, ErrMinAmountNotMet
	}
	return fixed.FromFloat(ln.Mul(ln, fixed.Float(liquidity)))
}

// ComboSellAmountOut returns the number of complete sets burned when the pool
// receives amountBuy of every buy-set asset and amountKeep of every keep-set
// asset:
//
//	-b*ln(P_B*exp(-a/b) + P_K*exp(-k/b) + P_S)
func ComboSellAmountOut(amountBuy, amountKeep *uint256.Int, buy, keep, sell []*uint256.Int, liquidity *uint256.Int) (*uint256.Int, error) {
	if err := CheckAmount(amountBuy, liquidity); err != nil {
		return nil, err
	}
	if err := CheckAmount(amountKeep, liquidity); err != nil {
		return nil, err
	}
	massBuy, err := PriceMass(buy, liquidity)
	if err != nil {
		return nil, err
	}
	massKeep, err := PriceMass(keep, liquidity)
	if err != nil {
		return nil, err
	}
	massSell, err := PriceMass(sell, liquidity)
	if err != nil {
		return nil, err
	}
	arg := fixed.Exp(new(big.Float).Neg(ratio(amountBuy, liquidity)))
	arg.Mul(arg, massBuy)
	if !amountKeep.IsZero() {
		k := fixed.Exp(new(big.Float).Neg(ratio(amountKeep, liquidity)))
		arg.Add(arg, k.Mul(k, massKeep))
	} else {
		arg.Add(arg, massKeep)
	}
	arg.Add(arg, massSell)
	return negLogAmount(arg, liquidity)
}

func negLogAmount(arg *big.Float, liquidity *uint256.Int) (*uint256.Int, error) {
	ln, err := fixed.Ln(arg)
	if err != nil {
		return nil, ErrMinAmountNotMet
	}
	if ln.Sign() >= 0 {
		return nil, ErrMinAmountNotMet
	}
	out, err := fixed.FromFloat(ln.Mul(ln.Neg(ln), fixed.Float(liquidity)))
	if err != nil {
		return nil, err
	}
	if out.IsZero() {
		return nil, ErrMinAmountNotMet
	}
	return out, nil
}

func priceFloat(reserve, liquidity *uint256.Int) (*big.Float, error) {
	if liquidity.IsZero() {
		return nil, ErrZeroLiquidity
	}
	return fixed.Exp(new(big.Float).Neg(ratio(reserve, liquidity))), nil
}

func ratio(x, y *uint256.Int) *big.Float {
	num := fixed.Float(x)
	return num.Quo(num, fixed.Float(y))
}
