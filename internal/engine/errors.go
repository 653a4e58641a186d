package engine

import (
	"errors"

	"neoswaps/internal/fees"
	"neoswaps/internal/fixed"
	"neoswaps/internal/ledger"
	"neoswaps/internal/liquidity"
	"neoswaps/internal/pool"
	"neoswaps/internal/pricing"
)

// Validation errors are raised before anything is mutated.
var (
	ErrZeroAmount          = errors.New("amount is zero")
	ErrIncorrectVecLen     = errors.New("incorrect vector length")
	ErrIncorrectAssetCount = errors.New("incorrect asset count")
	ErrInvalidPartition    = errors.New("invalid partition")
	ErrInvalidAmountKeep   = errors.New("invalid keep amount")
	ErrSwapFeeBelowMin     = errors.New("swap fee below minimum")
	ErrSwapFeeAboveMax     = errors.New("swap fee above maximum")
	ErrMaxSplitsExceeded   = errors.New("maximum number of splits exceeded")
	ErrCollateralMismatch  = errors.New("markets use different collateral")
	ErrDuplicateMarket     = errors.New("market listed twice")

	ErrAssetNotFound     = pool.ErrAssetNotFound
	ErrInvalidSpotPrices = pricing.ErrInvalidSpotPrices
	ErrSpotPriceBelowMin = pricing.ErrSpotPriceBelowMin
	ErrSpotPriceAboveMax = pricing.ErrSpotPriceAboveMax
)

// Numerical errors are soft: the same call may succeed with other amounts.
var (
	ErrAmountOutBelowMin = errors.New("amount out below minimum")
	ErrAmountInAboveMax  = errors.New("amount in above maximum")

	ErrMaxAmountExceeded       = pricing.ErrMaxAmountExceeded
	ErrMinAmountNotMet         = pricing.ErrMinAmountNotMet
	ErrSpotPriceTooHigh        = pricing.ErrSpotPriceTooHigh
	ErrSpotPriceTooLow         = pricing.ErrSpotPriceTooLow
	ErrSpotPriceSlippedTooHigh = pricing.ErrSpotPriceSlippedTooHigh
	ErrSpotPriceSlippedTooLow  = pricing.ErrSpotPriceSlippedTooLow
)

// State errors depend on pool or market state.
var (
	ErrMarketNotActive                       = errors.New("market not active")
	ErrPoolNotFound                          = errors.New("pool not found")
	ErrDuplicatePool                         = errors.New("pool already exists for market")
	ErrInvalidPoolType                       = errors.New("operation not supported for pool type")
	ErrLiquidityTooLow                       = errors.New("liquidity too low")
	ErrMinRelativeLiquidityThresholdViolated = errors.New("relative liquidity position below threshold")
	ErrNotAllowed                            = errors.New("account is not a liquidity provider of the pool")

	ErrUnwithdrawnFees   = liquidity.ErrUnwithdrawnFees
	ErrTreeFull          = liquidity.ErrTreeFull
	ErrInsufficientStake = liquidity.ErrInsufficientStake
)

// ErrUnexpected marks a broken invariant. It is never a caller error.
var ErrUnexpected = errors.New("unexpected engine state")

// Class groups errors by how a caller should react to them.
type Class uint8

const (
	ClassInternal Class = iota
	ClassValidation
	ClassNumerical
	ClassState
	ClassInvariant
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassNumerical:
		return "numerical"
	case ClassState:
		return "state"
	case ClassInvariant:
		return "invariant"
	default:
		return "internal"
	}
}

var classes = []struct {
	class Class
	errs  []error
}{
	{ClassInvariant, []error{
		ErrUnexpected, pool.ErrPriceSumDeviation, pool.ErrReserveUnderflow, fees.ErrFeesExceedAmount,
		liquidity.ErrCorrupted, fixed.ErrOverflow, fixed.ErrUnderflow, fixed.ErrDivisionByZero,
		pricing.ErrZeroLiquidity,
	}},
	{ClassValidation, []error{
		ErrZeroAmount, ErrIncorrectVecLen, ErrIncorrectAssetCount, ErrInvalidPartition, ErrInvalidAmountKeep,
		ErrSwapFeeBelowMin, ErrSwapFeeAboveMax, ErrMaxSplitsExceeded, ErrCollateralMismatch, ErrDuplicateMarket,
		ErrAssetNotFound, ErrInvalidSpotPrices, ErrSpotPriceBelowMin, ErrSpotPriceAboveMax,
		liquidity.ErrZeroAmount, ledger.ErrZeroAmount, ledger.ErrInvalidOutcome,
	}},
	{ClassNumerical, []error{
		ErrAmountOutBelowMin, ErrAmountInAboveMax, ErrMaxAmountExceeded, ErrMinAmountNotMet,
		ErrSpotPriceTooHigh, ErrSpotPriceTooLow, ErrSpotPriceSlippedTooHigh, ErrSpotPriceSlippedTooLow,
	}},
	{ClassState, []error{
		ErrMarketNotActive, ErrPoolNotFound, ErrDuplicatePool, ErrInvalidPoolType, ErrLiquidityTooLow,
		ErrMinRelativeLiquidityThresholdViolated, ErrNotAllowed, ErrUnwithdrawnFees, ErrTreeFull,
		ErrInsufficientStake, liquidity.ErrNotFound, liquidity.ErrNoStake,
		ledger.ErrInsufficientBalance, ledger.ErrMarketNotFound, ledger.ErrMarketNotActive,
	}},
}

// Classify reports the class of err. Invariant violations take precedence
// over any other class found in the chain.
func Classify(err error) Class {
	for _, c := range classes {
		for _, target := range c.errs {
			if errors.Is(err, target) {
				return c.class
			}
		}
	}
	return ClassInternal
}

// IsSoft reports whether err is a numerical-limit failure a router may retry
// with adjusted amounts.
func IsSoft(err error) bool {
	return Classify(err) == ClassNumerical
}
