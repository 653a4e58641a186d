package aggregate

import (
	"math/big"
	"time"

	"github.com/holiman/uint256"
)

const ratioScale = 18

// feeYield annualises the swap fees earned over one window relative to the
// pool shares outstanding at its end.
func feeYield(fees, shares *uint256.Int, windowSeconds uint64) *string {
	if windowSeconds == 0 || fees == nil || fees.IsZero() || shares == nil || shares.IsZero() {
		return nil
	}
	rate := new(big.Rat).SetFrac(fees.ToBig(), shares.ToBig())
	yearSeconds := big.NewRat(int64(365*24*time.Hour/time.Second), 1)
	window := big.NewRat(int64(windowSeconds), 1)
	apr := new(big.Rat).Mul(rate, yearSeconds)
	apr.Quo(apr, window)
	val := apr.FloatString(ratioScale)
	return &val
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}
