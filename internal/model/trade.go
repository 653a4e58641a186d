package model

import "github.com/holiman/uint256"

// TradeRecord summarises a settled trade. It is returned to the caller and
// mirrored in the emitted event; it is never persisted.
type TradeRecord struct {
	AmountIn          *uint256.Int
	AmountOut         *uint256.Int
	SwapFeeAmount     *uint256.Int
	ExternalFeeAmount *uint256.Int
}
