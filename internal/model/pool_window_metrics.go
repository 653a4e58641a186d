package model

import "time"

// PoolWindowMetrics stores aggregated trading metrics for a pool window.
// Amounts are fixed-point decimal strings in collateral units.
type PoolWindowMetrics struct {
	PoolID         PoolID    `json:"pool_id"`
	WindowSizeSecs int64     `json:"window_size_seconds"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	TradeCount     uint64    `json:"trade_count"`
	JoinCount      uint64    `json:"join_count"`
	ExitCount      uint64    `json:"exit_count"`
	VolumeIn       string    `json:"volume_in"`
	VolumeOut      string    `json:"volume_out"`
	SwapFees       string    `json:"swap_fees"`
	ExternalFees   string    `json:"external_fees"`
	FeesWithdrawn  string    `json:"fees_withdrawn"`
	FeeYield       *string   `json:"fee_yield,omitempty"`
}
