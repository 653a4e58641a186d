package aggregate

import (
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"

	"neoswaps/internal/fixed"
	"neoswaps/internal/model"
)

// eventAmounts picks the amount fields shared by the engine events.
type eventAmounts struct {
	AmountIn          string `json:"amount_in"`
	AmountBuy         string `json:"amount_buy"`
	AmountKeep        string `json:"amount_keep"`
	AmountOut         string `json:"amount_out"`
	Amount            string `json:"amount"`
	SwapFeeAmount     string `json:"swap_fee_amount"`
	ExternalFeeAmount string `json:"external_fee_amount"`
	PoolSharesAmount  string `json:"pool_shares_amount"`
}

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	PoolID        model.PoolID
	WindowStart   uint64
	WindowEnd     uint64
	TradeCount    uint64
	JoinCount     uint64
	ExitCount     uint64
	VolumeIn      *uint256.Int
	VolumeOut     *uint256.Int
	SwapFees      *uint256.Int
	ExternalFees  *uint256.Int
	FeesWithdrawn *uint256.Int
	LastTS        uint64
}

func NewAccumulator(pool model.PoolID, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		PoolID:        pool,
		WindowStart:   windowStart,
		WindowEnd:     windowEnd,
		VolumeIn:      new(uint256.Int),
		VolumeOut:     new(uint256.Int),
		SwapFees:      new(uint256.Int),
		ExternalFees:  new(uint256.Int),
		FeesWithdrawn: new(uint256.Int),
	}
}

func decodeAmounts(record model.EventRecord) (eventAmounts, error) {
	var amounts eventAmounts
	if err := json.Unmarshal(record.Decoded, &amounts); err != nil {
		return eventAmounts{}, fmt.Errorf("decode %s: %w", record.EventName, err)
	}
	return amounts, nil
}

// AddEvent folds one event of the accumulator's pool into the window.
func (a *Accumulator) AddEvent(record model.EventRecord, amounts eventAmounts) error {
	if record.Timestamp >= a.LastTS {
		a.LastTS = record.Timestamp
	}

	switch record.EventName {
	case model.EventBuyExecuted, model.EventSellExecuted, model.EventComboBuyExecuted:
		return a.applyTrade(amounts.AmountIn, amounts)
	case model.EventComboSellExecuted:
		return a.applyTrade(amounts.AmountBuy, amounts)
	case model.EventJoinExecuted:
		a.JoinCount++
	case model.EventExitExecuted:
		a.ExitCount++
	case model.EventFeesWithdrawn:
		return addAmount(a.FeesWithdrawn, amounts.Amount)
	}
	return nil
}

func (a *Accumulator) applyTrade(in string, amounts eventAmounts) error {
	if err := addAmount(a.VolumeIn, in); err != nil {
		return err
	}
	if err := addAmount(a.VolumeOut, amounts.AmountOut); err != nil {
		return err
	}
	if err := addAmount(a.SwapFees, amounts.SwapFeeAmount); err != nil {
		return err
	}
	if err := addAmount(a.ExternalFees, amounts.ExternalFeeAmount); err != nil {
		return err
	}
	a.TradeCount++
	return nil
}

func addAmount(target *uint256.Int, value string) error {
	if value == "" {
		return nil
	}
	parsed, err := fixed.Parse(value)
	if err != nil {
		return err
	}
	sum, err := fixed.Add(target, parsed)
	if err != nil {
		return err
	}
	target.Set(sum)
	return nil
}
