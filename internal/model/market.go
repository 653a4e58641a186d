package model

// MarketStatus is the lifecycle state of a market.
type MarketStatus uint8

const (
	MarketProposed MarketStatus = iota
	MarketActive
	MarketClosed
	MarketReported
	MarketResolved
)

func (s MarketStatus) String() string {
	switch s {
	case MarketProposed:
		return "proposed"
	case MarketActive:
		return "active"
	case MarketClosed:
		return "closed"
	case MarketReported:
		return "reported"
	case MarketResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Market is the market metadata consumed by the engine.
type Market struct {
	ID           MarketID     `json:"id"`
	OutcomeCount uint16       `json:"outcome_count"`
	Status       MarketStatus `json:"status"`
	BaseAsset    Asset        `json:"base_asset"`
	Creator      AccountID    `json:"creator"`
}
