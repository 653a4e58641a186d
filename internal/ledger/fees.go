package ledger

import (
	"fmt"

	"github.com/holiman/uint256"

	"neoswaps/internal/fixed"
	"neoswaps/internal/model"
)

// CreatorFees pays a per-market fraction of every gross amount to the market
// creator. Markets without a configured rate pay nothing.
type CreatorFees struct {
	ledger  Ledger
	markets MarketInfo
	rates   map[model.MarketID]*uint256.Int
}

var _ ExternalFees = (*CreatorFees)(nil)

func NewCreatorFees(ledger Ledger, markets MarketInfo) *CreatorFees {
	return &CreatorFees{
		ledger:  ledger,
		markets: markets,
		rates:   make(map[model.MarketID]*uint256.Int),
	}
}

// SetRate configures the fee fraction of market.
func (c *CreatorFees) SetRate(market model.MarketID, rate *uint256.Int) {
	c.rates[market] = new(uint256.Int).Set(rate)
}

func (c *CreatorFees) Distribute(id model.MarketID, asset model.Asset, payer model.AccountID, amount *uint256.Int) (*uint256.Int, error) {
	rate, ok := c.rates[id]
	if !ok || rate.IsZero() {
		return new(uint256.Int), nil
	}
	market, err := c.markets.Market(id)
	if err != nil {
		return nil, err
	}
	fee, err := fixed.Mul(amount, rate)
	if err != nil {
		return nil, err
	}
	if fee.IsZero() {
		return fee, nil
	}
	if err := c.ledger.Transfer(asset, payer, market.Creator, fee); err != nil {
		return nil, fmt.Errorf("creator fee: %w", err)
	}
	return fee, nil
}
