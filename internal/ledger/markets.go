package ledger

import (
	"fmt"

	"github.com/holiman/uint256"

	"neoswaps/internal/model"
)

// Markets is an in-memory MarketInfo registry.
type Markets struct {
	markets map[model.MarketID]model.Market
}

var _ MarketInfo = (*Markets)(nil)

func NewMarkets(markets ...model.Market) *Markets {
	m := &Markets{markets: make(map[model.MarketID]model.Market)}
	for _, market := range markets {
		m.Add(market)
	}
	return m
}

// Add registers or replaces a market.
func (m *Markets) Add(market model.Market) {
	m.markets[market.ID] = market
}

// SetStatus moves a market to status.
func (m *Markets) SetStatus(id model.MarketID, status model.MarketStatus) error {
	market, ok := m.markets[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrMarketNotFound, id)
	}
	market.Status = status
	m.markets[id] = market
	return nil
}

func (m *Markets) Market(id model.MarketID) (model.Market, error) {
	market, ok := m.markets[id]
	if !ok {
		return model.Market{}, fmt.Errorf("%w: %d", ErrMarketNotFound, id)
	}
	return market, nil
}

// List returns all registered markets.
func (m *Markets) List() []model.Market {
	out := make([]model.Market, 0, len(m.markets))
	for _, market := range m.markets {
		out = append(out, market)
	}
	return out
}

// OutcomeAssets lists the categorical outcome assets of a market.
func OutcomeAssets(market model.Market) []model.Asset {
	out := make([]model.Asset, market.OutcomeCount)
	for i := range out {
		out[i] = model.Outcome(market.ID, uint16(i))
	}
	return out
}

// CompleteSetOps implements CompleteSets on top of a Ledger.
type CompleteSetOps struct {
	ledger  Ledger
	markets MarketInfo
}

var _ CompleteSets = (*CompleteSetOps)(nil)

func NewCompleteSetOps(ledger Ledger, markets MarketInfo) *CompleteSetOps {
	return &CompleteSetOps{ledger: ledger, markets: markets}
}

func (c *CompleteSetOps) BuyCompleteSet(who model.AccountID, id model.MarketID, amount *uint256.Int) error {
	market, err := c.activeMarket(id, amount)
	if err != nil {
		return err
	}
	if err := c.ledger.Withdraw(market.BaseAsset, who, amount); err != nil {
		return fmt.Errorf("buy complete set: %w", err)
	}
	for _, asset := range OutcomeAssets(market) {
		if err := c.ledger.Deposit(asset, who, amount); err != nil {
			return fmt.Errorf("buy complete set: %w", err)
		}
	}
	return nil
}

func (c *CompleteSetOps) SellCompleteSet(who model.AccountID, id model.MarketID, amount *uint256.Int) error {
	market, err := c.activeMarket(id, amount)
	if err != nil {
		return err
	}
	for _, asset := range OutcomeAssets(market) {
		if err := c.ledger.Withdraw(asset, who, amount); err != nil {
			return fmt.Errorf("sell complete set: %w", err)
		}
	}
	if err := c.ledger.Deposit(market.BaseAsset, who, amount); err != nil {
		return fmt.Errorf("sell complete set: %w", err)
	}
	return nil
}

func (c *CompleteSetOps) activeMarket(id model.MarketID, amount *uint256.Int) (model.Market, error) {
	if amount.IsZero() {
		return model.Market{}, ErrZeroAmount
	}
	market, err := c.markets.Market(id)
	if err != nil {
		return model.Market{}, err
	}
	if market.Status != model.MarketActive {
		return model.Market{}, fmt.Errorf("%w: %d is %s", ErrMarketNotActive, id, market.Status)
	}
	return market, nil
}
