package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"neoswaps/internal/model"
)

var (
	collectionPrefix = []byte("neoswaps/collection")
	positionPrefix   = []byte("neoswaps/position")
)

// CollectionID derives the collection reached from parent by conditioning on
// outcome index of market. The zero hash is the root collection.
func CollectionID(parent model.CollectionID, market model.MarketID, index uint16) model.CollectionID {
	var buf [10]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(market))
	binary.BigEndian.PutUint16(buf[8:], index)
	return common.BytesToHash(crypto.Keccak256(collectionPrefix, parent.Bytes(), buf[:]))
}

// PositionID derives the token of collection backed by collateral.
func PositionID(collateral model.Asset, collection model.CollectionID) common.Hash {
	return common.BytesToHash(crypto.Keccak256(positionPrefix, collateral.Bytes(), collection.Bytes()))
}

// Positions implements CombinatorialTokens on top of a Ledger.
type Positions struct {
	ledger  Ledger
	markets MarketInfo
}

var _ CombinatorialTokens = (*Positions)(nil)

func NewPositions(ledger Ledger, markets MarketInfo) *Positions {
	return &Positions{ledger: ledger, markets: markets}
}

func (p *Positions) SplitPosition(who model.AccountID, parent model.CollectionID, collateral model.Asset, id model.MarketID, amount *uint256.Int) ([]model.CollectionID, []model.Asset, error) {
	if amount.IsZero() {
		return nil, nil, ErrZeroAmount
	}
	market, err := p.markets.Market(id)
	if err != nil {
		return nil, nil, err
	}
	if market.Status != model.MarketActive {
		return nil, nil, fmt.Errorf("%w: %d is %s", ErrMarketNotActive, id, market.Status)
	}
	if market.OutcomeCount < 2 {
		return nil, nil, fmt.Errorf("%w: market %d has %d outcomes", ErrInvalidOutcome, id, market.OutcomeCount)
	}

	source := collateral
	if parent != (model.CollectionID{}) {
		source = model.CombinatorialToken(PositionID(collateral, parent))
	}
	if err := p.ledger.Withdraw(source, who, amount); err != nil {
		return nil, nil, fmt.Errorf("split position: %w", err)
	}
	collections := make([]model.CollectionID, market.OutcomeCount)
	assets := make([]model.Asset, market.OutcomeCount)
	for i := range assets {
		collections[i] = CollectionID(parent, id, uint16(i))
		assets[i] = model.CombinatorialToken(PositionID(collateral, collections[i]))
		if err := p.ledger.Deposit(assets[i], who, amount); err != nil {
			return nil, nil, fmt.Errorf("split position: %w", err)
		}
	}
	return collections, assets, nil
}

func (p *Positions) SplitPositionUnsafe(who model.AccountID, collateral model.Asset, assets []model.Asset, amount *uint256.Int) error {
	if err := p.ledger.Withdraw(collateral, who, amount); err != nil {
		return fmt.Errorf("split position: %w", err)
	}
	for _, asset := range assets {
		if err := p.ledger.Deposit(asset, who, amount); err != nil {
			return fmt.Errorf("split position: %w", err)
		}
	}
	return nil
}

func (p *Positions) MergePositionUnsafe(who model.AccountID, collateral model.Asset, assets []model.Asset, amount *uint256.Int) error {
	for _, asset := range assets {
		if err := p.ledger.Withdraw(asset, who, amount); err != nil {
			return fmt.Errorf("merge position: %w", err)
		}
	}
	if err := p.ledger.Deposit(collateral, who, amount); err != nil {
		return fmt.Errorf("merge position: %w", err)
	}
	return nil
}
