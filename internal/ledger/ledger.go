// Package ledger declares the collaborators the engine settles against and
// ships journaled in-memory implementations of them.
package ledger

import (
	"errors"

	"github.com/holiman/uint256"

	"neoswaps/internal/model"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrMarketNotFound      = errors.New("market not found")
	ErrMarketNotActive     = errors.New("market not active")
	ErrInvalidOutcome      = errors.New("invalid outcome")
	ErrZeroAmount          = errors.New("amount is zero")
)

// Journal undoes ledger writes. Snapshot ids are only valid until the next
// Finalise.
type Journal interface {
	Snapshot() int
	RevertToSnapshot(id int)
	Finalise()
}

// Ledger moves fungible assets between accounts. Every write must be
// journaled so a failed call can be reverted.
type Ledger interface {
	Journal

	Transfer(asset model.Asset, from, to model.AccountID, amount *uint256.Int) error
	Deposit(asset model.Asset, who model.AccountID, amount *uint256.Int) error
	Withdraw(asset model.Asset, who model.AccountID, amount *uint256.Int) error
	FreeBalance(asset model.Asset, who model.AccountID) *uint256.Int
	MinimumBalance(asset model.Asset) *uint256.Int
	EnsureCanWithdraw(asset model.Asset, who model.AccountID, amount *uint256.Int) error
}

// MarketInfo looks up market metadata.
type MarketInfo interface {
	Market(id model.MarketID) (model.Market, error)
}

// CompleteSets mints and burns full outcome sets of a single market against
// its base asset.
type CompleteSets interface {
	BuyCompleteSet(who model.AccountID, market model.MarketID, amount *uint256.Int) error
	SellCompleteSet(who model.AccountID, market model.MarketID, amount *uint256.Int) error
}

// CombinatorialTokens splits collateral into position tokens over the
// outcomes of one or more markets and merges them back.
type CombinatorialTokens interface {
	// SplitPosition splits amount of the position held in parent (the
	// collateral itself for the root collection) into one position per
	// outcome of market and returns the collections and assets created.
	SplitPosition(who model.AccountID, parent model.CollectionID, collateral model.Asset, market model.MarketID, amount *uint256.Int) ([]model.CollectionID, []model.Asset, error)
	// SplitPositionUnsafe turns amount of collateral into amount of every
	// asset without validating that assets form a partition.
	SplitPositionUnsafe(who model.AccountID, collateral model.Asset, assets []model.Asset, amount *uint256.Int) error
	// MergePositionUnsafe is the inverse of SplitPositionUnsafe.
	MergePositionUnsafe(who model.AccountID, collateral model.Asset, assets []model.Asset, amount *uint256.Int) error
}

// ExternalFees charges the non-LP fee of a market against a gross amount and
// returns what it took.
type ExternalFees interface {
	Distribute(market model.MarketID, asset model.Asset, payer model.AccountID, amount *uint256.Int) (*uint256.Int, error)
}
