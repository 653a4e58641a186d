package model

import (
	"github.com/ethereum/go-ethereum/common"
)

// AccountID identifies a trader, LP or pool account.
type AccountID = common.Address

// MarketID identifies a prediction market.
type MarketID uint64

// PoolID identifies a pool. Ids are allocated sequentially and never reused.
type PoolID uint64

// CollectionID identifies a combinatorial collection (a conjunction of
// market outcomes). The zero hash is the root collection.
type CollectionID = common.Hash
