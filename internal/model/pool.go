package model

// PoolKind distinguishes single-market pools from cross-product pools.
type PoolKind uint8

const (
	PoolStandard PoolKind = iota
	PoolCombinatorial
)

func (k PoolKind) String() string {
	if k == PoolCombinatorial {
		return "combinatorial"
	}
	return "standard"
}

// PoolType tags a pool with the markets it trades.
type PoolType struct {
	Kind    PoolKind   `json:"kind"`
	Markets []MarketID `json:"markets"`
}

// Standard returns the pool type of a single-market pool.
func Standard(market MarketID) PoolType {
	return PoolType{Kind: PoolStandard, Markets: []MarketID{market}}
}

// Combinatorial returns the pool type of a cross-product pool.
func Combinatorial(markets ...MarketID) PoolType {
	return PoolType{Kind: PoolCombinatorial, Markets: append([]MarketID(nil), markets...)}
}

// Market returns the market of a standard pool.
func (t PoolType) Market() (MarketID, bool) {
	if t.Kind != PoolStandard || len(t.Markets) != 1 {
		return 0, false
	}
	return t.Markets[0], true
}
