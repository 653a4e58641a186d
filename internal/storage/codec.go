package storage

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"neoswaps/internal/liquidity"
	"neoswaps/internal/model"
	"neoswaps/internal/pool"
)

type nodeRecord struct {
	Account         common.Address
	Occupied        bool
	Stake           *big.Int
	Fees            *big.Int
	DescendantStake *big.Int
	LazyFees        *big.Int
}

type poolRecord struct {
	ID         uint64
	Kind       uint8
	Markets    []uint64
	Account    common.Address
	Collateral string
	Assets     []string
	Reserves   []*big.Int
	Liquidity  *big.Int
	SwapFee    *big.Int
	TreeDepth  uint32
	Nodes      []nodeRecord
	Abandoned  []uint32
}

// EncodePool serialises a pool with RLP.
func EncodePool(p *pool.Pool) ([]byte, error) {
	rec := poolRecord{
		ID:         uint64(p.ID),
		Kind:       uint8(p.Type.Kind),
		Markets:    make([]uint64, len(p.Type.Markets)),
		Account:    p.Account,
		Collateral: p.Collateral.String(),
		Assets:     make([]string, len(p.Assets)),
		Reserves:   make([]*big.Int, len(p.Reserves)),
		Liquidity:  p.Liquidity.ToBig(),
		SwapFee:    p.SwapFee.ToBig(),
		TreeDepth:  p.Tree.MaxDepth(),
		Abandoned:  p.Tree.Abandoned(),
	}
	for i, m := range p.Type.Markets {
		rec.Markets[i] = uint64(m)
	}
	for i, a := range p.Assets {
		rec.Assets[i] = a.String()
	}
	for i, r := range p.Reserves {
		rec.Reserves[i] = r.ToBig()
	}
	for _, n := range p.Tree.Nodes() {
		rec.Nodes = append(rec.Nodes, nodeRecord{
			Account:         n.Account,
			Occupied:        n.Occupied,
			Stake:           n.Stake.ToBig(),
			Fees:            n.Fees.ToBig(),
			DescendantStake: n.DescendantStake.ToBig(),
			LazyFees:        n.LazyFees.ToBig(),
		})
	}
	return rlp.EncodeToBytes(&rec)
}

// DecodePool is the inverse of EncodePool.
func DecodePool(data []byte) (*pool.Pool, error) {
	var rec poolRecord
	if err := rlp.DecodeBytes(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	if len(rec.Assets) != len(rec.Reserves) {
		return nil, fmt.Errorf("%w: %d assets, %d reserves", ErrCorrupted, len(rec.Assets), len(rec.Reserves))
	}

	p := &pool.Pool{
		ID:      model.PoolID(rec.ID),
		Type:    model.PoolType{Kind: model.PoolKind(rec.Kind), Markets: make([]model.MarketID, len(rec.Markets))},
		Account: rec.Account,
		Assets:  make([]model.Asset, len(rec.Assets)),
	}
	for i, m := range rec.Markets {
		p.Type.Markets[i] = model.MarketID(m)
	}
	var err error
	if p.Collateral, err = model.ParseAsset(rec.Collateral); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	for i, s := range rec.Assets {
		if p.Assets[i], err = model.ParseAsset(s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
	}
	if p.Reserves, err = fromBigs(rec.Reserves); err != nil {
		return nil, err
	}
	if p.Liquidity, err = fromBig(rec.Liquidity); err != nil {
		return nil, err
	}
	if p.SwapFee, err = fromBig(rec.SwapFee); err != nil {
		return nil, err
	}

	nodes := make([]liquidity.Node, len(rec.Nodes))
	for i, n := range rec.Nodes {
		nodes[i].Account = n.Account
		nodes[i].Occupied = n.Occupied
		for _, f := range []struct {
			dst *uint256.Int
			src *big.Int
		}{
			{&nodes[i].Stake, n.Stake},
			{&nodes[i].Fees, n.Fees},
			{&nodes[i].DescendantStake, n.DescendantStake},
			{&nodes[i].LazyFees, n.LazyFees},
		} {
			v, err := fromBig(f.src)
			if err != nil {
				return nil, err
			}
			f.dst.Set(v)
		}
	}
	if p.Tree, err = liquidity.Restore(rec.TreeDepth, nodes, rec.Abandoned); err != nil {
		return nil, err
	}
	return p, nil
}

func fromBig(b *big.Int) (*uint256.Int, error) {
	if b == nil {
		return new(uint256.Int), nil
	}
	v, overflow := uint256.FromBig(b)
	if overflow || b.Sign() < 0 {
		return nil, fmt.Errorf("%w: amount out of range", ErrCorrupted)
	}
	return v, nil
}

func fromBigs(bs []*big.Int) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, len(bs))
	for i, b := range bs {
		v, err := fromBig(b)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
