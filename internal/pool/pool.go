// Package pool holds the per-pool AMM state and the reserve and price
// helpers the engine mutates it through.
package pool

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"neoswaps/internal/fixed"
	"neoswaps/internal/liquidity"
	"neoswaps/internal/model"
	"neoswaps/internal/pricing"
)

var (
	ErrAssetNotFound     = errors.New("asset not found in pool")
	ErrReserveUnderflow  = errors.New("pool reserve underflow")
	ErrPriceSumDeviation = errors.New("spot prices do not sum to one")
)

var accountPrefix = []byte("neoswaps/pool")

// AccountFor derives the settlement account of a pool.
func AccountFor(id model.PoolID) model.AccountID {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	return common.BytesToAddress(crypto.Keccak256(accountPrefix, buf[:])[:common.AddressLength])
}

// Pool is the state of one neo-swaps pool. Reserves is parallel to Assets.
type Pool struct {
	ID         model.PoolID
	Type       model.PoolType
	Account    model.AccountID
	Collateral model.Asset
	Assets     []model.Asset
	Reserves   []*uint256.Int
	Liquidity  *uint256.Int
	SwapFee    *uint256.Int
	Tree       *liquidity.Tree
}

// IsCombinatorial reports whether the pool trades a cross-product of markets.
func (p *Pool) IsCombinatorial() bool {
	return p.Type.Kind == model.PoolCombinatorial
}

// Band returns the spot price band enforced for the pool's kind.
func (p *Pool) Band() pricing.Band {
	if p.IsCombinatorial() {
		return pricing.ComboBand
	}
	return pricing.StandardBand
}

// IndexOf returns the position of asset in the pool's asset list.
func (p *Pool) IndexOf(asset model.Asset) (int, bool) {
	for i, a := range p.Assets {
		if a == asset {
			return i, true
		}
	}
	return 0, false
}

// Contains reports whether the pool trades asset.
func (p *Pool) Contains(asset model.Asset) bool {
	_, ok := p.IndexOf(asset)
	return ok
}

// Reserve returns a copy of the reserve of asset.
func (p *Pool) Reserve(asset model.Asset) (*uint256.Int, error) {
	i, ok := p.IndexOf(asset)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, asset)
	}
	return new(uint256.Int).Set(p.Reserves[i]), nil
}

// ReservesOf returns copies of the reserves of assets, in order.
func (p *Pool) ReservesOf(assets []model.Asset) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, len(assets))
	for i, a := range assets {
		r, err := p.Reserve(a)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// IncreaseReserve adds amount to the reserve of asset.
func (p *Pool) IncreaseReserve(asset model.Asset, amount *uint256.Int) error {
	i, ok := p.IndexOf(asset)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAssetNotFound, asset)
	}
	sum, err := fixed.Add(p.Reserves[i], amount)
	if err != nil {
		return err
	}
	p.Reserves[i] = sum
	return nil
}

// DecreaseReserve subtracts amount from the reserve of asset.
func (p *Pool) DecreaseReserve(asset model.Asset, amount *uint256.Int) error {
	i, ok := p.IndexOf(asset)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAssetNotFound, asset)
	}
	diff, err := fixed.Sub(p.Reserves[i], amount)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrReserveUnderflow, asset)
	}
	p.Reserves[i] = diff
	return nil
}

// IncreaseReserves adds amount to every reserve.
func (p *Pool) IncreaseReserves(amount *uint256.Int) error {
	for _, a := range p.Assets {
		if err := p.IncreaseReserve(a, amount); err != nil {
			return err
		}
	}
	return nil
}

// DecreaseReserves subtracts amount from every reserve.
func (p *Pool) DecreaseReserves(amount *uint256.Int) error {
	for _, a := range p.Assets {
		if err := p.DecreaseReserve(a, amount); err != nil {
			return err
		}
	}
	return nil
}

// SpotPrice returns the current price of asset.
func (p *Pool) SpotPrice(asset model.Asset) (*uint256.Int, error) {
	r, err := p.Reserve(asset)
	if err != nil {
		return nil, err
	}
	return pricing.SpotPrice(r, p.Liquidity)
}

// SpotPrices returns the price of every asset, in pool order.
func (p *Pool) SpotPrices() ([]*uint256.Int, error) {
	out := make([]*uint256.Int, len(p.Assets))
	for i, r := range p.Reserves {
		price, err := pricing.SpotPrice(r, p.Liquidity)
		if err != nil {
			return nil, err
		}
		out[i] = price
	}
	return out, nil
}

// CheckPriceSum verifies that the spot prices sum to one within
// pricing.SpotPriceSumTolerance.
func (p *Pool) CheckPriceSum() error {
	prices, err := p.SpotPrices()
	if err != nil {
		return err
	}
	sum := new(uint256.Int)
	for _, price := range prices {
		sum.Add(sum, price)
	}
	if fixed.AbsDiff(sum, fixed.Base()).Gt(uint256.NewInt(pricing.SpotPriceSumTolerance)) {
		return fmt.Errorf("%w: %s", ErrPriceSumDeviation, fixed.Format(sum))
	}
	return nil
}

// Complement returns the pool assets not contained in any of sets.
func (p *Pool) Complement(sets ...[]model.Asset) []model.Asset {
	seen := make(map[model.Asset]struct{})
	for _, set := range sets {
		for _, a := range set {
			seen[a] = struct{}{}
		}
	}
	var out []model.Asset
	for _, a := range p.Assets {
		if _, ok := seen[a]; !ok {
			out = append(out, a)
		}
	}
	return out
}

// TotalShares returns the outstanding pool shares.
func (p *Pool) TotalShares() *uint256.Int {
	return p.Tree.TotalShares()
}
