package engine

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"neoswaps/internal/fixed"
	"neoswaps/internal/model"
	"neoswaps/internal/pool"
	"neoswaps/internal/pricing"
)

// ComboBuy spends amountIn of collateral on equal amounts of every asset in
// buy. buy and sell must partition the pool's assets.
func (e *Engine) ComboBuy(ctx context.Context, who model.AccountID, poolID model.PoolID, buy, sell []model.Asset, amountIn, minAmountOut *uint256.Int) (model.TradeRecord, error) {
	var rec model.TradeRecord
	err := e.transact(ctx, opComboBuy, func(c *call) error {
		if amountIn.IsZero() {
			return ErrZeroAmount
		}
		p, err := e.loadPool(c, poolID)
		if err != nil {
			return err
		}
		if !p.IsCombinatorial() {
			return fmt.Errorf("%w: combo buy on %s pool %d", ErrInvalidPoolType, p.Type.Kind, p.ID)
		}
		if err := checkPartition(p, buy, nil, sell); err != nil {
			return err
		}
		if err := e.ensureActive(p); err != nil {
			return err
		}
		for _, a := range buy {
			if err := checkMax(p, a, pricing.ComboMaxSpotPrice, ErrSpotPriceTooHigh); err != nil {
				return err
			}
		}
		buyReserves, err := p.ReservesOf(buy)
		if err != nil {
			return err
		}

		if err := e.ledger.Transfer(p.Collateral, who, p.Account, amountIn); err != nil {
			return err
		}
		split, err := e.fees.Distribute(p, p.Account, amountIn)
		if err != nil {
			return err
		}
		x := split.Remaining
		amountOut, err := pricing.ComboBuyAmountOut(x, buyReserves, p.Liquidity)
		if err != nil {
			return err
		}
		if amountOut.Lt(minAmountOut) {
			return fmt.Errorf("%w: %s < %s", ErrAmountOutBelowMin, fixed.Format(amountOut), fixed.Format(minAmountOut))
		}
		if err := e.tokens.SplitPositionUnsafe(p.Account, p.Collateral, p.Assets, x); err != nil {
			return err
		}
		if err := p.IncreaseReserves(x); err != nil {
			return err
		}
		for _, a := range buy {
			if err := p.DecreaseReserve(a, amountOut); err != nil {
				return slipped(err, ErrSpotPriceSlippedTooHigh)
			}
			if err := e.ledger.Transfer(a, p.Account, who, amountOut); err != nil {
				return err
			}
		}
		if err := checkComboBand(p); err != nil {
			return err
		}
		if err := e.storePool(c, p); err != nil {
			return err
		}

		rec = model.TradeRecord{
			AmountIn:          new(uint256.Int).Set(amountIn),
			AmountOut:         amountOut,
			SwapFeeAmount:     split.SwapFees,
			ExternalFeeAmount: split.ExternalFees,
		}
		c.emit(model.ComboBuyExecutedEvent{
			Who:               who,
			PoolID:            p.ID,
			Buy:               buy,
			Sell:              sell,
			AmountIn:          amountString(amountIn),
			AmountOut:         amountString(amountOut),
			SwapFeeAmount:     amountString(split.SwapFees),
			ExternalFeeAmount: amountString(split.ExternalFees),
		})
		c.onCommit(func() { e.observeTrade(opComboBuy, rec, rec.AmountIn) })
		return nil
	})
	return rec, err
}

// ComboSell sells amountBuy of every asset in buy and amountKeep of every
// asset in keep for collateral. buy, keep and sell must partition the pool's
// assets; keep may be empty, in which case amountKeep must be zero.
func (e *Engine) ComboSell(ctx context.Context, who model.AccountID, poolID model.PoolID, buy, keep, sell []model.Asset, amountBuy, amountKeep, minAmountOut *uint256.Int) (model.TradeRecord, error) {
	var rec model.TradeRecord
	err := e.transact(ctx, opComboSell, func(c *call) error {
		if amountBuy.IsZero() {
			return ErrZeroAmount
		}
		switch {
		case len(keep) == 0 && !amountKeep.IsZero():
			return fmt.Errorf("%w: keep set is empty", ErrInvalidAmountKeep)
		case len(keep) > 0 && amountKeep.IsZero():
			return fmt.Errorf("%w: keep set requires an amount", ErrInvalidAmountKeep)
		case amountKeep.Gt(amountBuy):
			return fmt.Errorf("%w: %s exceeds buy amount", ErrInvalidAmountKeep, fixed.Format(amountKeep))
		}
		p, err := e.loadPool(c, poolID)
		if err != nil {
			return err
		}
		if !p.IsCombinatorial() {
			return fmt.Errorf("%w: combo sell on %s pool %d", ErrInvalidPoolType, p.Type.Kind, p.ID)
		}
		if err := checkPartition(p, buy, keep, sell); err != nil {
			return err
		}
		if err := e.ensureActive(p); err != nil {
			return err
		}
		for _, a := range buy {
			if err := checkMin(p, a, pricing.ComboMinSpotPrice, ErrSpotPriceTooLow); err != nil {
				return err
			}
		}
		buyReserves, err := p.ReservesOf(buy)
		if err != nil {
			return err
		}
		keepReserves, err := p.ReservesOf(keep)
		if err != nil {
			return err
		}
		sellReserves, err := p.ReservesOf(sell)
		if err != nil {
			return err
		}
		amountSets, err := pricing.ComboSellAmountOut(amountBuy, amountKeep, buyReserves, keepReserves, sellReserves, p.Liquidity)
		if err != nil {
			return err
		}

		for _, leg := range []struct {
			assets []model.Asset
			amount *uint256.Int
		}{{buy, amountBuy}, {keep, amountKeep}} {
			for _, a := range leg.assets {
				if err := e.ledger.Transfer(a, who, p.Account, leg.amount); err != nil {
					return err
				}
				if err := p.IncreaseReserve(a, leg.amount); err != nil {
					return err
				}
			}
		}
		if err := p.DecreaseReserves(amountSets); err != nil {
			return slipped(err, ErrSpotPriceSlippedTooHigh)
		}
		if err := e.tokens.MergePositionUnsafe(p.Account, p.Collateral, p.Assets, amountSets); err != nil {
			return err
		}
		split, err := e.fees.Distribute(p, p.Account, amountSets)
		if err != nil {
			return err
		}
		amountOut := split.Remaining
		if amountOut.Lt(minAmountOut) {
			return fmt.Errorf("%w: %s < %s", ErrAmountOutBelowMin, fixed.Format(amountOut), fixed.Format(minAmountOut))
		}
		if err := e.ledger.Transfer(p.Collateral, p.Account, who, amountOut); err != nil {
			return err
		}
		if err := checkComboBand(p); err != nil {
			return err
		}
		if err := e.storePool(c, p); err != nil {
			return err
		}

		rec = model.TradeRecord{
			AmountIn:          new(uint256.Int).Set(amountBuy),
			AmountOut:         amountOut,
			SwapFeeAmount:     split.SwapFees,
			ExternalFeeAmount: split.ExternalFees,
		}
		c.emit(model.ComboSellExecutedEvent{
			Who:               who,
			PoolID:            p.ID,
			Buy:               buy,
			Keep:              keep,
			Sell:              sell,
			AmountBuy:         amountString(amountBuy),
			AmountKeep:        amountString(amountKeep),
			AmountOut:         amountString(amountOut),
			SwapFeeAmount:     amountString(split.SwapFees),
			ExternalFeeAmount: amountString(split.ExternalFees),
		})
		c.onCommit(func() { e.observeTrade(opComboSell, rec, amountSets) })
		return nil
	})
	return rec, err
}

// checkPartition verifies that buy, keep and sell are pairwise disjoint,
// duplicate free, drawn from the pool and together cover every pool asset.
// buy and sell must be non-empty.
func checkPartition(p *pool.Pool, buy, keep, sell []model.Asset) error {
	if len(buy) == 0 || len(sell) == 0 {
		return fmt.Errorf("%w: buy and sell must be non-empty", ErrInvalidPartition)
	}
	seen := make(map[model.Asset]struct{}, len(p.Assets))
	for _, set := range [][]model.Asset{buy, keep, sell} {
		for _, a := range set {
			if !p.Contains(a) {
				return fmt.Errorf("%w: %s", ErrAssetNotFound, a)
			}
			if _, dup := seen[a]; dup {
				return fmt.Errorf("%w: %s listed twice", ErrInvalidPartition, a)
			}
			seen[a] = struct{}{}
		}
	}
	if rest := p.Complement(buy, keep, sell); len(rest) > 0 {
		return fmt.Errorf("%w: %d assets uncovered", ErrInvalidPartition, len(rest))
	}
	return nil
}

// checkComboBand verifies every pool asset against the pool's price band.
func checkComboBand(p *pool.Pool) error {
	prices, err := p.SpotPrices()
	if err != nil {
		return err
	}
	band := p.Band()
	for i, price := range prices {
		if band.Contains(price) {
			continue
		}
		if price.Gt(uint256.NewInt(band.Max)) {
			return fmt.Errorf("%w: %s of %s", ErrSpotPriceSlippedTooHigh, fixed.Format(price), p.Assets[i])
		}
		return fmt.Errorf("%w: %s of %s", ErrSpotPriceSlippedTooLow, fixed.Format(price), p.Assets[i])
	}
	return nil
}
