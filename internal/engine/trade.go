package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"neoswaps/internal/fixed"
	"neoswaps/internal/model"
	"neoswaps/internal/pool"
	"neoswaps/internal/pricing"
)

const (
	opBuy       = "buy"
	opSell      = "sell"
	opComboBuy  = "combo_buy"
	opComboSell = "combo_sell"
)

// Buy spends amountIn of collateral on assetOut.
//
// The pool mints complete sets for the net amount with its own account and
// swaps the unwanted outcomes into more of assetOut internally, so the trader
// receives the net amount plus the swap proceeds.
func (e *Engine) Buy(ctx context.Context, who model.AccountID, poolID model.PoolID, assetOut model.Asset, amountIn, minAmountOut *uint256.Int) (model.TradeRecord, error) {
	var rec model.TradeRecord
	err := e.transact(ctx, opBuy, func(c *call) error {
		if amountIn.IsZero() {
			return ErrZeroAmount
		}
		p, err := e.loadPool(c, poolID)
		if err != nil {
			return err
		}
		market, ok := p.Type.Market()
		if !ok {
			return fmt.Errorf("%w: buy on %s pool %d", ErrInvalidPoolType, p.Type.Kind, p.ID)
		}
		if err := e.ensureActive(p); err != nil {
			return err
		}
		reserve, err := p.Reserve(assetOut)
		if err != nil {
			return err
		}
		if err := checkMax(p, assetOut, pricing.MaxSpotPrice, ErrSpotPriceTooHigh); err != nil {
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
		amountOut, err := pricing.BuyAmountOut(x, reserve, p.Liquidity)
		if err != nil {
			return err
		}
		if amountOut.Lt(minAmountOut) {
			return fmt.Errorf("%w: %s < %s", ErrAmountOutBelowMin, fixed.Format(amountOut), fixed.Format(minAmountOut))
		}
		if err := e.sets.BuyCompleteSet(p.Account, market, x); err != nil {
			return err
		}
		if err := p.IncreaseReserves(x); err != nil {
			return err
		}
		if err := p.DecreaseReserve(assetOut, amountOut); err != nil {
			return slipped(err, ErrSpotPriceSlippedTooHigh)
		}
		if err := e.ledger.Transfer(assetOut, p.Account, who, amountOut); err != nil {
			return err
		}
		if err := checkMax(p, assetOut, pricing.MaxSpotPrice, ErrSpotPriceSlippedTooHigh); err != nil {
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
		c.emit(model.BuyExecutedEvent{
			Who:               who,
			PoolID:            p.ID,
			AssetOut:          assetOut,
			AmountIn:          amountString(amountIn),
			AmountOut:         amountString(amountOut),
			SwapFeeAmount:     amountString(split.SwapFees),
			ExternalFeeAmount: amountString(split.ExternalFees),
		})
		c.onCommit(func() { e.observeTrade(opBuy, rec, rec.AmountIn) })
		return nil
	})
	return rec, err
}

// Sell sells amountIn of assetIn for collateral.
//
// The pool swaps part of the received asset into a complete set of every
// outcome, burns the set for collateral and pays the trader the collateral
// net of fees.
func (e *Engine) Sell(ctx context.Context, who model.AccountID, poolID model.PoolID, assetIn model.Asset, amountIn, minAmountOut *uint256.Int) (model.TradeRecord, error) {
	var rec model.TradeRecord
	err := e.transact(ctx, opSell, func(c *call) error {
		if amountIn.IsZero() {
			return ErrZeroAmount
		}
		p, err := e.loadPool(c, poolID)
		if err != nil {
			return err
		}
		market, ok := p.Type.Market()
		if !ok {
			return fmt.Errorf("%w: sell on %s pool %d", ErrInvalidPoolType, p.Type.Kind, p.ID)
		}
		if err := e.ensureActive(p); err != nil {
			return err
		}
		reserve, err := p.Reserve(assetIn)
		if err != nil {
			return err
		}
		if err := checkMin(p, assetIn, pricing.MinSpotPrice, ErrSpotPriceTooLow); err != nil {
			return err
		}

		amountSets, err := pricing.SellAmountOut(amountIn, reserve, p.Liquidity)
		if err != nil {
			return err
		}
		if err := e.ledger.Transfer(assetIn, who, p.Account, amountIn); err != nil {
			return err
		}
		if err := p.IncreaseReserve(assetIn, amountIn); err != nil {
			return err
		}
		if err := p.DecreaseReserves(amountSets); err != nil {
			return slipped(err, ErrSpotPriceSlippedTooLow)
		}
		if err := e.sets.SellCompleteSet(p.Account, market, amountSets); err != nil {
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
		if err := checkMin(p, assetIn, pricing.MinSpotPrice, ErrSpotPriceSlippedTooLow); err != nil {
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
		c.emit(model.SellExecutedEvent{
			Who:               who,
			PoolID:            p.ID,
			AssetIn:           assetIn,
			AmountIn:          amountString(amountIn),
			AmountOut:         amountString(amountOut),
			SwapFeeAmount:     amountString(split.SwapFees),
			ExternalFeeAmount: amountString(split.ExternalFees),
		})
		c.onCommit(func() { e.observeTrade(opSell, rec, amountSets) })
		return nil
	})
	return rec, err
}

func (e *Engine) observeTrade(op string, rec model.TradeRecord, volume *uint256.Int) {
	e.metrics.ObserveTrade(op, toFloat(volume), toFloat(rec.SwapFeeAmount), toFloat(rec.ExternalFeeAmount))
}

// checkMax fails with err when the price of asset exceeds limit.
func checkMax(p *pool.Pool, asset model.Asset, limit uint64, err error) error {
	price, perr := p.SpotPrice(asset)
	if perr != nil {
		return perr
	}
	if price.Gt(uint256.NewInt(limit)) {
		return fmt.Errorf("%w: %s of %s", err, fixed.Format(price), asset)
	}
	return nil
}

// checkMin fails with err when the price of asset is below limit.
func checkMin(p *pool.Pool, asset model.Asset, limit uint64, err error) error {
	price, perr := p.SpotPrice(asset)
	if perr != nil {
		return perr
	}
	if price.Lt(uint256.NewInt(limit)) {
		return fmt.Errorf("%w: %s of %s", err, fixed.Format(price), asset)
	}
	return nil
}

// slipped turns a reserve underflow into the price error of the trade
// direction; other errors pass through.
func slipped(err, target error) error {
	if errors.Is(err, pool.ErrReserveUnderflow) {
		return target
	}
	return err
}
