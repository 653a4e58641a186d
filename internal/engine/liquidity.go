package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"neoswaps/internal/fixed"
	"neoswaps/internal/liquidity"
	"neoswaps/internal/model"
	"neoswaps/internal/pool"
)

const (
	opJoin         = "join"
	opExit         = "exit"
	opWithdrawFees = "withdraw_fees"
)

// Join buys poolSharesAmount new shares by depositing the same fraction of
// every reserve. The liquidity parameter grows by that fraction, so prices
// are unchanged.
func (e *Engine) Join(ctx context.Context, who model.AccountID, poolID model.PoolID, poolSharesAmount *uint256.Int, maxAmountsIn []*uint256.Int) ([]*uint256.Int, error) {
	var amountsIn []*uint256.Int
	err := e.transact(ctx, opJoin, func(c *call) error {
		if poolSharesAmount.IsZero() {
			return ErrZeroAmount
		}
		p, err := e.loadPool(c, poolID)
		if err != nil {
			return err
		}
		if len(maxAmountsIn) != len(p.Assets) {
			return fmt.Errorf("%w: %d max amounts for %d assets", ErrIncorrectVecLen, len(maxAmountsIn), len(p.Assets))
		}
		if err := e.ensureActive(p); err != nil {
			return err
		}
		total := p.TotalShares()
		ratio, err := fixed.DivCeil(poolSharesAmount, total)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnexpected, err)
		}
		if _, err := p.Tree.SharesOf(who); errors.Is(err, liquidity.ErrNotFound) {
			if ratio.Lt(uint256.NewInt(MinRelativeLPPositionValue)) {
				return fmt.Errorf("%w: %s", ErrMinRelativeLiquidityThresholdViolated, fixed.Format(ratio))
			}
		}

		amountsIn = make([]*uint256.Int, len(p.Assets))
		for i, asset := range p.Assets {
			amount, err := fixed.MulCeil(ratio, p.Reserves[i])
			if err != nil {
				return err
			}
			if amount.Gt(maxAmountsIn[i]) {
				return fmt.Errorf("%w: %s needs %s, max %s", ErrAmountInAboveMax, asset, fixed.Format(amount), fixed.Format(maxAmountsIn[i]))
			}
			if err := e.ledger.Transfer(asset, who, p.Account, amount); err != nil {
				return err
			}
			if err := p.IncreaseReserve(asset, amount); err != nil {
				return err
			}
			amountsIn[i] = amount
		}
		if _, err := p.Tree.Join(who, poolSharesAmount); err != nil {
			return err
		}
		grown, err := fixed.Mul(p.Liquidity, new(uint256.Int).Add(fixed.Base(), ratio))
		if err != nil {
			return err
		}
		p.Liquidity = grown
		if err := e.storePool(c, p); err != nil {
			return err
		}

		c.emit(model.JoinExecutedEvent{
			Who:              who,
			PoolID:           p.ID,
			PoolSharesAmount: amountString(poolSharesAmount),
			AmountsIn:        amountStrings(amountsIn),
			NewLiquidity:     amountString(p.Liquidity),
		})
		return nil
	})
	return amountsIn, err
}

// Exit redeems poolSharesAmount shares for the same fraction of every
// reserve, less the exit fee while the pool's markets are active. The last
// LP to leave receives everything the pool account holds and the pool is
// destroyed.
func (e *Engine) Exit(ctx context.Context, who model.AccountID, poolID model.PoolID, poolSharesAmount *uint256.Int, minAmountsOut []*uint256.Int) ([]*uint256.Int, error) {
	var amountsOut []*uint256.Int
	err := e.transact(ctx, opExit, func(c *call) error {
		if poolSharesAmount.IsZero() {
			return ErrZeroAmount
		}
		p, err := e.loadPool(c, poolID)
		if err != nil {
			return err
		}
		if len(minAmountsOut) != len(p.Assets) {
			return fmt.Errorf("%w: %d min amounts for %d assets", ErrIncorrectVecLen, len(minAmountsOut), len(p.Assets))
		}
		active, err := e.marketsActive(p)
		if err != nil {
			return err
		}
		if _, err := p.Tree.SharesOf(who); err != nil {
			return fmt.Errorf("%w: %w", ErrNotAllowed, err)
		}

		total := p.TotalShares()
		if err := p.Tree.Exit(who, poolSharesAmount); err != nil {
			return err
		}
		if p.TotalShares().IsZero() {
			amountsOut, err = e.destroyPool(c, who, p, poolSharesAmount, minAmountsOut)
			return err
		}

		ratio, err := fixed.Div(poolSharesAmount, total)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnexpected, err)
		}
		if active {
			if ratio, err = fixed.Mul(ratio, uint256.NewInt(fixed.One-ExitFee)); err != nil {
				return err
			}
		}
		amountsOut = make([]*uint256.Int, len(p.Assets))
		for i, asset := range p.Assets {
			amount, err := fixed.Mul(ratio, p.Reserves[i])
			if err != nil {
				return err
			}
			if amount.Lt(minAmountsOut[i]) {
				return fmt.Errorf("%w: %s pays %s, min %s", ErrAmountOutBelowMin, asset, fixed.Format(amount), fixed.Format(minAmountsOut[i]))
			}
			if err := p.DecreaseReserve(asset, amount); err != nil {
				return fmt.Errorf("%w: %w", ErrUnexpected, err)
			}
			if err := e.ledger.Transfer(asset, p.Account, who, amount); err != nil {
				return err
			}
			amountsOut[i] = amount
		}
		shrunk, err := fixed.Mul(p.Liquidity, new(uint256.Int).Sub(fixed.Base(), ratio))
		if err != nil {
			return err
		}
		if shrunk.Lt(uint256.NewInt(MinLiquidity)) {
			return fmt.Errorf("%w: %s", ErrLiquidityTooLow, fixed.Format(shrunk))
		}
		p.Liquidity = shrunk

		if remaining, err := p.Tree.SharesOf(who); err == nil {
			retained, err := fixed.Div(remaining, p.TotalShares())
			if err != nil {
				return fmt.Errorf("%w: %w", ErrUnexpected, err)
			}
			if retained.Lt(uint256.NewInt(MinRelativeLPPositionValue)) {
				return fmt.Errorf("%w: %s retained", ErrMinRelativeLiquidityThresholdViolated, fixed.Format(retained))
			}
		}
		if err := e.storePool(c, p); err != nil {
			return err
		}

		c.emit(model.ExitExecutedEvent{
			Who:              who,
			PoolID:           p.ID,
			PoolSharesAmount: amountString(poolSharesAmount),
			AmountsOut:       amountStrings(amountsOut),
			NewLiquidity:     amountString(p.Liquidity),
		})
		return nil
	})
	return amountsOut, err
}

// destroyPool pays every balance of the pool account to the last LP and
// removes the pool.
func (e *Engine) destroyPool(c *call, who model.AccountID, p *pool.Pool, shares *uint256.Int, minAmountsOut []*uint256.Int) ([]*uint256.Int, error) {
	amountsOut := make([]*uint256.Int, len(p.Assets))
	for i, asset := range p.Assets {
		if p.Reserves[i].Lt(minAmountsOut[i]) {
			return nil, fmt.Errorf("%w: %s pays %s, min %s", ErrAmountOutBelowMin, asset, fixed.Format(p.Reserves[i]), fixed.Format(minAmountsOut[i]))
		}
		amount := e.ledger.FreeBalance(asset, p.Account)
		if err := e.ledger.Transfer(asset, p.Account, who, amount); err != nil {
			return nil, err
		}
		amountsOut[i] = amount
		p.Reserves[i] = new(uint256.Int)
	}
	collateral := e.ledger.FreeBalance(p.Collateral, p.Account)
	if err := e.ledger.Transfer(p.Collateral, p.Account, who, collateral); err != nil {
		return nil, err
	}
	if err := c.tx.DeletePool(c.ctx, p.ID); err != nil {
		return nil, err
	}

	c.emit(model.ExitExecutedEvent{
		Who:              who,
		PoolID:           p.ID,
		PoolSharesAmount: amountString(shares),
		AmountsOut:       amountStrings(amountsOut),
		NewLiquidity:     amountString(new(uint256.Int)),
	})
	c.emit(model.PoolDestroyedEvent{
		Who:        who,
		PoolID:     p.ID,
		Assets:     append(append([]model.Asset(nil), p.Assets...), p.Collateral),
		AmountsOut: append(amountStrings(amountsOut), amountString(collateral)),
	})
	c.onCommit(e.metrics.PoolDestroyed)
	return amountsOut, nil
}

// WithdrawFees pays who the swap fees it has accrued in a pool.
func (e *Engine) WithdrawFees(ctx context.Context, who model.AccountID, poolID model.PoolID) (*uint256.Int, error) {
	var amount *uint256.Int
	err := e.transact(ctx, opWithdrawFees, func(c *call) error {
		p, err := e.loadPool(c, poolID)
		if err != nil {
			return err
		}
		amount, err = p.Tree.WithdrawFees(who)
		if err != nil {
			if errors.Is(err, liquidity.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrNotAllowed, who.Hex())
			}
			return err
		}
		if err := e.ledger.Transfer(p.Collateral, p.Account, who, amount); err != nil {
			return err
		}
		if err := c.tx.PutPool(c.ctx, p); err != nil {
			return err
		}
		c.emit(model.FeesWithdrawnEvent{Who: who, PoolID: p.ID, Amount: amountString(amount)})
		return nil
	})
	return amount, err
}
