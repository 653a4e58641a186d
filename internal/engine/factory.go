package engine

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"neoswaps/internal/fixed"
	"neoswaps/internal/ledger"
	"neoswaps/internal/liquidity"
	"neoswaps/internal/model"
	"neoswaps/internal/pool"
	"neoswaps/internal/pricing"
)

const (
	opDeployPool      = "deploy_pool"
	opDeployComboPool = "deploy_combinatorial_pool"
)

// DeployPool creates a pool for market seeded with amount complete sets,
// priced at spotPrices. who receives amount pool shares and keeps whatever
// outcome tokens are not needed as reserves.
func (e *Engine) DeployPool(ctx context.Context, who model.AccountID, marketID model.MarketID, amount *uint256.Int, spotPrices []*uint256.Int, swapFee *uint256.Int) (model.PoolID, error) {
	var id model.PoolID
	err := e.transact(ctx, opDeployPool, func(c *call) error {
		market, err := e.markets.Market(marketID)
		if err != nil {
			return err
		}
		if market.Status != model.MarketActive {
			return fmt.Errorf("%w: market %d is %s", ErrMarketNotActive, marketID, market.Status)
		}
		if existing, ok, err := c.tx.PoolIDByMarket(c.ctx, marketID); err != nil {
			return err
		} else if ok {
			return fmt.Errorf("%w: market %d has pool %d", ErrDuplicatePool, marketID, existing)
		}
		assetCount := int(market.OutcomeCount)
		if assetCount < 2 || assetCount > e.cfg.MaxAssets {
			return fmt.Errorf("%w: %d outcomes", ErrIncorrectAssetCount, assetCount)
		}
		if len(spotPrices) != assetCount {
			return fmt.Errorf("%w: %d prices for %d outcomes", ErrIncorrectVecLen, len(spotPrices), assetCount)
		}
		liq, reserves, err := e.seed(amount, spotPrices, swapFee, pricing.StandardBand)
		if err != nil {
			return err
		}

		p, err := e.newPool(c, model.Standard(marketID), market.BaseAsset, liq, swapFee)
		if err != nil {
			return err
		}
		if err := e.fundAccount(who, p); err != nil {
			return err
		}
		if err := e.sets.BuyCompleteSet(who, marketID, amount); err != nil {
			return err
		}
		p.Assets = ledger.OutcomeAssets(market)
		if err := e.finishDeploy(c, who, p, amount, reserves); err != nil {
			return err
		}
		id = p.ID
		return nil
	})
	return id, err
}

// DeployCombinatorialPool creates a pool over the cross product of the
// outcomes of markets. amount of collateral is split market by market into
// one position per outcome combination, in market order.
func (e *Engine) DeployCombinatorialPool(ctx context.Context, who model.AccountID, markets []model.MarketID, amount *uint256.Int, spotPrices []*uint256.Int, swapFee *uint256.Int) (model.PoolID, error) {
	var id model.PoolID
	err := e.transact(ctx, opDeployComboPool, func(c *call) error {
		if len(markets) == 0 {
			return fmt.Errorf("%w: no markets", ErrIncorrectAssetCount)
		}
		var collateral model.Asset
		seen := make(map[model.MarketID]struct{}, len(markets))
		assetCount, splits, level := 1, 0, 1
		for i, marketID := range markets {
			if _, dup := seen[marketID]; dup {
				return fmt.Errorf("%w: %d", ErrDuplicateMarket, marketID)
			}
			seen[marketID] = struct{}{}
			market, err := e.markets.Market(marketID)
			if err != nil {
				return err
			}
			if market.Status != model.MarketActive {
				return fmt.Errorf("%w: market %d is %s", ErrMarketNotActive, marketID, market.Status)
			}
			if i == 0 {
				collateral = market.BaseAsset
			} else if market.BaseAsset != collateral {
				return fmt.Errorf("%w: market %d uses %s, expected %s", ErrCollateralMismatch, marketID, market.BaseAsset, collateral)
			}
			if market.OutcomeCount < 2 {
				return fmt.Errorf("%w: market %d has %d outcomes", ErrIncorrectAssetCount, marketID, market.OutcomeCount)
			}
			splits += level
			level *= int(market.OutcomeCount)
			assetCount = level
			if assetCount > e.cfg.MaxAssets {
				return fmt.Errorf("%w: more than %d assets", ErrIncorrectAssetCount, e.cfg.MaxAssets)
			}
			if splits > e.cfg.MaxSplits {
				return fmt.Errorf("%w: %d splits", ErrMaxSplitsExceeded, splits)
			}
		}
		if len(spotPrices) != assetCount {
			return fmt.Errorf("%w: %d prices for %d assets", ErrIncorrectVecLen, len(spotPrices), assetCount)
		}
		liq, reserves, err := e.seed(amount, spotPrices, swapFee, pricing.ComboBand)
		if err != nil {
			return err
		}

		p, err := e.newPool(c, model.Combinatorial(markets...), collateral, liq, swapFee)
		if err != nil {
			return err
		}
		if err := e.fundAccount(who, p); err != nil {
			return err
		}
		if p.Assets, err = e.splitCrossProduct(who, collateral, markets, amount); err != nil {
			return err
		}
		if err := e.finishDeploy(c, who, p, amount, reserves); err != nil {
			return err
		}
		id = p.ID
		return nil
	})
	return id, err
}

// seed validates the deployment parameters and derives liquidity and reserves.
func (e *Engine) seed(amount *uint256.Int, spotPrices []*uint256.Int, swapFee *uint256.Int, band pricing.Band) (*uint256.Int, []*uint256.Int, error) {
	if amount.IsZero() {
		return nil, nil, ErrZeroAmount
	}
	if swapFee.Lt(uint256.NewInt(MinSwapFee)) {
		return nil, nil, fmt.Errorf("%w: %s", ErrSwapFeeBelowMin, fixed.Format(swapFee))
	}
	if swapFee.Gt(e.cfg.MaxSwapFee) {
		return nil, nil, fmt.Errorf("%w: %s", ErrSwapFeeAboveMax, fixed.Format(swapFee))
	}
	if err := pricing.ValidateSpotPrices(spotPrices, band); err != nil {
		return nil, nil, err
	}
	liq, reserves, err := pricing.ReservesFromSpotPrices(amount, spotPrices)
	if err != nil {
		return nil, nil, err
	}
	if liq.Lt(uint256.NewInt(MinLiquidity)) {
		return nil, nil, fmt.Errorf("%w: %s", ErrLiquidityTooLow, fixed.Format(liq))
	}
	return liq, reserves, nil
}

func (e *Engine) newPool(c *call, typ model.PoolType, collateral model.Asset, liq, swapFee *uint256.Int) (*pool.Pool, error) {
	id, err := c.tx.NextPoolID(c.ctx)
	if err != nil {
		return nil, err
	}
	return &pool.Pool{
		ID:         id,
		Type:       typ,
		Account:    pool.AccountFor(id),
		Collateral: collateral,
		Liquidity:  liq,
		SwapFee:    new(uint256.Int).Set(swapFee),
		Tree:       liquidity.New(e.cfg.MaxLiquidityTreeDepth),
	}, nil
}

// fundAccount moves the collateral existential balance into the pool account.
func (e *Engine) fundAccount(who model.AccountID, p *pool.Pool) error {
	existential := e.ledger.MinimumBalance(p.Collateral)
	if existential.IsZero() {
		return nil
	}
	return e.ledger.Transfer(p.Collateral, who, p.Account, existential)
}

// splitCrossProduct splits amount of collateral held by who into one
// position per combination of outcomes of markets.
func (e *Engine) splitCrossProduct(who model.AccountID, collateral model.Asset, markets []model.MarketID, amount *uint256.Int) ([]model.Asset, error) {
	parents := []model.CollectionID{{}}
	var assets []model.Asset
	for _, market := range markets {
		var next []model.CollectionID
		assets = assets[:0]
		for _, parent := range parents {
			collections, created, err := e.tokens.SplitPosition(who, parent, collateral, market, amount)
			if err != nil {
				return nil, err
			}
			next = append(next, collections...)
			assets = append(assets, created...)
		}
		parents = next
	}
	return append([]model.Asset(nil), assets...), nil
}

// finishDeploy moves the reserves into the pool, mints the deployer's shares
// and stores the pool.
func (e *Engine) finishDeploy(c *call, who model.AccountID, p *pool.Pool, amount *uint256.Int, reserves []*uint256.Int) error {
	if len(p.Assets) != len(reserves) {
		return fmt.Errorf("%w: %d assets, %d reserves", ErrUnexpected, len(p.Assets), len(reserves))
	}
	p.Reserves = reserves
	returned := make([]*uint256.Int, len(reserves))
	for i, asset := range p.Assets {
		if err := e.ledger.Transfer(asset, who, p.Account, reserves[i]); err != nil {
			return err
		}
		returned[i] = new(uint256.Int).Sub(amount, reserves[i])
	}
	if _, err := p.Tree.Join(who, amount); err != nil {
		return err
	}
	if err := e.storePool(c, p); err != nil {
		return err
	}

	c.emit(model.PoolDeployedEvent{
		Who:              who,
		PoolID:           p.ID,
		PoolType:         p.Type,
		Account:          p.Account,
		Collateral:       p.Collateral,
		Assets:           p.Assets,
		Reserves:         amountStrings(p.Reserves),
		Liquidity:        amountString(p.Liquidity),
		SwapFee:          amountString(p.SwapFee),
		PoolSharesAmount: amountString(amount),
		AmountsReturned:  amountStrings(returned),
	})
	c.onCommit(e.metrics.PoolDeployed)
	return nil
}
