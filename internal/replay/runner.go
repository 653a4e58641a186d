package replay

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"neoswaps/internal/fixed"
	"neoswaps/internal/ledger"
	"neoswaps/internal/model"
)

// ErrStoreNotEmpty is returned when the pool store already holds pools. The
// ledger lives in memory only, so a script must start from an empty store.
var ErrStoreNotEmpty = errors.New("pool store is not empty")

// RunConfig holds runtime settings for a replay.
type RunConfig struct {
	StopOnError bool
}

// Summary counts the calls of a replay.
type Summary struct {
	Calls  int `json:"calls"`
	Failed int `json:"failed"`
	Soft   int `json:"soft"`
}

// Runner applies script calls to an Env in order.
type Runner struct {
	cfg     RunConfig
	env     *Env
	results ResultWriter
	logger  *zap.Logger
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, env *Env, results ResultWriter, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, env: env, results: results, logger: logger}
}

// Run reads the script from r. Blank lines and lines starting with '#' are
// ignored. A failed call is recorded and the replay continues unless
// StopOnError is set.
func (r *Runner) Run(ctx context.Context, script io.Reader) (Summary, error) {
	var summary Summary
	if r.env == nil {
		return summary, fmt.Errorf("replay env is nil")
	}
	if r.results == nil {
		return summary, fmt.Errorf("result writer is nil")
	}

	pools, err := r.env.Engine.Pools(ctx)
	if err != nil {
		return summary, fmt.Errorf("list pools: %w", err)
	}
	if len(pools) > 0 {
		return summary, fmt.Errorf("%w: %d pools", ErrStoreNotEmpty, len(pools))
	}

	scanner := bufio.NewScanner(script)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		summary.Calls++

		op := ""
		call, err := ParseCall(line)
		var outputs map[string]any
		if err == nil {
			op = call.Op
			outputs, err = r.apply(ctx, call)
		}
		res := buildResult(lineNo, op, outputs, err)
		if err != nil {
			summary.Failed++
			if res.Soft {
				summary.Soft++
			}
			r.logger.Info("call failed", zap.Int("line", lineNo), zap.String("op", op), zap.String("class", res.Class), zap.Error(err))
		}
		if werr := r.results.WriteResult(res); werr != nil {
			return summary, werr
		}
		if err != nil && r.cfg.StopOnError {
			return summary, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("scan script: %w", err)
	}

	r.logger.Info("replay complete", zap.Int("calls", summary.Calls), zap.Int("failed", summary.Failed), zap.Int("soft", summary.Soft))
	return summary, nil
}

func (r *Runner) apply(ctx context.Context, call Call) (map[string]any, error) {
	switch call.Op {
	case OpCreateMarket, OpSetMarketStatus, OpMint, OpSetMinimumBalance, OpSetCreatorFee, OpBuyCompleteSet:
		return nil, r.setup(call)
	case OpDeployPool, OpDeployComboPool:
		return r.deploy(ctx, call)
	case OpBuy, OpSell, OpComboBuy, OpComboSell:
		return r.trade(ctx, call)
	case OpJoin, OpExit, OpWithdrawFees, OpPendingFees, OpPoolInfo:
		return r.liquidity(ctx, call)
	default:
		return nil, fmt.Errorf("%w: unknown op %q", ErrScript, call.Op)
	}
}

func (r *Runner) setup(call Call) error {
	env := r.env
	switch call.Op {
	case OpCreateMarket:
		creator, err := ParseAccount(call.Creator)
		if err != nil {
			return err
		}
		status, err := parseStatus(call.Status)
		if err != nil {
			return err
		}
		if call.OutcomeCount < 2 {
			return fmt.Errorf("%w: market %d needs at least 2 outcomes", ErrScript, call.Market)
		}
		env.Markets.Add(model.Market{
			ID:           call.Market,
			OutcomeCount: call.OutcomeCount,
			Status:       status,
			BaseAsset:    call.BaseAsset,
			Creator:      creator,
		})
		return nil
	case OpSetMarketStatus:
		status, err := parseStatus(call.Status)
		if err != nil {
			return err
		}
		return env.Markets.SetStatus(call.Market, status)
	case OpSetCreatorFee:
		rate, err := parseAmount("rate", call.Rate)
		if err != nil {
			return err
		}
		env.CreatorFees.SetRate(call.Market, rate)
		return nil
	case OpSetMinimumBalance:
		amount, err := parseAmount("amount", call.Amount)
		if err != nil {
			return err
		}
		env.Ledger.SetMinimumBalance(call.Asset, amount)
		return nil
	}

	who, err := ParseAccount(call.Who)
	if err != nil {
		return err
	}
	amount, err := parseAmount("amount", call.Amount)
	if err != nil {
		return err
	}
	if call.Op == OpMint {
		env.Ledger.Mint(call.Asset, who, amount)
		return nil
	}
	return journaled(env.Ledger, func() error {
		return env.Sets.BuyCompleteSet(who, call.Market, amount)
	})
}

// journaled runs fn against the ledger and undoes its transfers on error.
func journaled(l ledger.Journal, fn func() error) error {
	snapshot := l.Snapshot()
	if err := fn(); err != nil {
		l.RevertToSnapshot(snapshot)
		return err
	}
	l.Finalise()
	return nil
}

func (r *Runner) deploy(ctx context.Context, call Call) (map[string]any, error) {
	who, err := ParseAccount(call.Who)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", call.Amount)
	if err != nil {
		return nil, err
	}
	prices, err := parseAmounts("spot_prices", call.SpotPrices)
	if err != nil {
		return nil, err
	}
	fee, err := parseAmount("swap_fee", call.SwapFee)
	if err != nil {
		return nil, err
	}

	var id model.PoolID
	if call.Op == OpDeployPool {
		id, err = r.env.Engine.DeployPool(ctx, who, call.Market, amount, prices, fee)
	} else {
		id, err = r.env.Engine.DeployCombinatorialPool(ctx, who, call.Markets, amount, prices, fee)
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"pool_id": id}, nil
}

func (r *Runner) trade(ctx context.Context, call Call) (map[string]any, error) {
	who, err := ParseAccount(call.Who)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", call.Amount)
	if err != nil {
		return nil, err
	}
	minOut, err := parseAmount("min_amount_out", call.MinAmountOut)
	if err != nil {
		return nil, err
	}

	eng := r.env.Engine
	var rec model.TradeRecord
	switch call.Op {
	case OpBuy:
		rec, err = eng.Buy(ctx, who, call.Pool, call.Asset, amount, minOut)
	case OpSell:
		rec, err = eng.Sell(ctx, who, call.Pool, call.Asset, amount, minOut)
	case OpComboBuy:
		rec, err = eng.ComboBuy(ctx, who, call.Pool, call.Buy, call.Sell, amount, minOut)
	case OpComboSell:
		keep, perr := parseAmount("amount_keep", call.AmountKeep)
		if perr != nil {
			return nil, perr
		}
		rec, err = eng.ComboSell(ctx, who, call.Pool, call.Buy, call.Keep, call.Sell, amount, keep, minOut)
	}
	if err != nil {
		return nil, err
	}
	return tradeOutputs(rec), nil
}

func (r *Runner) liquidity(ctx context.Context, call Call) (map[string]any, error) {
	eng := r.env.Engine
	if call.Op == OpPoolInfo {
		info, err := eng.PoolInfo(ctx, call.Pool)
		if err != nil {
			return nil, err
		}
		return PoolSummary(info), nil
	}

	who, err := ParseAccount(call.Who)
	if err != nil {
		return nil, err
	}
	switch call.Op {
	case OpWithdrawFees:
		amount, err := eng.WithdrawFees(ctx, who, call.Pool)
		if err != nil {
			return nil, err
		}
		return map[string]any{"amount": fixed.Format(amount)}, nil
	case OpPendingFees:
		amount, err := eng.PendingFees(ctx, call.Pool, who)
		if err != nil {
			return nil, err
		}
		return map[string]any{"amount": fixed.Format(amount)}, nil
	}

	shares, err := parseAmount("amount", call.Amount)
	if err != nil {
		return nil, err
	}
	limits, err := r.limits(ctx, call)
	if err != nil {
		return nil, err
	}
	if call.Op == OpJoin {
		amountsIn, err := eng.Join(ctx, who, call.Pool, shares, limits)
		if err != nil {
			return nil, err
		}
		return map[string]any{"amounts_in": formatAmounts(amountsIn)}, nil
	}
	amountsOut, err := eng.Exit(ctx, who, call.Pool, shares, limits)
	if err != nil {
		return nil, err
	}
	return map[string]any{"amounts_out": formatAmounts(amountsOut)}, nil
}

// limits returns the per-asset bounds of a join or exit. Missing limits
// leave a join uncapped and an exit unprotected.
func (r *Runner) limits(ctx context.Context, call Call) ([]*uint256.Int, error) {
	if len(call.Limits) > 0 {
		return parseAmounts("limits", call.Limits)
	}
	info, err := r.env.Engine.PoolInfo(ctx, call.Pool)
	if err != nil {
		return nil, err
	}
	out := make([]*uint256.Int, len(info.Assets))
	for i := range out {
		if call.Op == OpJoin {
			out[i] = new(uint256.Int).SetAllOne()
		} else {
			out[i] = new(uint256.Int)
		}
	}
	return out, nil
}
