package replay

import (
	"errors"

	"github.com/holiman/uint256"

	"neoswaps/internal/engine"
	"neoswaps/internal/fixed"
	"neoswaps/internal/model"
)

const classScript = "script"

func buildResult(line int, op string, outputs map[string]any, err error) Result {
	res := Result{Line: line, Op: op, OK: err == nil, Outputs: outputs}
	if err == nil {
		return res
	}
	res.Outputs = nil
	res.Error = err.Error()
	if errors.Is(err, ErrScript) {
		res.Class = classScript
		return res
	}
	res.Class = engine.Classify(err).String()
	res.Soft = engine.IsSoft(err)
	return res
}

func tradeOutputs(rec model.TradeRecord) map[string]any {
	return map[string]any{
		"amount_in":           fixed.Format(rec.AmountIn),
		"amount_out":          fixed.Format(rec.AmountOut),
		"swap_fee_amount":     fixed.Format(rec.SwapFeeAmount),
		"external_fee_amount": fixed.Format(rec.ExternalFeeAmount),
	}
}

func formatAmounts(xs []*uint256.Int) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = fixed.Format(x)
	}
	return out
}

// PoolSummary renders a pool view with decimal amounts.
func PoolSummary(info engine.Info) map[string]any {
	return map[string]any{
		"pool_id":      info.ID,
		"type":         info.Type.Kind.String(),
		"account":      info.Account.Hex(),
		"collateral":   info.Collateral.String(),
		"reserves":     formatAmounts(info.Reserves),
		"spot_prices":  formatAmounts(info.SpotPrices),
		"liquidity":    fixed.Format(info.Liquidity),
		"swap_fee":     fixed.Format(info.SwapFee),
		"total_shares": fixed.Format(info.TotalShares),
		"providers":    info.Providers,
	}
}
