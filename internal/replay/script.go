// Package replay applies a JSONL script of setup and engine calls to a
// freshly built engine and records one result per call.
package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"neoswaps/internal/fixed"
	"neoswaps/internal/model"
)

// ErrScript marks a malformed script line. Such lines never reach the engine.
var ErrScript = errors.New("invalid script line")

// Setup operations mutate the reference collaborators directly.
const (
	OpCreateMarket      = "create_market"
	OpSetMarketStatus   = "set_market_status"
	OpMint              = "mint"
	OpSetMinimumBalance = "set_minimum_balance"
	OpSetCreatorFee     = "set_creator_fee"
	OpBuyCompleteSet    = "buy_complete_set"
)

// Engine operations and queries.
const (
	OpDeployPool      = "deploy_pool"
	OpDeployComboPool = "deploy_combinatorial_pool"
	OpBuy             = "buy"
	OpSell            = "sell"
	OpComboBuy        = "combo_buy"
	OpComboSell       = "combo_sell"
	OpJoin            = "join"
	OpExit            = "exit"
	OpWithdrawFees    = "withdraw_fees"
	OpPendingFees     = "pending_fees"
	OpPoolInfo        = "pool_info"
)

// Call is one script line. Amounts are decimal strings in collateral units;
// only the fields used by Op are read.
type Call struct {
	Op           string           `json:"op"`
	Who          string           `json:"who"`
	Pool         model.PoolID     `json:"pool"`
	Market       model.MarketID   `json:"market"`
	Markets      []model.MarketID `json:"markets"`
	Asset        model.Asset      `json:"asset"`
	Buy          []model.Asset    `json:"buy"`
	Keep         []model.Asset    `json:"keep"`
	Sell         []model.Asset    `json:"sell"`
	Amount       string           `json:"amount"`
	AmountKeep   string           `json:"amount_keep"`
	MinAmountOut string           `json:"min_amount_out"`
	Limits       []string         `json:"limits"`
	SpotPrices   []string         `json:"spot_prices"`
	SwapFee      string           `json:"swap_fee"`
	OutcomeCount uint16           `json:"outcome_count"`
	Status       string           `json:"status"`
	BaseAsset    model.Asset      `json:"base_asset"`
	Creator      string           `json:"creator"`
	Rate         string           `json:"rate"`
}

// ParseCall decodes one script line.
func ParseCall(line []byte) (Call, error) {
	var call Call
	if err := json.Unmarshal(line, &call); err != nil {
		return Call{}, fmt.Errorf("%w: %w", ErrScript, err)
	}
	call.Op = strings.TrimSpace(call.Op)
	if call.Op == "" {
		return Call{}, fmt.Errorf("%w: missing op", ErrScript)
	}
	return call, nil
}

// ParseAccount converts a hex address into an account id.
func ParseAccount(input string) (model.AccountID, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return model.AccountID{}, fmt.Errorf("%w: invalid account %q", ErrScript, input)
	}
	return common.HexToAddress(input), nil
}

// parseAmount reads a decimal amount. An empty string is zero.
func parseAmount(field, input string) (*uint256.Int, error) {
	if strings.TrimSpace(input) == "" {
		return new(uint256.Int), nil
	}
	v, err := fixed.Parse(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrScript, field, err)
	}
	return v, nil
}

func parseAmounts(field string, inputs []string) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, 0, len(inputs))
	for i, input := range inputs {
		v, err := parseAmount(fmt.Sprintf("%s[%d]", field, i), input)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// parseStatus reads a market status by name; empty means active.
func parseStatus(input string) (model.MarketStatus, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return model.MarketActive, nil
	}
	for s := model.MarketProposed; s <= model.MarketResolved; s++ {
		if s.String() == input {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown market status %q", ErrScript, input)
}
