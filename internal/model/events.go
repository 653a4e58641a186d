package model

// Event names as they appear in the event log.
const (
	EventPoolDeployed      = "PoolDeployed"
	EventComboPoolDeployed = "ComboPoolDeployed"
	EventBuyExecuted       = "BuyExecuted"
	EventSellExecuted      = "SellExecuted"
	EventComboBuyExecuted  = "ComboBuyExecuted"
	EventComboSellExecuted = "ComboSellExecuted"
	EventJoinExecuted      = "JoinExecuted"
	EventExitExecuted      = "ExitExecuted"
	EventFeesWithdrawn     = "FeesWithdrawn"
	EventPoolDestroyed     = "PoolDestroyed"
)

// Event is a domain event emitted by a committed engine call.
type Event interface {
	EventName() string
	EventPool() PoolID
}

// PoolDeployedEvent is emitted by deploy_pool and deploy_combinatorial_pool.
type PoolDeployedEvent struct {
	Who              AccountID `json:"who"`
	PoolID           PoolID    `json:"pool_id"`
	PoolType         PoolType  `json:"pool_type"`
	Account          AccountID `json:"account"`
	Collateral       Asset     `json:"collateral"`
	Assets           []Asset   `json:"assets"`
	Reserves         []string  `json:"reserves"`
	Liquidity        string    `json:"liquidity"`
	SwapFee          string    `json:"swap_fee"`
	PoolSharesAmount string    `json:"pool_shares_amount"`
	AmountsReturned  []string  `json:"amounts_returned"`
}

// BuyExecutedEvent is the payload of a standard buy.
type BuyExecutedEvent struct {
	Who               AccountID `json:"who"`
	PoolID            PoolID    `json:"pool_id"`
	AssetOut          Asset     `json:"asset_out"`
	AmountIn          string    `json:"amount_in"`
	AmountOut         string    `json:"amount_out"`
	SwapFeeAmount     string    `json:"swap_fee_amount"`
	ExternalFeeAmount string    `json:"external_fee_amount"`
}

// SellExecutedEvent is the payload of a standard sell.
type SellExecutedEvent struct {
	Who               AccountID `json:"who"`
	PoolID            PoolID    `json:"pool_id"`
	AssetIn           Asset     `json:"asset_in"`
	AmountIn          string    `json:"amount_in"`
	AmountOut         string    `json:"amount_out"`
	SwapFeeAmount     string    `json:"swap_fee_amount"`
	ExternalFeeAmount string    `json:"external_fee_amount"`
}

// ComboBuyExecutedEvent is the payload of a combinatorial buy.
type ComboBuyExecutedEvent struct {
	Who               AccountID `json:"who"`
	PoolID            PoolID    `json:"pool_id"`
	Buy               []Asset   `json:"buy"`
	Sell              []Asset   `json:"sell"`
	AmountIn          string    `json:"amount_in"`
	AmountOut         string    `json:"amount_out"`
	SwapFeeAmount     string    `json:"swap_fee_amount"`
	ExternalFeeAmount string    `json:"external_fee_amount"`
}

// ComboSellExecutedEvent is the payload of a combinatorial sell.
type ComboSellExecutedEvent struct {
	Who               AccountID `json:"who"`
	PoolID            PoolID    `json:"pool_id"`
	Buy               []Asset   `json:"buy"`
	Keep              []Asset   `json:"keep"`
	Sell              []Asset   `json:"sell"`
	AmountBuy         string    `json:"amount_buy"`
	AmountKeep        string    `json:"amount_keep"`
	AmountOut         string    `json:"amount_out"`
	SwapFeeAmount     string    `json:"swap_fee_amount"`
	ExternalFeeAmount string    `json:"external_fee_amount"`
}

// JoinExecutedEvent is the payload of a liquidity join.
type JoinExecutedEvent struct {
	Who              AccountID `json:"who"`
	PoolID           PoolID    `json:"pool_id"`
	PoolSharesAmount string    `json:"pool_shares_amount"`
	AmountsIn        []string  `json:"amounts_in"`
	NewLiquidity     string    `json:"new_liquidity"`
}

// ExitExecutedEvent is the payload of a liquidity exit.
type ExitExecutedEvent struct {
	Who              AccountID `json:"who"`
	PoolID           PoolID    `json:"pool_id"`
	PoolSharesAmount string    `json:"pool_shares_amount"`
	AmountsOut       []string  `json:"amounts_out"`
	NewLiquidity     string    `json:"new_liquidity"`
}

// FeesWithdrawnEvent is the payload of an LP fee withdrawal.
type FeesWithdrawnEvent struct {
	Who    AccountID `json:"who"`
	PoolID PoolID    `json:"pool_id"`
	Amount string    `json:"amount"`
}

// PoolDestroyedEvent is emitted when the last LP exits.
type PoolDestroyedEvent struct {
	Who        AccountID `json:"who"`
	PoolID     PoolID    `json:"pool_id"`
	Assets     []Asset   `json:"assets"`
	AmountsOut []string  `json:"amounts_out"`
}

func (e PoolDeployedEvent) EventName() string {
	if e.PoolType.Kind == PoolCombinatorial {
		return EventComboPoolDeployed
	}
	return EventPoolDeployed
}
func (e PoolDeployedEvent) EventPool() PoolID      { return e.PoolID }
func (e BuyExecutedEvent) EventName() string       { return EventBuyExecuted }
func (e BuyExecutedEvent) EventPool() PoolID       { return e.PoolID }
func (e SellExecutedEvent) EventName() string      { return EventSellExecuted }
func (e SellExecutedEvent) EventPool() PoolID      { return e.PoolID }
func (e ComboBuyExecutedEvent) EventName() string  { return EventComboBuyExecuted }
func (e ComboBuyExecutedEvent) EventPool() PoolID  { return e.PoolID }
func (e ComboSellExecutedEvent) EventName() string { return EventComboSellExecuted }
func (e ComboSellExecutedEvent) EventPool() PoolID { return e.PoolID }
func (e JoinExecutedEvent) EventName() string      { return EventJoinExecuted }
func (e JoinExecutedEvent) EventPool() PoolID      { return e.PoolID }
func (e ExitExecutedEvent) EventName() string      { return EventExitExecuted }
func (e ExitExecutedEvent) EventPool() PoolID      { return e.PoolID }
func (e FeesWithdrawnEvent) EventName() string     { return EventFeesWithdrawn }
func (e FeesWithdrawnEvent) EventPool() PoolID     { return e.PoolID }
func (e PoolDestroyedEvent) EventName() string     { return EventPoolDestroyed }
func (e PoolDestroyedEvent) EventPool() PoolID     { return e.PoolID }
