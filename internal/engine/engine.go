// Package engine settles neo-swaps trades, liquidity changes and pool
// deployments. Every public operation runs as one all-or-nothing transaction
// over the pool store and the ledger.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"neoswaps/internal/fees"
	"neoswaps/internal/fixed"
	"neoswaps/internal/ledger"
	"neoswaps/internal/metrics"
	"neoswaps/internal/model"
	"neoswaps/internal/pool"
	"neoswaps/internal/storage"
)

const (
	MinLiquidity                 = fixed.One
	MinSwapFee                   = fixed.One / 1000
	MinRelativeLPPositionValue   = fixed.Hundredth
	ExitFee                      = fixed.Hundredth / 10
	DefaultMaxSwapFee            = fixed.One / 10
	DefaultMaxAssets             = 128
	DefaultMaxLiquidityTreeDepth = 9
	DefaultMaxSplits             = 64
)

// Config holds the engine limits.
type Config struct {
	MaxAssets             int
	MaxSplits             int
	MaxLiquidityTreeDepth uint32
	MaxSwapFee            *uint256.Int
}

func DefaultConfig() Config {
	return Config{
		MaxAssets:             DefaultMaxAssets,
		MaxSplits:             DefaultMaxSplits,
		MaxLiquidityTreeDepth: DefaultMaxLiquidityTreeDepth,
		MaxSwapFee:            uint256.NewInt(DefaultMaxSwapFee),
	}
}

// Deps are the collaborators the engine settles against.
type Deps struct {
	Store        storage.PoolStore
	Ledger       ledger.Ledger
	Markets      ledger.MarketInfo
	CompleteSets ledger.CompleteSets
	Tokens       ledger.CombinatorialTokens
	ExternalFees ledger.ExternalFees
}

type Engine struct {
	cfg     Config
	store   storage.PoolStore
	ledger  ledger.Ledger
	markets ledger.MarketInfo
	sets    ledger.CompleteSets
	tokens  ledger.CombinatorialTokens
	fees    *fees.Distributor

	logger  *zap.Logger
	metrics *metrics.EngineMetrics
	sink    storage.EventSink
	now     func() time.Time

	mu  sync.Mutex
	seq uint64
}

func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Store == nil || deps.Ledger == nil || deps.Markets == nil {
		return nil, fmt.Errorf("engine: store, ledger and markets are required")
	}
	if deps.CompleteSets == nil || deps.Tokens == nil {
		return nil, fmt.Errorf("engine: complete set and combinatorial token operations are required")
	}
	if cfg.MaxAssets < 2 {
		return nil, fmt.Errorf("engine: max assets must be at least 2, got %d", cfg.MaxAssets)
	}
	if cfg.MaxLiquidityTreeDepth == 0 || cfg.MaxLiquidityTreeDepth > 31 {
		return nil, fmt.Errorf("engine: invalid liquidity tree depth %d", cfg.MaxLiquidityTreeDepth)
	}
	if cfg.MaxSwapFee == nil {
		cfg.MaxSwapFee = uint256.NewInt(DefaultMaxSwapFee)
	}
	if cfg.MaxSwapFee.Lt(uint256.NewInt(MinSwapFee)) {
		return nil, fmt.Errorf("engine: max swap fee %s below minimum", fixed.Format(cfg.MaxSwapFee))
	}
	return &Engine{
		cfg:     cfg,
		store:   deps.Store,
		ledger:  deps.Ledger,
		markets: deps.Markets,
		sets:    deps.CompleteSets,
		tokens:  deps.Tokens,
		fees:    fees.NewDistributor(deps.Ledger, deps.ExternalFees),
		logger:  zap.NewNop(),
		now:     time.Now,
	}, nil
}

func (e *Engine) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e.logger = logger
}

func (e *Engine) SetMetrics(m *metrics.EngineMetrics) { e.metrics = m }

// SetEventSink installs the sink that receives events after each commit.
func (e *Engine) SetEventSink(sink storage.EventSink) { e.sink = sink }

func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	e.now = now
}

// call is the scope of one transaction.
type call struct {
	ctx    context.Context
	tx     storage.Tx
	events []model.Event
	after  []func()
}

func (c *call) emit(ev model.Event) { c.events = append(c.events, ev) }

// onCommit registers fn to run once the transaction has committed.
func (c *call) onCommit(fn func()) { c.after = append(c.after, fn) }

// transact runs fn inside a store transaction and a ledger snapshot. Any
// error rolls both back; events are published only after commit.
func (e *Engine) transact(ctx context.Context, op string, fn func(c *call) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	snapshot := e.ledger.Snapshot()
	abort := func(err error) error {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			e.logger.Warn("rollback failed", zap.String("op", op), zap.Error(rbErr))
		}
		e.ledger.RevertToSnapshot(snapshot)
		class := Classify(err)
		e.metrics.ObserveFailure(op, class.String())
		e.logger.Debug("call rolled back", zap.String("op", op), zap.Stringer("class", class), zap.Error(err))
		return err
	}

	c := &call{ctx: ctx, tx: tx}
	if err := fn(c); err != nil {
		return abort(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return abort(fmt.Errorf("%s: commit: %w", op, err))
	}
	e.ledger.Finalise()

	e.metrics.ObserveCall(op)
	for _, fn := range c.after {
		fn()
	}
	e.publish(op, c.events)
	e.logger.Debug("call committed", zap.String("op", op), zap.Int("events", len(c.events)))
	return nil
}

func (e *Engine) publish(op string, events []model.Event) {
	if e.sink == nil || len(events) == 0 {
		return
	}
	at := e.now()
	records := make([]model.EventRecord, 0, len(events))
	for _, ev := range events {
		e.seq++
		rec, err := model.NewEventRecord(e.seq, ev, at)
		if err != nil {
			e.logger.Error("encode event", zap.String("op", op), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	if err := e.sink.PutEvents(records); err != nil {
		e.metrics.IncSinkFailure()
		e.logger.Error("publish events", zap.String("op", op), zap.Int("count", len(records)), zap.Error(err))
	}
}

func (e *Engine) loadPool(c *call, id model.PoolID) (*pool.Pool, error) {
	p, err := c.tx.Pool(c.ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrPoolNotFound, id)
		}
		return nil, err
	}
	return p, nil
}

// storePool writes p back after asserting the price invariant.
func (e *Engine) storePool(c *call, p *pool.Pool) error {
	if err := p.CheckPriceSum(); err != nil {
		return fmt.Errorf("%w: pool %d: %w", ErrUnexpected, p.ID, err)
	}
	return c.tx.PutPool(c.ctx, p)
}

// marketsActive reports whether every market of p is active.
func (e *Engine) marketsActive(p *pool.Pool) (bool, error) {
	for _, id := range p.Type.Markets {
		market, err := e.markets.Market(id)
		if err != nil {
			return false, err
		}
		if market.Status != model.MarketActive {
			return false, nil
		}
	}
	return true, nil
}

func (e *Engine) ensureActive(p *pool.Pool) error {
	active, err := e.marketsActive(p)
	if err != nil {
		return err
	}
	if !active {
		return fmt.Errorf("%w: pool %d", ErrMarketNotActive, p.ID)
	}
	return nil
}

// Info is a read-only view of a pool.
type Info struct {
	ID          model.PoolID
	Type        model.PoolType
	Account     model.AccountID
	Collateral  model.Asset
	Assets      []model.Asset
	Reserves    []*uint256.Int
	SpotPrices  []*uint256.Int
	Liquidity   *uint256.Int
	SwapFee     *uint256.Int
	TotalShares *uint256.Int
	Providers   int
}

// PoolInfo returns the current state of a pool.
func (e *Engine) PoolInfo(ctx context.Context, id model.PoolID) (Info, error) {
	var info Info
	err := e.view(ctx, func(c *call) error {
		p, err := e.loadPool(c, id)
		if err != nil {
			return err
		}
		prices, err := p.SpotPrices()
		if err != nil {
			return err
		}
		info = Info{
			ID:          p.ID,
			Type:        p.Type,
			Account:     p.Account,
			Collateral:  p.Collateral,
			Assets:      p.Assets,
			Reserves:    p.Reserves,
			SpotPrices:  prices,
			Liquidity:   p.Liquidity,
			SwapFee:     p.SwapFee,
			TotalShares: p.TotalShares(),
			Providers:   p.Tree.Len(),
		}
		return nil
	})
	return info, err
}

// PendingFees returns the fees who could withdraw from a pool now.
func (e *Engine) PendingFees(ctx context.Context, id model.PoolID, who model.AccountID) (*uint256.Int, error) {
	var owed *uint256.Int
	err := e.view(ctx, func(c *call) error {
		p, err := e.loadPool(c, id)
		if err != nil {
			return err
		}
		owed, err = p.Tree.PendingFees(who)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNotAllowed, err)
		}
		return nil
	})
	return owed, err
}

// Pools lists the ids of all live pools.
func (e *Engine) Pools(ctx context.Context) ([]model.PoolID, error) {
	var ids []model.PoolID
	err := e.view(ctx, func(c *call) error {
		var err error
		ids, err = c.tx.Pools(c.ctx)
		return err
	})
	return ids, err
}

// view runs fn in a transaction that is always rolled back.
func (e *Engine) view(ctx context.Context, fn func(c *call) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	return fn(&call{ctx: ctx, tx: tx})
}

func amountString(x *uint256.Int) string { return fixed.Format(x) }

func amountStrings(xs []*uint256.Int) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = fixed.Format(x)
	}
	return out
}

func toFloat(x *uint256.Int) float64 {
	f, _ := fixed.Float(x).Float64()
	return f
}
