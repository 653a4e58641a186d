// Package aggregate folds the engine event log into per-pool window metrics.
package aggregate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"neoswaps/internal/fixed"
	"neoswaps/internal/model"
)

// MetricsWriter persists finished windows. postgres.Store implements it.
type MetricsWriter interface {
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
}

// Aggregator aggregates event records into pool window metrics.
type Aggregator struct {
	cfg          Config
	writer       MetricsWriter
	logger       *zap.Logger
	accumulators map[model.PoolID]*Accumulator
	shares       map[model.PoolID]*uint256.Int
}

func NewAggregator(cfg Config, writer MetricsWriter, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:          cfg,
		writer:       writer,
		logger:       logger,
		accumulators: make(map[model.PoolID]*Accumulator),
		shares:       make(map[model.PoolID]*uint256.Int),
	}
}

// Run executes aggregation over an event log JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()
	return a.Process(ctx, file)
}

// Process aggregates the event records read from r.
func (a *Aggregator) Process(ctx context.Context, r io.Reader) error {
	if a.writer == nil {
		return fmt.Errorf("metrics writer is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)
	maxTs := startTs
	var total, windows, skipped, failed int

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var record model.EventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			a.logger.Warn("decode event record", zap.Error(err))
			continue
		}
		amounts, err := decodeAmounts(record)
		if err != nil {
			failed++
			a.logger.Warn("decode event payload", zap.Error(err), zap.Uint64("seq", record.Seq))
			continue
		}

		if record.Timestamp <= startTs {
			a.trackShares(record, amounts)
			skipped++
			continue
		}

		start := windowStart(record.Timestamp, a.cfg.WindowSeconds)
		acc := a.accumulators[record.PoolID]
		if acc != nil && acc.WindowStart != start {
			batch = append(batch, a.flushAccumulator(acc))
			windows++
			acc = nil
		}
		if acc == nil {
			acc = NewAccumulator(record.PoolID, start, start+a.cfg.WindowSeconds)
			a.accumulators[record.PoolID] = acc
		}
		a.trackShares(record, amounts)

		if err := acc.AddEvent(record, amounts); err != nil {
			failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.Uint64("pool", uint64(record.PoolID)), zap.String("event", record.EventName))
			continue
		}

		if record.Timestamp > maxTs {
			maxTs = record.Timestamp
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.writer.UpsertWindowMetrics(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]

			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	for _, acc := range a.accumulators {
		batch = append(batch, a.flushAccumulator(acc))
		windows++
	}
	a.accumulators = make(map[model.PoolID]*Accumulator)

	if len(batch) > 0 {
		if err := a.writer.UpsertWindowMetrics(ctx, batch); err != nil {
			return err
		}
	}

	a.cfg.RecomputeFrom = maxTs
	if err := a.saveState(ctx); err != nil {
		return err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", total),
		zap.Int("windows", windows),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)

	return nil
}

// trackShares follows the outstanding pool shares so fee yields can be
// related to them.
func (a *Aggregator) trackShares(record model.EventRecord, amounts eventAmounts) {
	if record.EventName == model.EventPoolDestroyed {
		delete(a.shares, record.PoolID)
		return
	}
	if amounts.PoolSharesAmount == "" {
		return
	}
	delta, err := fixed.Parse(amounts.PoolSharesAmount)
	if err != nil {
		a.logger.Warn("parse pool shares", zap.Error(err), zap.Uint64("seq", record.Seq))
		return
	}
	current, ok := a.shares[record.PoolID]
	if !ok {
		current = new(uint256.Int)
		a.shares[record.PoolID] = current
	}
	switch record.EventName {
	case model.EventPoolDeployed, model.EventComboPoolDeployed:
		current.Set(delta)
	case model.EventJoinExecuted:
		current.Add(current, delta)
	case model.EventExitExecuted:
		if current.Lt(delta) {
			current.Clear()
		} else {
			current.Sub(current, delta)
		}
	}
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}

	if len(a.accumulators) == 0 {
		return a.cfg.StateStore.Save(ctx, a.cfg.RecomputeFrom)
	}

	safeTs := minOpenWindowStart(a.accumulators)
	if safeTs > 0 {
		safeTs = safeTs - 1
	}
	if safeTs == 0 {
		safeTs = a.cfg.RecomputeFrom
	}
	return a.cfg.StateStore.Save(ctx, safeTs)
}

func (a *Aggregator) flushAccumulator(acc *Accumulator) model.PoolWindowMetrics {
	return model.PoolWindowMetrics{
		PoolID:         acc.PoolID,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		TradeCount:     acc.TradeCount,
		JoinCount:      acc.JoinCount,
		ExitCount:      acc.ExitCount,
		VolumeIn:       fixed.Format(acc.VolumeIn),
		VolumeOut:      fixed.Format(acc.VolumeOut),
		SwapFees:       fixed.Format(acc.SwapFees),
		ExternalFees:   fixed.Format(acc.ExternalFees),
		FeesWithdrawn:  fixed.Format(acc.FeesWithdrawn),
		FeeYield:       feeYield(acc.SwapFees, a.shares[acc.PoolID], a.cfg.WindowSeconds),
	}
}

func minOpenWindowStart(acc map[model.PoolID]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}
