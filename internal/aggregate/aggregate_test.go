package aggregate

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neoswaps/internal/fixed"
	"neoswaps/internal/model"
)

const base = uint64(1_700_000_100)

type captureWriter struct {
	calls   int
	metrics []model.PoolWindowMetrics
}

func (w *captureWriter) UpsertWindowMetrics(_ context.Context, metrics []model.PoolWindowMetrics) error {
	w.calls++
	w.metrics = append(w.metrics, metrics...)
	return nil
}

func eventLog(t *testing.T, events ...struct {
	at uint64
	ev model.Event
}) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, e := range events {
		rec, err := model.NewEventRecord(uint64(i), e.ev, time.Unix(int64(e.at), 0))
		require.NoError(t, err)
		require.NoError(t, enc.Encode(rec))
	}
	return &buf
}

func sampleLog(t *testing.T) []byte {
	type entry = struct {
		at uint64
		ev model.Event
	}
	buf := eventLog(t,
		entry{base, model.PoolDeployedEvent{PoolID: 0, PoolType: model.Standard(1), PoolSharesAmount: "100"}},
		entry{base + 10, model.BuyExecutedEvent{PoolID: 0, AmountIn: "10", AmountOut: "19.5", SwapFeeAmount: "0.1", ExternalFeeAmount: "0.2"}},
		entry{base + 20, model.SellExecutedEvent{PoolID: 0, AmountIn: "5", AmountOut: "2.4", SwapFeeAmount: "0.05", ExternalFeeAmount: "0.1"}},
		entry{base + 400, model.JoinExecutedEvent{PoolID: 0, PoolSharesAmount: "50"}},
		entry{base + 410, model.FeesWithdrawnEvent{PoolID: 0, Amount: "0.15"}},
	)
	return buf.Bytes()
}

func TestProcessBuildsWindows(t *testing.T) {
	w := &captureWriter{}
	agg := NewAggregator(Config{WindowSeconds: 300}, w, nil)

	require.NoError(t, agg.Process(context.Background(), bytes.NewReader(sampleLog(t))))
	require.Len(t, w.metrics, 2)

	first := w.metrics[0]
	assert.Equal(t, time.Unix(int64(base), 0).UTC(), first.WindowStart)
	assert.Equal(t, uint64(2), first.TradeCount)
	assert.Equal(t, "15.0000000000", first.VolumeIn)
	assert.Equal(t, "21.9000000000", first.VolumeOut)
	assert.Equal(t, "0.1500000000", first.SwapFees)
	assert.Equal(t, "0.3000000000", first.ExternalFees)
	require.NotNil(t, first.FeeYield)
	assert.Equal(t, "157.680000000000000000", *first.FeeYield)

	second := w.metrics[1]
	assert.Equal(t, uint64(0), second.TradeCount)
	assert.Equal(t, uint64(1), second.JoinCount)
	assert.Equal(t, "0.1500000000", second.FeesWithdrawn)
	assert.Nil(t, second.FeeYield)
}

func TestProcessResumesFromState(t *testing.T) {
	store := &FileStateStore{Path: filepath.Join(t.TempDir(), "state.json")}
	log := sampleLog(t)

	w := &captureWriter{}
	require.NoError(t, NewAggregator(Config{WindowSeconds: 300, StateStore: store}, w, nil).Process(context.Background(), bytes.NewReader(log)))
	last, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, base+410, last)

	again := &captureWriter{}
	require.NoError(t, NewAggregator(Config{WindowSeconds: 300, StateStore: store}, again, nil).Process(context.Background(), bytes.NewReader(log)))
	assert.Zero(t, again.calls)
}

func TestFileStateStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cursor.json")
	store := &FileStateStore{Path: path}

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, base))
	require.NoError(t, store.Save(ctx, base+60))
	last, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, base+60, last)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, _, err = store.Load(ctx)
	require.Error(t, err)

	var disabled *FileStateStore
	require.NoError(t, disabled.Save(ctx, base))
}

func TestRecomputeFromKeepsShareHistory(t *testing.T) {
	w := &captureWriter{}
	agg := NewAggregator(Config{WindowSeconds: 300, RecomputeFrom: base + 5}, w, nil)

	require.NoError(t, agg.Process(context.Background(), bytes.NewReader(sampleLog(t))))
	require.Len(t, w.metrics, 2)
	require.NotNil(t, w.metrics[0].FeeYield)
	assert.Equal(t, uint64(2), w.metrics[0].TradeCount)
}

func TestProcessSkipsMalformedLines(t *testing.T) {
	input := append([]byte("not json\n"), sampleLog(t)...)
	w := &captureWriter{}
	require.NoError(t, NewAggregator(Config{WindowSeconds: 300}, w, nil).Process(context.Background(), bytes.NewReader(input)))
	assert.Len(t, w.metrics, 2)
}

func TestProcessRequiresWindow(t *testing.T) {
	err := NewAggregator(Config{}, &captureWriter{}, nil).Process(context.Background(), bytes.NewReader(nil))
	assert.Error(t, err)
}

func TestFeeYield(t *testing.T) {
	assert.Nil(t, feeYield(fixed.Zero(), fixed.Units(1), 60))
	assert.Nil(t, feeYield(fixed.Units(1), nil, 60))
	got := feeYield(fixed.Units(1), fixed.Units(365), 365*24*3600)
	require.NotNil(t, got)
	assert.Equal(t, "0.002739726027397260", *got)
}

func TestJSONLWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "metrics.jsonl")
	w := &JSONLWriter{Path: path}
	batch := []model.PoolWindowMetrics{{PoolID: 3, VolumeIn: "1.0000000000"}}
	require.NoError(t, w.UpsertWindowMetrics(context.Background(), batch))
	require.NoError(t, w.UpsertWindowMetrics(context.Background(), batch))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(data, []byte("\n")))
}
