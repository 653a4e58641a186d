package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neoswaps/internal/fixed"
	"neoswaps/internal/liquidity"
	"neoswaps/internal/model"
	"neoswaps/internal/pool"
	"neoswaps/internal/storage"
	"neoswaps/internal/storage/memory"
	pebblestore "neoswaps/internal/storage/pebble"
)

func samplePool(t *testing.T, id model.PoolID, market model.MarketID) *pool.Pool {
	t.Helper()
	tree := liquidity.New(5)
	_, err := tree.Join(common.HexToAddress("0x11"), fixed.Units(10))
	require.NoError(t, err)
	_, err = tree.Join(common.HexToAddress("0x22"), fixed.Units(5))
	require.NoError(t, err)
	require.NoError(t, tree.DepositFees(fixed.Units(3)))
	_, err = tree.WithdrawFees(common.HexToAddress("0x22"))
	require.NoError(t, err)
	require.NoError(t, tree.Exit(common.HexToAddress("0x22"), fixed.Units(5)))

	return &pool.Pool{
		ID:         id,
		Type:       model.Standard(market),
		Account:    pool.AccountFor(id),
		Collateral: model.Currency(0),
		Assets:     []model.Asset{model.Outcome(market, 0), model.Outcome(market, 1)},
		Reserves:   []*uint256.Int{fixed.Units(10), fixed.Units(4)},
		Liquidity:  fixed.Frac(1443, 100),
		SwapFee:    fixed.Cent(),
		Tree:       tree,
	}
}

func TestCodecRoundTrip(t *testing.T) {
	p := samplePool(t, 4, 9)
	data, err := storage.EncodePool(p)
	require.NoError(t, err)

	got, err := storage.DecodePool(data)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.Type, got.Type)
	assert.Equal(t, p.Account, got.Account)
	assert.Equal(t, p.Assets, got.Assets)
	assert.Equal(t, p.Reserves, got.Reserves)
	assert.Equal(t, p.Liquidity, got.Liquidity)
	assert.Equal(t, p.Tree.Nodes(), got.Tree.Nodes())
	assert.Equal(t, p.Tree.Abandoned(), got.Tree.Abandoned())

	_, err = storage.DecodePool([]byte{0x01, 0x02})
	require.ErrorIs(t, err, storage.ErrCorrupted)
}

func openStores(t *testing.T) map[string]storage.PoolStore {
	t.Helper()
	pdb, err := pebblestore.Open(filepath.Join(t.TempDir(), "pools"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pdb.Close() })
	return map[string]storage.PoolStore{
		"memory": memory.NewStore(),
		"pebble": pdb,
	}
}

func TestStoreTransactions(t *testing.T) {
	ctx := context.Background()
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			tx, err := store.Begin(ctx)
			require.NoError(t, err)
			id, err := tx.NextPoolID(ctx)
			require.NoError(t, err)
			assert.Equal(t, model.PoolID(0), id)
			require.NoError(t, tx.PutPool(ctx, samplePool(t, id, 7)))

			got, err := tx.Pool(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, id, got.ID)
			require.NoError(t, tx.Commit(ctx))
			require.ErrorIs(t, tx.Commit(ctx), storage.ErrTxClosed)

			tx, err = store.Begin(ctx)
			require.NoError(t, err)
			found, ok, err := tx.PoolIDByMarket(ctx, 7)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, id, found)

			next, err := tx.NextPoolID(ctx)
			require.NoError(t, err)
			assert.Equal(t, model.PoolID(1), next)
			require.NoError(t, tx.DeletePool(ctx, id))
			require.NoError(t, tx.Rollback(ctx))

			tx, err = store.Begin(ctx)
			require.NoError(t, err)
			defer tx.Rollback(ctx)
			ids, err := tx.Pools(ctx)
			require.NoError(t, err)
			assert.Equal(t, []model.PoolID{id}, ids)
			next, err = tx.NextPoolID(ctx)
			require.NoError(t, err)
			assert.Equal(t, model.PoolID(1), next)

			require.NoError(t, tx.DeletePool(ctx, id))
			_, err = tx.Pool(ctx, id)
			require.ErrorIs(t, err, storage.ErrNotFound)
			_, ok, err = tx.PoolIDByMarket(ctx, 7)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestJsonlEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "events.jsonl")
	sink := storage.NewJsonlStorage(path)

	at := time.Unix(1_700_000_000, 0)
	ev := model.FeesWithdrawnEvent{Who: common.HexToAddress("0x11"), PoolID: 2, Amount: "1.5"}
	rec, err := model.NewEventRecord(1, ev, at)
	require.NoError(t, err)
	require.NoError(t, sink.PutEvents([]model.EventRecord{rec}))
	require.NoError(t, sink.PutEvents(nil))

	got, err := storage.ReadEvents(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec.ID, got[0].ID)
	assert.Equal(t, model.EventFeesWithdrawn, got[0].EventName)
	assert.Equal(t, model.PoolID(2), got[0].PoolID)
	assert.JSONEq(t, string(rec.Decoded), string(got[0].Decoded))
}
