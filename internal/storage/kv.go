package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"neoswaps/internal/model"
	"neoswaps/internal/pool"
)

var (
	poolPrefix   = []byte("pool/")
	marketPrefix = []byte("market/")
	nextPoolKey  = []byte("meta/next_pool_id")
)

// Batch is a transactional key-value view. Get returns ErrNotFound for
// missing keys and must observe the batch's own writes.
type Batch interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Scan(prefix []byte, fn func(key, value []byte) error) error
	Commit() error
	Discard() error
}

// KVTx implements Tx over a Batch with a fixed key layout shared by the
// key-value backends.
type KVTx struct {
	batch  Batch
	closed bool
}

var _ Tx = (*KVTx)(nil)

func NewKVTx(b Batch) *KVTx {
	return &KVTx{batch: b}
}

func PoolKey(id model.PoolID) []byte {
	return append(append([]byte(nil), poolPrefix...), be64(uint64(id))...)
}

func MarketKey(id model.MarketID) []byte {
	return append(append([]byte(nil), marketPrefix...), be64(uint64(id))...)
}

func (t *KVTx) Pool(_ context.Context, id model.PoolID) (*pool.Pool, error) {
	if t.closed {
		return nil, ErrTxClosed
	}
	data, err := t.batch.Get(PoolKey(id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("pool %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return DecodePool(data)
}

func (t *KVTx) Pools(_ context.Context) ([]model.PoolID, error) {
	if t.closed {
		return nil, ErrTxClosed
	}
	var ids []model.PoolID
	err := t.batch.Scan(poolPrefix, func(key, _ []byte) error {
		if len(key) != len(poolPrefix)+8 {
			return fmt.Errorf("%w: pool key %x", ErrCorrupted, key)
		}
		ids = append(ids, model.PoolID(binary.BigEndian.Uint64(key[len(poolPrefix):])))
		return nil
	})
	return ids, err
}

func (t *KVTx) PoolIDByMarket(_ context.Context, market model.MarketID) (model.PoolID, bool, error) {
	if t.closed {
		return 0, false, ErrTxClosed
	}
	data, err := t.batch.Get(MarketKey(market))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if len(data) != 8 {
		return 0, false, fmt.Errorf("%w: market index %d", ErrCorrupted, market)
	}
	return model.PoolID(binary.BigEndian.Uint64(data)), true, nil
}

func (t *KVTx) PutPool(_ context.Context, p *pool.Pool) error {
	if t.closed {
		return ErrTxClosed
	}
	data, err := EncodePool(p)
	if err != nil {
		return fmt.Errorf("encode pool %d: %w", p.ID, err)
	}
	if err := t.batch.Set(PoolKey(p.ID), data); err != nil {
		return err
	}
	if market, ok := p.Type.Market(); ok {
		return t.batch.Set(MarketKey(market), be64(uint64(p.ID)))
	}
	return nil
}

func (t *KVTx) DeletePool(ctx context.Context, id model.PoolID) error {
	p, err := t.Pool(ctx, id)
	if err != nil {
		return err
	}
	if err := t.batch.Delete(PoolKey(id)); err != nil {
		return err
	}
	if market, ok := p.Type.Market(); ok {
		return t.batch.Delete(MarketKey(market))
	}
	return nil
}

func (t *KVTx) NextPoolID(_ context.Context) (model.PoolID, error) {
	if t.closed {
		return 0, ErrTxClosed
	}
	var next uint64
	data, err := t.batch.Get(nextPoolKey)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return 0, err
	case len(data) != 8:
		return 0, fmt.Errorf("%w: next pool id", ErrCorrupted)
	default:
		next = binary.BigEndian.Uint64(data)
	}
	if err := t.batch.Set(nextPoolKey, be64(next+1)); err != nil {
		return 0, err
	}
	return model.PoolID(next), nil
}

func (t *KVTx) Commit(_ context.Context) error {
	if t.closed {
		return ErrTxClosed
	}
	t.closed = true
	return t.batch.Commit()
}

func (t *KVTx) Rollback(_ context.Context) error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.batch.Discard()
}

func be64(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}
