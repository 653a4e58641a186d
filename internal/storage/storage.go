package storage

import (
	"context"
	"errors"

	"neoswaps/internal/model"
	"neoswaps/internal/pool"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrTxClosed  = errors.New("transaction already closed")
	ErrCorrupted = errors.New("corrupted record")
)

// PoolStore is the durable home of pools and the market index.
type PoolStore interface {
	Begin(ctx context.Context) (Tx, error)
	Close() error
}

// Tx is one all-or-nothing unit of pool reads and writes. Pools returned by
// Pool are private copies; writes become visible to other transactions only
// after Commit.
type Tx interface {
	Pool(ctx context.Context, id model.PoolID) (*pool.Pool, error)
	Pools(ctx context.Context) ([]model.PoolID, error)
	PoolIDByMarket(ctx context.Context, market model.MarketID) (model.PoolID, bool, error)
	PutPool(ctx context.Context, p *pool.Pool) error
	DeletePool(ctx context.Context, id model.PoolID) error
	NextPoolID(ctx context.Context) (model.PoolID, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// EventSink receives the events of committed calls.
type EventSink interface {
	PutEvents(records []model.EventRecord) error
}
