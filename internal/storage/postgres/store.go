package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"neoswaps/internal/model"
	"neoswaps/internal/pool"
	"neoswaps/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS pools (
	pool_id BIGINT PRIMARY KEY,
	market_id BIGINT UNIQUE,
	record BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS pool_sequence (
	name TEXT PRIMARY KEY,
	next_id BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS pool_window_metrics (
	pool_id BIGINT NOT NULL,
	window_size_seconds BIGINT NOT NULL,
	window_start_ts TIMESTAMPTZ NOT NULL,
	window_end_ts TIMESTAMPTZ NOT NULL,
	trade_count BIGINT NOT NULL,
	join_count BIGINT NOT NULL,
	exit_count BIGINT NOT NULL,
	volume_in NUMERIC NOT NULL,
	volume_out NUMERIC NOT NULL,
	swap_fees NUMERIC NOT NULL,
	external_fees NUMERIC NOT NULL,
	fees_withdrawn NUMERIC NOT NULL,
	fee_yield NUMERIC,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (pool_id, window_size_seconds, window_start_ts)
);
CREATE TABLE IF NOT EXISTS aggregator_state (
	name TEXT PRIMARY KEY,
	last_processed_ts BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for pools and metrics.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.PoolStore = (*Store)(nil)

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Begin opens a serializable transaction over the pool tables.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// Tx implements storage.Tx on a pgx transaction.
type Tx struct {
	tx pgx.Tx
}

func (t *Tx) Pool(ctx context.Context, id model.PoolID) (*pool.Pool, error) {
	var record []byte
	row := t.tx.QueryRow(ctx, `SELECT record FROM pools WHERE pool_id=$1`, int64(id))
	if err := row.Scan(&record); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("pool %d: %w", id, storage.ErrNotFound)
		}
		return nil, err
	}
	return storage.DecodePool(record)
}

func (t *Tx) Pools(ctx context.Context) ([]model.PoolID, error) {
	rows, err := t.tx.Query(ctx, `SELECT pool_id FROM pools ORDER BY pool_id`)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}
	out := make([]model.PoolID, len(ids))
	for i, id := range ids {
		out[i] = model.PoolID(id)
	}
	return out, nil
}

func (t *Tx) PoolIDByMarket(ctx context.Context, market model.MarketID) (model.PoolID, bool, error) {
	var id int64
	row := t.tx.QueryRow(ctx, `SELECT pool_id FROM pools WHERE market_id=$1`, int64(market))
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return model.PoolID(id), true, nil
}

func (t *Tx) PutPool(ctx context.Context, p *pool.Pool) error {
	record, err := storage.EncodePool(p)
	if err != nil {
		return fmt.Errorf("encode pool %d: %w", p.ID, err)
	}
	var market *int64
	if m, ok := p.Type.Market(); ok {
		v := int64(m)
		market = &v
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO pools (pool_id, market_id, record, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (pool_id) DO UPDATE
		SET record = EXCLUDED.record, updated_at = now()
	`, int64(p.ID), market, record)
	return err
}

func (t *Tx) DeletePool(ctx context.Context, id model.PoolID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM pools WHERE pool_id=$1`, int64(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pool %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (t *Tx) NextPoolID(ctx context.Context) (model.PoolID, error) {
	var next int64
	row := t.tx.QueryRow(ctx, `
		INSERT INTO pool_sequence (name, next_id) VALUES ('pools', 1)
		ON CONFLICT (name) DO UPDATE SET next_id = pool_sequence.next_id + 1
		RETURNING next_id - 1
	`)
	if err := row.Scan(&next); err != nil {
		return 0, err
	}
	return model.PoolID(next), nil
}

func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				pool_id, window_size_seconds, window_start_ts, window_end_ts,
				trade_count, join_count, exit_count, volume_in, volume_out,
				swap_fees, external_fees, fees_withdrawn, fee_yield, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now(),now())
			ON CONFLICT (pool_id, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				trade_count = EXCLUDED.trade_count,
				join_count = EXCLUDED.join_count,
				exit_count = EXCLUDED.exit_count,
				volume_in = EXCLUDED.volume_in,
				volume_out = EXCLUDED.volume_out,
				swap_fees = EXCLUDED.swap_fees,
				external_fees = EXCLUDED.external_fees,
				fees_withdrawn = EXCLUDED.fees_withdrawn,
				fee_yield = EXCLUDED.fee_yield,
				updated_at = now()
		`,
			int64(m.PoolID),
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.TradeCount),
			int64(m.JoinCount),
			int64(m.ExitCount),
			m.VolumeIn,
			m.VolumeOut,
			m.SwapFees,
			m.ExternalFees,
			m.FeesWithdrawn,
			m.FeeYield,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM aggregator_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO aggregator_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}
