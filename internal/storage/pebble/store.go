// Package pebble persists pools in a Pebble key-value database. Every engine
// transaction is an indexed batch, committed with a synced write.
package pebble

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"neoswaps/internal/storage"
)

var ErrDBClosed = errors.New("database is closed")

type Store struct {
	db *pebble.DB
}

var _ storage.PoolStore = (*Store)(nil)

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("pebble path is required")
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Begin(_ context.Context) (storage.Tx, error) {
	if s.db == nil {
		return nil, ErrDBClosed
	}
	return storage.NewKVTx(&batch{b: s.db.NewIndexedBatch()}), nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

type batch struct {
	b *pebble.Batch
}

func (b *batch) Get(key []byte) ([]byte, error) {
	val, closer, err := b.b.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	return bytes.Clone(val), nil
}

func (b *batch) Set(key, value []byte) error {
	return b.b.Set(key, value, nil)
}

func (b *batch) Delete(key []byte) error {
	return b.b.Delete(key, nil)
}

func (b *batch) Scan(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := b.b.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(bytes.Clone(iter.Key()), bytes.Clone(iter.Value())); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (b *batch) Commit() error {
	defer b.b.Close()
	return b.b.Commit(pebble.Sync)
}

func (b *batch) Discard() error {
	return b.b.Close()
}

func upperBound(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
