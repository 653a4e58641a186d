// Package memory is an in-process PoolStore. Each transaction buffers its
// writes in an overlay that is applied to the committed map on Commit.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"neoswaps/internal/storage"
)

type Store struct {
	mu   sync.Mutex
	data map[string][]byte
}

var _ storage.PoolStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Begin(_ context.Context) (storage.Tx, error) {
	return storage.NewKVTx(&batch{store: s, writes: make(map[string][]byte)}), nil
}

func (s *Store) Close() error { return nil }

type batch struct {
	store  *Store
	writes map[string][]byte // nil value marks a delete
}

func (b *batch) Get(key []byte) ([]byte, error) {
	if v, ok := b.writes[string(key)]; ok {
		if v == nil {
			return nil, storage.ErrNotFound
		}
		return bytes.Clone(v), nil
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	v, ok := b.store.data[string(key)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return bytes.Clone(v), nil
}

func (b *batch) Set(key, value []byte) error {
	b.writes[string(key)] = bytes.Clone(value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.writes[string(key)] = nil
	return nil
}

func (b *batch) Scan(prefix []byte, fn func(key, value []byte) error) error {
	merged := make(map[string][]byte)
	b.store.mu.Lock()
	for k, v := range b.store.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			merged[k] = v
		}
	}
	b.store.mu.Unlock()
	for k, v := range b.writes {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if v == nil {
			delete(merged, k)
		} else {
			merged[k] = v
		}
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn([]byte(k), bytes.Clone(merged[k])); err != nil {
			return err
		}
	}
	return nil
}

func (b *batch) Commit() error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for k, v := range b.writes {
		if v == nil {
			delete(b.store.data, k)
		} else {
			b.store.data[k] = v
		}
	}
	b.writes = nil
	return nil
}

func (b *batch) Discard() error {
	b.writes = nil
	return nil
}
