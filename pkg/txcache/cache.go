// Package txcache implements a bounded hybrid store: a fixed-capacity
// in-memory LRU map backed by a kvstore.Store for overflow. Entries live
// purely in memory until capacity forces the least recently used one onto
// disk, so the backing store only ever holds cold data; no entry is ever
// lost regardless of how far the caller inserts beyond capacity.
package txcache

import (
	"errors"
	"fmt"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/paystream/paystream/pkg/kvstore"
)

var ErrInvalidCapacity = errors.New("invalid cache capacity")

// Codec serializes keys and values to the compact binary form stored on
// disk. Key encoding must be deterministic; it doubles as the store key.
type Codec[K comparable, V any] interface {
	EncodeKey(key K) []byte
	EncodeValue(value *V) ([]byte, error)
	DecodeValue(data []byte) (*V, error)
}

// Cache is the bounded memory/disk hybrid map. It is owned by exactly one
// account on one worker and is not safe for concurrent use.
type Cache[K comparable, V any] struct {
	resident *lru.Cache[K, *V]
	store    kvstore.Store
	codec    Codec[K, V]
	capacity int
	dir      string
}

// New creates a cache with the given fixed capacity, spilling into a store
// opened by opener inside a fresh temporary directory. The directory and
// its contents are removed on Close; spillover is scoped to one run.
func New[K comparable, V any](capacity int, codec Codec[K, V], opener kvstore.Opener) (*Cache[K, V], error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}

	dir, err := os.MkdirTemp("", "txcache-*")
	if err != nil {
		return nil, fmt.Errorf("create spill dir: %w", err)
	}

	store, err := opener(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("open backing store: %w", err)
	}

	resident, err := lru.New[K, *V](capacity)
	if err != nil {
		_ = store.Close()
		_ = os.RemoveAll(dir)
		return nil, err
	}

	return &Cache[K, V]{
		resident: resident,
		store:    store,
		codec:    codec,
		capacity: capacity,
		dir:      dir,
	}, nil
}

// Put inserts or overwrites the value under key. A resident key is updated
// in place and promoted with no eviction. A new key at capacity first
// spills the single least recently used resident entry to the backing
// store; if that spill fails the put fails as a whole and the new entry is
// not inserted.
func (c *Cache[K, V]) Put(key K, value *V) error {
	if c.resident.Contains(key) {
		c.resident.Add(key, value)
		return nil
	}

	if c.resident.Len() == c.capacity {
		oldKey, oldValue, ok := c.resident.GetOldest()
		if ok {
			if err := c.spill(oldKey, oldValue); err != nil {
				return err
			}
			c.resident.RemoveOldest()
		}
	}

	c.resident.Add(key, value)
	return nil
}

func (c *Cache[K, V]) spill(key K, value *V) error {
	valueBytes, err := c.codec.EncodeValue(value)
	if err != nil {
		return fmt.Errorf("encode evicted entry: %w", err)
	}
	if err := c.store.Put(c.codec.EncodeKey(key), valueBytes); err != nil {
		return fmt.Errorf("spill evicted entry: %w", err)
	}
	return nil
}

// GetMut returns a mutable handle to the value under key, promoting its
// recency. A non-resident key is probed in the backing store and, if found,
// rehydrated through Put, which may evict a different resident entry. A key
// in neither location reports (nil, false) without error.
func (c *Cache[K, V]) GetMut(key K) (*V, bool, error) {
	if value, ok := c.resident.Get(key); ok {
		return value, true, nil
	}

	data, found, err := c.store.Get(c.codec.EncodeKey(key))
	if err != nil {
		return nil, false, fmt.Errorf("probe backing store: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	value, err := c.codec.DecodeValue(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode spilled entry: %w", err)
	}
	if err := c.Put(key, value); err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// ContainsKey reports presence in memory or on disk. It never promotes
// recency and never mutates cache state.
func (c *Cache[K, V]) ContainsKey(key K) (bool, error) {
	if c.resident.Contains(key) {
		return true, nil
	}
	found, err := c.store.Contains(c.codec.EncodeKey(key))
	if err != nil {
		return false, fmt.Errorf("probe backing store: %w", err)
	}
	return found, nil
}

// ResidentLen returns the number of in-memory entries.
func (c *Cache[K, V]) ResidentLen() int {
	return c.resident.Len()
}

// Close tears down the backing store and reclaims its on-disk storage.
func (c *Cache[K, V]) Close() error {
	err := c.store.Close()
	if rmErr := os.RemoveAll(c.dir); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}
