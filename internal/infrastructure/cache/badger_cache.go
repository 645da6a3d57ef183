package cache

import (
	"context"
	"errors"
	"time"

	"github.com/damon-houk/cbr-rates-service/internal/apperrors"
	"github.com/dgraph-io/badger/v3"
)

const cacheKeyPrefix = "cache:"

// BadgerRateCache keeps cache entries in BadgerDB using its native entry TTL.
// Badger expires entries with one second resolution.
type BadgerRateCache struct {
	db *badger.DB
}

// NewBadgerRateCache creates a cache on top of an open BadgerDB
func NewBadgerRateCache(db *badger.DB) *BadgerRateCache {
	return &BadgerRateCache{db: db}
}

// Get retrieves a payload if present and not expired
func (c *BadgerRateCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	var payload []byte

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cacheKeyPrefix + key))
		if err != nil {
			return err
		}

		payload, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, apperrors.NewJobError(apperrors.ErrCache, "read cache entry", err)
	}

	return payload, true, nil
}

// Put stores a payload with the given time to live
func (c *BadgerRateCache) Put(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(cacheKeyPrefix+key), payload).WithTTL(ttl)
		return txn.SetEntry(entry)
	})

	if err != nil {
		return apperrors.NewJobError(apperrors.ErrCache, "write cache entry", err)
	}

	return nil
}
