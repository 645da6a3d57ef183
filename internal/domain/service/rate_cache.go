package service

import (
	"context"
	"time"
)

// RatesCacheKey is the single global key holding all current rates
const RatesCacheKey = "currencies_data"

// RateCache is a key-value store with per-entry expiry
type RateCache interface {
	// Get returns the payload if it was written and has not expired
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put replaces the entry wholesale
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}
