// Package db defines the key-value storage contract used for caching.
package db

import (
	"context"
	"time"
)

// Store is the KV interface the caches depend on.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close()
}
