// Package cache holds the rendered layer config documents between renders.
package cache

import (
	"context"
	"time"
)

// Interface is the shared tier behind the in-process LRU. redisstore.Client
// implements it.
type Interface interface {
	MGet(ctx context.Context, keys []string) (map[string][]byte, error)
	SetWithIndex(ctx context.Context, index, key string, val []byte, ttl time.Duration) error
	DelIndex(ctx context.Context, index string) (int, error)
}
