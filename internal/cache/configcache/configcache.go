// Package configcache is a two-tier cache of rendered layer documents: an
// expiring in-process LRU in front of an optional shared redis tier.
package configcache

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mohammed-shakir/tms-layers/internal/cache"
	"github.com/mohammed-shakir/tms-layers/internal/cache/keys"
	"github.com/mohammed-shakir/tms-layers/internal/core/observability"
)

const (
	TierLocal  = "local"
	TierRemote = "remote"
)

type Config struct {
	LocalSize int
	LocalTTL  time.Duration
	RemoteTTL time.Duration
	// OpTimeout bounds each redis call; a slow redis reads as a miss.
	OpTimeout time.Duration
}

type Cache struct {
	cfg    Config
	local  *expirable.LRU[string, []byte]
	remote cache.Interface
	logger *slog.Logger
}

// New builds the cache. remote may be nil, in which case only the local tier
// is used.
func New(cfg Config, remote cache.Interface, log *slog.Logger) *Cache {
	if cfg.LocalSize <= 0 {
		cfg.LocalSize = 1024
	}
	if cfg.LocalTTL <= 0 {
		cfg.LocalTTL = 30 * time.Second
	}
	if cfg.RemoteTTL <= 0 {
		cfg.RemoteTTL = 5 * time.Minute
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 250 * time.Millisecond
	}
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		cfg:    cfg,
		local:  expirable.NewLRU[string, []byte](cfg.LocalSize, nil, cfg.LocalTTL),
		remote: remote,
		logger: log.With("logger", "configcache"),
	}
}

// Get returns the cached document of layerID rendered against baseURL. A
// remote hit is copied into the local tier.
func (c *Cache) Get(ctx context.Context, layerID, baseURL string) ([]byte, bool) {
	key := keys.ConfigKey(layerID, baseURL)
	if b, ok := c.local.Get(key); ok {
		observability.IncCacheHit(TierLocal)
		return b, true
	}
	observability.IncCacheMiss(TierLocal)
	if c.remote == nil {
		return nil, false
	}

	rctx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()
	got, err := c.remote.MGet(rctx, []string{key})
	if err != nil {
		c.logger.Warn("remote cache get failed, treating as miss",
			slog.String("layer_id", layerID), slog.Any("error", err))
		observability.IncCacheMiss(TierRemote)
		return nil, false
	}
	b, ok := got[key]
	if !ok {
		observability.IncCacheMiss(TierRemote)
		return nil, false
	}
	observability.IncCacheHit(TierRemote)
	c.local.Add(key, b)
	return b, true
}

func (c *Cache) Put(ctx context.Context, layerID, baseURL string, doc []byte) {
	key := keys.ConfigKey(layerID, baseURL)
	c.local.Add(key, doc)
	if c.remote == nil {
		return
	}
	rctx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()
	if err := c.remote.SetWithIndex(rctx, keys.LayerIndexKey(layerID), key, doc, c.cfg.RemoteTTL); err != nil {
		c.logger.Warn("remote cache put failed",
			slog.String("layer_id", layerID), slog.Any("error", err))
	}
}

// InvalidateLayer drops every cached variant of layerID from both tiers and
// returns how many entries were removed.
func (c *Cache) InvalidateLayer(ctx context.Context, layerID string) (int, error) {
	n := 0
	prefix := keys.ConfigKeyPrefix(layerID)
	for _, k := range c.local.Keys() {
		if strings.HasPrefix(k, prefix) && c.local.Remove(k) {
			n++
		}
	}
	if c.remote == nil {
		return n, nil
	}
	rctx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()
	dropped, err := c.remote.DelIndex(rctx, keys.LayerIndexKey(layerID))
	if err != nil {
		return n, err
	}
	return n + dropped, nil
}

// Purge empties the local tier.
func (c *Cache) Purge() {
	c.local.Purge()
}

func (c *Cache) LocalLen() int {
	return c.local.Len()
}
