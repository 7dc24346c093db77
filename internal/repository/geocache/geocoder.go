// Package geocache caches area centroids in a key-value store so repeated
// sweeps skip the live geocoder, which is slow and rate-limited.
package geocache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/yycdata/mlxsweep/internal/db"
	"github.com/yycdata/mlxsweep/internal/domain"
)

const keyPrefix = "mlxsweep:geo:"

// store is the consumer interface for the centroid cache.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// geocoder is the upstream being decorated.
type geocoder interface {
	Centroid(ctx context.Context, area string) (domain.Point, error)
}

// CachedGeocoder caches centroid lookups.
type CachedGeocoder struct {
	inner      geocoder
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator. cacheTotal is a counter vec with label
// "result" ("hit"/"miss"), passed explicitly.
func New(
	inner geocoder,
	s store,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedGeocoder {
	return &CachedGeocoder{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

type cachedPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Centroid returns a cached centroid or asks the inner geocoder. Cache
// failures fall through to the live lookup; lookup failures are never
// cached.
func (c *CachedGeocoder) Centroid(ctx context.Context, area string) (domain.Point, error) {
	key := cacheKey(area)

	if p, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return p, nil
	}
	c.incCache("miss")

	p, err := c.inner.Centroid(ctx, area)
	if err != nil {
		return domain.Point{}, fmt.Errorf("geocode %q: %w", area, err)
	}

	c.putToCache(ctx, key, p)
	return p, nil
}

func cacheKey(area string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(area))
}

func (c *CachedGeocoder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedGeocoder) getFromCache(ctx context.Context, key string) (domain.Point, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("failed to get cached centroid", zap.String("key", key), zap.Error(err))
		}
		return domain.Point{}, false
	}

	var cp cachedPoint
	if err := json.Unmarshal(data, &cp); err != nil {
		c.logger.Warn("failed to parse cached centroid", zap.String("key", key), zap.Error(err))
		return domain.Point{}, false
	}
	return domain.Point{Lat: cp.Lat, Lon: cp.Lon}, true
}

func (c *CachedGeocoder) putToCache(ctx context.Context, key string, p domain.Point) {
	data, err := json.Marshal(cachedPoint{Lat: p.Lat, Lon: p.Lon})
	if err != nil {
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("failed to cache centroid", zap.String("key", key), zap.Error(err))
	}
}
