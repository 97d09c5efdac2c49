// Package cache memoizes serialized search responses. Keys fold in the index
// generation, so publishing a new index makes every older entry unreachable
// without an explicit flush.
package cache

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/resilience"
)

const keyPrefix = "search:"

// Backend stores opaque values. A miss is (nil, false, nil).
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Purge(ctx context.Context) error
}

// Key identifies one search. Index is the content fingerprint of the index
// searched, so entries are shared only between identical indexes, in this
// process or any other using the same backend. Query is the normalized
// query string.
type Key struct {
	Index      uint64
	Query      string
	TopN       int
	Mode       string
	K1         float64
	B          float64
	Match      string
}

// String hashes every field with xxhash64.
func (k Key) String() string {
	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], k.Index)
	d.Write(buf[:])
	for _, s := range []string{k.Query, k.Mode, k.Match} {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
		d.Write(buf[:])
		d.WriteString(s)
	}
	for _, f := range []float64{float64(k.TopN), k.K1, k.B} {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		d.Write(buf[:])
	}
	return keyPrefix + strconv.FormatUint(k.Index, 16) + ":" + strconv.FormatUint(d.Sum64(), 16)
}

type QueryCache struct {
	backend Backend
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
	errors  atomic.Int64
}

type Option func(*QueryCache)

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *QueryCache) { c.metrics = m }
}

func New(backend Backend, opts ...Option) *QueryCache {
	c := &QueryCache{
		backend: backend,
		logger:  slog.Default().With("component", "query-cache", "backend", backend.Name()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromConfig returns the cache selected by cfg.Backend, or nil for "none".
// The redis backend dials lazily and sits behind a circuit breaker whose
// state is exported through m.
func FromConfig(cfg config.Config, m *metrics.Metrics) (*QueryCache, error) {
	switch cfg.Cache.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return New(NewMemory(cfg.Cache.Size, cfg.Cache.TTL), WithMetrics(m)), nil
	case "redis":
		breaker := resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, _, to resilience.State) {
				if m != nil {
					m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
				}
			},
		})
		return New(NewRedis(pkgredis.NewClient(cfg.Redis), breaker, cfg.Cache.TTL), WithMetrics(m)), nil
	default:
		return nil, fmt.Errorf("%w: unknown cache backend %q", apperrors.ErrConfig, cfg.Cache.Backend)
	}
}

// GetOrCompute returns the cached value for key, or runs compute once per
// key across concurrent callers and stores its result. Backend failures
// are logged and treated as misses.
func (c *QueryCache) GetOrCompute(ctx context.Context, key Key, compute func() ([]byte, error)) ([]byte, bool, error) {
	k := key.String()
	if v, ok := c.get(ctx, k); ok {
		c.hit()
		return v, true, nil
	}
	val, err, _ := c.group.Do(k, func() (any, error) {
		if v, ok := c.get(ctx, k); ok {
			return v, nil
		}
		v, err := compute()
		if err != nil {
			return nil, err
		}
		if err := c.backend.Set(ctx, k, v); err != nil {
			c.errors.Add(1)
			c.logger.Warn("cache set failed", "key", k, "error", err)
		}
		return v, nil
	})
	c.miss()
	if err != nil {
		return nil, false, err
	}
	return val.([]byte), false, nil
}

func (c *QueryCache) get(ctx context.Context, key string) ([]byte, bool) {
	v, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.errors.Add(1)
		c.logger.Warn("cache get failed", "key", key, "error", err)
		return nil, false
	}
	return v, ok
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// Invalidate drops every entry.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	if err := c.backend.Purge(ctx); err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated")
	return nil
}

type Stats struct {
	Backend string  `json:"backend"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hit_rate"`
}

func (c *QueryCache) Stats() Stats {
	s := Stats{
		Backend: c.backend.Name(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Errors:  c.errors.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
