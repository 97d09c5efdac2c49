package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	pkgredis "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/resilience"
)

const defaultMemorySize = 1024

// Memory is an in-process LRU with per-entry expiry. A ttl of zero keeps
// entries until they are evicted.
type Memory struct {
	lru *expirable.LRU[string, []byte]
}

func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = defaultMemorySize
	}
	return &Memory{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.lru.Add(key, value)
	return nil
}

func (m *Memory) Purge(context.Context) error {
	m.lru.Purge()
	return nil
}

func (m *Memory) Len() int { return m.lru.Len() }

// Redis shares entries between processes. Every call goes through the
// breaker, so an unreachable server costs one fast error per request once
// the circuit is open.
type Redis struct {
	client  *pkgredis.Client
	breaker *resilience.CircuitBreaker
	ttl     time.Duration
}

func NewRedis(client *pkgredis.Client, breaker *resilience.CircuitBreaker, ttl time.Duration) *Redis {
	return &Redis{client: client, breaker: breaker, ttl: ttl}
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		val   []byte
		found bool
	)
	err := r.breaker.Execute(func() error {
		v, err := r.client.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		if err != nil {
			return err
		}
		val, found = v, true
		return nil
	})
	return val, found, err
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	return r.breaker.Execute(func() error {
		return r.client.Set(ctx, key, value, r.ttl)
	})
}

func (r *Redis) Purge(ctx context.Context) error {
	return r.breaker.Execute(func() error {
		_, err := r.client.FlushPrefix(ctx, keyPrefix)
		return err
	})
}
