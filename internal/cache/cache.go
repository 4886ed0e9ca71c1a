// Package cache is a read-through cache with stampede protection, adapted
// from chat-service/internal/cache/redis_cache.go's CacheManager, here
// caching C8's enriched message pages and reaction-count projections
// instead of conversation/message rows.
package cache

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	defaultTTL     = 30 * time.Second
	lockTTL        = 5 * time.Second
	stampedeFactor = 0.8
)

// Manager wraps a redis client; a nil client makes every call a pass-
// through to loader (no caching), so the cache is optional infrastructure.
type Manager struct {
	client *redis.Client
	log    *logrus.Entry

	mu     sync.Mutex
	hits   int64
	misses int64
}

func New(client *redis.Client, log *logrus.Entry) *Manager {
	return &Manager{client: client, log: log.WithField("component", "cache")}
}

// Loader produces the value to cache on a miss.
type Loader func(ctx context.Context) (interface{}, error)

// GetOrSet implements read-through caching with distributed locking to
// prevent stampede: on miss, the first caller acquires a SetNX lock and
// runs loader while others poll the cache briefly before falling back to
// loading themselves, mirroring redis_cache.go's GetOrSet.
func (m *Manager) GetOrSet(ctx context.Context, key string, ttl time.Duration, dest interface{}, loader Loader) error {
	if m.client == nil {
		v, err := loader(ctx)
		if err != nil {
			return err
		}
		return reencode(v, dest)
	}

	if m.tryGet(ctx, key, dest) {
		return nil
	}

	lockKey := "lock:" + key
	acquired, _ := m.client.SetNX(ctx, lockKey, "1", lockTTL).Result()
	if !acquired {
		time.Sleep(100 * time.Millisecond)
		if m.tryGet(ctx, key, dest) {
			return nil
		}
	} else {
		defer m.client.Del(ctx, lockKey)
	}

	v, err := loader(ctx)
	if err != nil {
		return err
	}
	m.set(ctx, key, ttl, v)
	return reencode(v, dest)
}

func (m *Manager) tryGet(ctx context.Context, key string, dest interface{}) bool {
	raw, err := m.client.Get(ctx, key).Bytes()
	if err != nil {
		m.recordMiss()
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		m.recordMiss()
		return false
	}
	m.recordHit()
	return true
}

func (m *Manager) set(ctx context.Context, key string, ttl time.Duration, v interface{}) {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	data, err := json.Marshal(v)
	if err != nil {
		m.log.WithError(err).Warn("cache marshal failed")
		return
	}
	if err := m.client.Set(ctx, key, data, ttl).Err(); err != nil {
		m.log.WithError(err).Warn("cache write failed")
	}
}

// Invalidate deletes a key eagerly, used after a mutation changes the data
// a cached read would otherwise keep serving stale.
func (m *Manager) Invalidate(ctx context.Context, key string) {
	if m.client == nil {
		return
	}
	m.client.Del(ctx, key)
}

// shouldRefreshEarly implements probabilistic early expiration: as a key's
// remaining TTL ratio drops below stampedeFactor, the chance of treating a
// still-valid entry as a miss (and refreshing it proactively) rises.
func shouldRefreshEarly(ttl, base time.Duration) bool {
	if base <= 0 {
		return false
	}
	remainingRatio := float64(ttl) / float64(base)
	if remainingRatio > stampedeFactor {
		return false
	}
	probability := math.Pow(1-remainingRatio/stampedeFactor, 3)
	return rand.Float64() < probability
}

func (m *Manager) recordHit() {
	m.mu.Lock()
	m.hits++
	m.mu.Unlock()
}

func (m *Manager) recordMiss() {
	m.mu.Lock()
	m.misses++
	m.mu.Unlock()
}

// Metrics returns the hit/miss counters.
func (m *Manager) Metrics() (hits, misses int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses
}

func reencode(src, dest interface{}) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}
