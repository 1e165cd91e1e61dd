package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/clinical-ddx-server/internal/domain"
)

// CacheStats represents cache performance statistics
type CacheStats struct {
	MemoryHits    int64     `json:"memory_hits"`
	MemoryMisses  int64     `json:"memory_misses"`
	RedisHits     int64     `json:"redis_hits"`
	RedisMisses   int64     `json:"redis_misses"`
	BackendCalls  int64     `json:"backend_calls"`
	TotalRequests int64     `json:"total_requests"`
	Degradations  int64     `json:"degradations"`
	LastReset     time.Time `json:"last_reset"`
}

// CachedClientConfig represents configuration for the cached evidence client
type CachedClientConfig struct {
	MemoryCacheTTL time.Duration `json:"memory_cache_ttl"`
	RedisCacheTTL  time.Duration `json:"redis_cache_ttl"`
	MaxMemorySize  int           `json:"max_memory_size"`
	BreakerMaxFail uint32        `json:"breaker_max_failures"`
	BreakerTimeout time.Duration `json:"breaker_timeout"`
}

// CachedClient wraps a Searcher with two cache tiers and a circuit breaker.
// Retrieval is best-effort: when the backend is down or the breaker is open,
// Search degrades to an empty result instead of failing the caller.
type CachedClient struct {
	inner Searcher

	memoryCache *lru.Cache[string, *cacheEntry] // Tier 1: in-memory LRU (hot data)
	redisClient *redis.Client                   // Tier 2: Redis (warm data), optional

	memoryCacheTTL time.Duration
	redisCacheTTL  time.Duration

	breaker *gobreaker.CircuitBreaker

	logger  *logrus.Logger
	stats   *CacheStats
	statsMu sync.RWMutex
}

type cacheEntry struct {
	items  []domain.EvidenceItem
	expiry time.Time
}

func (e *cacheEntry) isExpired() bool {
	return time.Now().After(e.expiry)
}

// NewCachedClient creates a cached evidence client. redisClient may be nil to
// run with the memory tier only.
func NewCachedClient(config CachedClientConfig, inner Searcher, redisClient *redis.Client, logger *logrus.Logger) (*CachedClient, error) {
	if config.MemoryCacheTTL == 0 {
		config.MemoryCacheTTL = 15 * time.Minute
	}
	if config.RedisCacheTTL == 0 {
		config.RedisCacheTTL = 24 * time.Hour
	}
	if config.MaxMemorySize == 0 {
		config.MaxMemorySize = 1000
	}
	if config.BreakerMaxFail == 0 {
		config.BreakerMaxFail = 5
	}
	if config.BreakerTimeout == 0 {
		config.BreakerTimeout = 30 * time.Second
	}

	memoryCache, err := lru.New[string, *cacheEntry](config.MaxMemorySize)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "evidence-search",
		Timeout: config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.BreakerMaxFail
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &CachedClient{
		inner:          inner,
		memoryCache:    memoryCache,
		redisClient:    redisClient,
		memoryCacheTTL: config.MemoryCacheTTL,
		redisCacheTTL:  config.RedisCacheTTL,
		breaker:        breaker,
		logger:         logger,
		stats:          &CacheStats{LastReset: time.Now()},
	}, nil
}

// Search resolves a query through memory cache, Redis, then the backend.
// Backend failure returns an empty slice and a nil error; the pipeline treats
// missing evidence as a confidence problem, not a request failure.
func (c *CachedClient) Search(ctx context.Context, query string, limit int) ([]domain.EvidenceItem, error) {
	c.incrementStat("total_requests")

	key := cacheKey(query, limit)

	if items := c.getFromMemoryCache(key); items != nil {
		c.incrementStat("memory_hits")
		return items, nil
	}
	c.incrementStat("memory_misses")

	if items := c.getFromRedisCache(ctx, key); items != nil {
		c.incrementStat("redis_hits")
		c.setInMemoryCache(key, items)
		return items, nil
	}
	c.incrementStat("redis_misses")

	c.incrementStat("backend_calls")
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.inner.Search(ctx, query, limit)
	})
	if err != nil {
		c.incrementStat("degradations")
		c.logger.WithFields(logrus.Fields{
			"query": query,
			"error": err.Error(),
		}).Warn("Evidence backend unavailable, degrading to empty result")
		return []domain.EvidenceItem{}, nil
	}

	items := result.([]domain.EvidenceItem)
	c.setInMemoryCache(key, items)
	c.setInRedisCache(ctx, key, items)

	return items, nil
}

// Invalidate drops a cached query from both tiers
func (c *CachedClient) Invalidate(ctx context.Context, query string, limit int) {
	key := cacheKey(query, limit)
	c.memoryCache.Remove(key)
	if c.redisClient != nil {
		c.redisClient.Del(ctx, key)
	}
}

// GetCacheStats returns a snapshot of cache performance counters
func (c *CachedClient) GetCacheStats() CacheStats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	return *c.stats
}

func (c *CachedClient) getFromMemoryCache(key string) []domain.EvidenceItem {
	if entry, ok := c.memoryCache.Get(key); ok {
		if !entry.isExpired() {
			return entry.items
		}
		c.memoryCache.Remove(key)
	}
	return nil
}

func (c *CachedClient) setInMemoryCache(key string, items []domain.EvidenceItem) {
	c.memoryCache.Add(key, &cacheEntry{
		items:  items,
		expiry: time.Now().Add(c.memoryCacheTTL),
	})
}

func (c *CachedClient) getFromRedisCache(ctx context.Context, key string) []domain.EvidenceItem {
	if c.redisClient == nil {
		return nil
	}
	data, err := c.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		return nil
	}
	var items []domain.EvidenceItem
	if err := json.Unmarshal(data, &items); err != nil {
		c.logger.WithField("key", key).Warn("Corrupt Redis cache entry, dropping")
		c.redisClient.Del(ctx, key)
		return nil
	}
	return items
}

func (c *CachedClient) setInRedisCache(ctx context.Context, key string, items []domain.EvidenceItem) {
	if c.redisClient == nil {
		return
	}
	data, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := c.redisClient.Set(ctx, key, data, c.redisCacheTTL).Err(); err != nil {
		c.logger.WithField("key", key).Debug("Failed to populate Redis cache")
	}
}

func (c *CachedClient) incrementStat(statName string) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	switch statName {
	case "memory_hits":
		c.stats.MemoryHits++
	case "memory_misses":
		c.stats.MemoryMisses++
	case "redis_hits":
		c.stats.RedisHits++
	case "redis_misses":
		c.stats.RedisMisses++
	case "backend_calls":
		c.stats.BackendCalls++
	case "total_requests":
		c.stats.TotalRequests++
	case "degradations":
		c.stats.Degradations++
	}
}

func cacheKey(query string, limit int) string {
	return fmt.Sprintf("evidence:%s:%d", strings.ToLower(strings.TrimSpace(query)), limit)
}
