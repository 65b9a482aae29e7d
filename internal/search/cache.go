package search

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cachePrefix = "ragserve:bm25:"

// Cache stores search hits in redis. Entries are namespaced by a per-index
// generation counter so a reindex makes every older entry unreachable.
// Redis failures are logged and treated as misses.
type Cache struct {
	rdb     redis.UniversalClient
	ttl     time.Duration
	metrics *Metrics
}

// NewCache builds a cache with the given entry ttl.
func NewCache(rdb redis.UniversalClient, ttl time.Duration, m *Metrics) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{rdb: rdb, ttl: ttl, metrics: m}
}

// CacheKey fingerprints a query.
func CacheKey(query string, fields []string, size int) string {
	h := sha1.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(fields, ",")))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(size)))
	return hex.EncodeToString(h.Sum(nil))
}

func genKey(index string) string { return cachePrefix + index + ":gen" }

func (c *Cache) generation(ctx context.Context, index string) (string, error) {
	gen, err := c.rdb.Get(ctx, genKey(index)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return gen, err
}

func (c *Cache) entryKey(ctx context.Context, index, key string) (string, error) {
	gen, err := c.generation(ctx, index)
	if err != nil {
		return "", err
	}
	return cachePrefix + index + ":" + gen + ":" + key, nil
}

func (c *Cache) count(outcome string) {
	if c.metrics != nil {
		c.metrics.CacheLookups.WithLabelValues(outcome).Inc()
	}
}

// Get returns cached hits for key.
func (c *Cache) Get(ctx context.Context, index, key string) ([]Hit, bool) {
	k, err := c.entryKey(ctx, index, key)
	if err != nil {
		logger.Printf("cache get: %v", err)
		c.count("error")
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		c.count("miss")
		return nil, false
	}
	if err != nil {
		logger.Printf("cache get: %v", err)
		c.count("error")
		return nil, false
	}
	var hits []Hit
	if err := json.Unmarshal(raw, &hits); err != nil {
		logger.Printf("cache decode %s: %v", k, err)
		c.count("error")
		return nil, false
	}
	c.count("hit")
	return hits, true
}

// Set stores hits under key.
func (c *Cache) Set(ctx context.Context, index, key string, hits []Hit) {
	k, err := c.entryKey(ctx, index, key)
	if err != nil {
		logger.Printf("cache set: %v", err)
		return
	}
	raw, err := json.Marshal(hits)
	if err != nil {
		logger.Printf("cache encode: %v", err)
		return
	}
	if err := c.rdb.Set(ctx, k, raw, c.ttl).Err(); err != nil {
		logger.Printf("cache set: %v", err)
	}
}

// Invalidate bumps the index generation.
func (c *Cache) Invalidate(ctx context.Context, index string) {
	if err := c.rdb.Incr(ctx, genKey(index)).Err(); err != nil {
		logger.Printf("cache invalidate %s: %v", index, err)
	}
}
