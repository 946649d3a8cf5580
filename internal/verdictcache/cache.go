// Package verdictcache provides a Redis-backed cache of final analysis
// verdicts keyed by content fingerprint:
//
//	Key:   verdict:<fingerprint>
//	Value: JSON-encoded AnalysisResult
//	TTL:   cache duration
//
// Identical content (after lower-casing and trimming) reuses a prior
// verdict instead of paying for another moderation call. The cache fails
// open: any Redis error is treated as a miss so an outage only costs
// extra analysis, never correctness.
package verdictcache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clearpath/triage/internal/triage"
)

// KeyPrefix is the Redis key prefix for cached verdicts.
const KeyPrefix = "verdict:"

// DefaultTTL is how long a cached verdict stays reusable.
const DefaultTTL = 24 * time.Hour

// Cache stores verdicts in Redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ triage.VerdictCache = (*Cache)(nil)

// NewCache creates a verdict cache using the provided Redis client.
// A non-positive ttl falls back to DefaultTTL.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// Get looks up a cached verdict by fingerprint. A miss, a Redis error, and
// an undecodable value all report (nil, false).
func (c *Cache) Get(ctx context.Context, fingerprint string) (*triage.AnalysisResult, bool) {
	data, err := c.client.Get(ctx, KeyPrefix+fingerprint).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		log.Printf("[verdictcache] GET error fingerprint=%s: %v (treating as miss)", fingerprint, err)
		return nil, false
	}

	var result triage.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		log.Printf("[verdictcache] corrupt entry fingerprint=%s: %v (treating as miss)", fingerprint, err)
		return nil, false
	}
	return &result, true
}

// Put stores a verdict with the configured TTL. Failures are logged and
// swallowed; caching is best-effort.
func (c *Cache) Put(ctx context.Context, fingerprint string, result triage.AnalysisResult) {
	data, err := json.Marshal(result)
	if err != nil {
		log.Printf("[verdictcache] marshal error fingerprint=%s: %v", fingerprint, err)
		return
	}
	if err := c.client.Set(ctx, KeyPrefix+fingerprint, data, c.ttl).Err(); err != nil {
		log.Printf("[verdictcache] SET error fingerprint=%s: %v", fingerprint, err)
	}
}
