package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/redis/go-redis/v9"

	"sales-insight-workers/internal/common/logger"
	"sales-insight-workers/internal/common/metrics"
)

// CachedEmbedder keeps query embeddings in an in-process TTL cache backed by
// Redis. Batches (documents) are never cached.
type CachedEmbedder struct {
	next  Embedder
	local *ttlcache.Cache[string, []float32]
	redis redis.Cmdable
	ttl   time.Duration
	log   logger.Logger
}

// NewCachedEmbedder wraps next. rdb may be nil to run with the local tier only.
func NewCachedEmbedder(next Embedder, rdb redis.Cmdable, ttl time.Duration, capacity int, log logger.Logger) *CachedEmbedder {
	opts := []ttlcache.Option[string, []float32]{
		ttlcache.WithTTL[string, []float32](ttl),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, []float32](uint64(capacity)))
	}

	return &CachedEmbedder{
		next:  next,
		local: ttlcache.New[string, []float32](opts...),
		redis: rdb,
		ttl:   ttl,
		log:   log,
	}
}

// Start runs expiry of the local tier until Stop is called.
func (c *CachedEmbedder) Start() {
	go c.local.Start()
}

func (c *CachedEmbedder) Stop() {
	c.local.Stop()
}

// CacheKey is the Redis key for text under model.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("kb:embed:%s:%s", model, hex.EncodeToString(sum[:]))
}

func encodeVector(v []float32) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(c.next.Name(), text)

	if item := c.local.Get(key); item != nil {
		metrics.EmbeddingCacheLookups.WithLabelValues("local", "hit").Inc()
		return item.Value(), nil
	}
	metrics.EmbeddingCacheLookups.WithLabelValues("local", "miss").Inc()

	if c.redis != nil {
		raw, err := c.redis.Get(ctx, key).Result()
		switch {
		case err == nil:
			var vec []float32
			if jsonErr := json.Unmarshal([]byte(raw), &vec); jsonErr == nil && len(vec) > 0 {
				metrics.EmbeddingCacheLookups.WithLabelValues("redis", "hit").Inc()
				c.local.Set(key, vec, ttlcache.DefaultTTL)
				return vec, nil
			}
			c.log.Warn("discarding malformed cached embedding", map[string]interface{}{"key": key})
		case errors.Is(err, redis.Nil):
			metrics.EmbeddingCacheLookups.WithLabelValues("redis", "miss").Inc()
		default:
			c.log.Warn("embedding cache read failed", map[string]interface{}{"error": err.Error()})
		}
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.local.Set(key, vec, ttlcache.DefaultTTL)
	if c.redis != nil {
		if payload, err := encodeVector(vec); err == nil {
			if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
				c.log.Warn("embedding cache write failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}

	return vec, nil
}

func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.next.EmbedBatch(ctx, texts)
}

func (c *CachedEmbedder) Dimensions() int {
	return c.next.Dimensions()
}

func (c *CachedEmbedder) Name() string {
	return c.next.Name()
}
