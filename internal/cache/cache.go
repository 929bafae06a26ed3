package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reviewpulse/reviewpulse/config"
)

// Entry is a cached grounded answer. Only successful, grounded answers are
// cached; configuration errors and failures never are.
type Entry struct {
	Answer      string   `json:"answer"`
	Sources     []string `json:"sources"`
	ChunksCount int      `json:"chunks_count"`
	TopScore    float64  `json:"top_score"`
}

// AnswerCache is a Redis-backed cache keyed by namespace and query text.
// Every failure path degrades to a miss: the cache must never take a
// request down with it.
type AnswerCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg config.CacheConfig) (*AnswerCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed (%s): %w", cfg.Addr(), err)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AnswerCache{
		rdb:    rdb,
		ttl:    ttl,
		logger: log.New(log.Writer(), "[CACHE] ", log.LstdFlags),
	}, nil
}

// Get returns the cached entry for a namespace/query pair, or (nil, false).
func (c *AnswerCache) Get(ctx context.Context, namespace, query string) (*Entry, bool) {
	raw, err := c.rdb.Get(ctx, key(namespace, query)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Printf("get failed: %v", err)
		}
		return nil, false
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Printf("corrupt cache entry dropped: %v", err)
		return nil, false
	}
	return &e, true
}

// Set stores an entry with the configured TTL.
func (c *AnswerCache) Set(ctx context.Context, namespace, query string, e Entry) {
	raw, err := json.Marshal(e)
	if err != nil {
		c.logger.Printf("marshal failed: %v", err)
		return
	}
	if err := c.rdb.Set(ctx, key(namespace, query), raw, c.ttl).Err(); err != nil {
		c.logger.Printf("set failed: %v", err)
	}
}

// Close releases the redis connection.
func (c *AnswerCache) Close() error {
	return c.rdb.Close()
}

func key(namespace, query string) string {
	sum := sha256.Sum256([]byte(query))
	return fmt.Sprintf("rp:answer:%s:%s", namespace, hex.EncodeToString(sum[:]))
}
