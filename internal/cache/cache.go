// Package cache implements the two-tier query cache: an in-process memory
// tier in front of a shared Redis tier. Cache failures are never surfaced
// to callers; a broken backend behaves like a miss.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/avelac/retrace/internal/metrics"
	"github.com/avelac/retrace/internal/table"
)

const (
	// DefaultTTL bounds entries whose caller did not pick one.
	DefaultTTL = 5 * time.Minute

	// keyPrefix namespaces query results in Redis.
	keyPrefix = "query:"
)

// Coordinator fronts the memory and Redis tiers and owns the usage
// counters backing PerformanceStats. The Redis tier is optional: with a
// nil client the coordinator degrades to memory-only caching.
type Coordinator struct {
	memory *gocache.Cache
	rdb    *redis.Client
	stats  *statCounters

	// queries maps each derived key back to its normalized query text so
	// Invalidate can match patterns against the query, not the hash.
	mu      sync.Mutex
	queries map[string]string
}

// New connects to Redis at addr and returns a ready coordinator.
// An empty addr skips the Redis tier entirely.
func New(addr string) (*Coordinator, error) {
	var client *redis.Client
	if addr != "" {
		client = redis.NewClient(&redis.Options{
			Addr:         addr,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
	}

	return &Coordinator{
		// No janitor: expired entries are collected by the sweeper so the
		// request path never pays for eviction.
		memory:  gocache.New(DefaultTTL, 0),
		rdb:     client,
		stats:   newStatCounters(),
		queries: make(map[string]string),
	}, nil
}

// Key derives a deterministic cache key from the query text and its
// parameters. Whitespace runs in the query are collapsed so formatting
// differences do not fragment the cache.
func (c *Coordinator) Key(query string, params []any) string {
	normalized := strings.Join(strings.Fields(query), " ")
	sum := sha256.Sum256(fmt.Appendf([]byte(normalized), "|%v", params))
	key := keyPrefix + hex.EncodeToString(sum[:])

	c.mu.Lock()
	c.queries[key] = strings.ToLower(normalized)
	c.mu.Unlock()

	return key
}

// Get returns the cached table for key, checking memory before Redis.
// A Redis hit is promoted into the memory tier. Corrupt entries are
// deleted and reported as a miss.
func (c *Coordinator) Get(ctx context.Context, key string) (table.Table, bool) {
	if cached, found := c.memory.Get(key); found {
		if tbl, ok := cached.(table.Table); ok {
			c.stats.recordHit()
			metrics.RecordCacheHit()
			return tbl, true
		}
		c.memory.Delete(key)
	}

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			tbl, uerr := table.Unmarshal(data)
			if uerr != nil {
				log.Printf("cache: dropping corrupt entry %s: %v", key, uerr)
				c.rdb.Del(ctx, key)
				break
			}
			if ttl, terr := c.rdb.TTL(ctx, key).Result(); terr == nil && ttl > 0 {
				c.memory.Set(key, tbl, ttl)
			} else {
				c.memory.Set(key, tbl, DefaultTTL)
			}
			c.stats.recordHit()
			metrics.RecordCacheHit()
			return tbl, true
		case err != redis.Nil:
			log.Printf("cache: redis get failed for %s: %v", key, err)
		}
	}

	c.stats.recordMiss()
	metrics.RecordCacheMiss()
	return table.Table{}, false
}

// Set stores the table in both tiers. Backend errors are logged, never
// returned.
func (c *Coordinator) Set(ctx context.Context, key string, tbl table.Table, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c.memory.Set(key, tbl, ttl)

	if c.rdb == nil {
		return
	}
	data, err := tbl.Marshal()
	if err != nil {
		log.Printf("cache: failed to encode entry %s: %v", key, err)
		return
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		log.Printf("cache: redis set failed for %s: %v", key, err)
	}
}

// Invalidate removes every cached query whose text contains pattern, or
// all query entries when pattern is empty. Matching is case-insensitive
// over the normalized query. Returns the number of entries removed
// across both tiers.
func (c *Coordinator) Invalidate(ctx context.Context, pattern string) int {
	pattern = strings.ToLower(strings.Join(strings.Fields(pattern), " "))

	c.mu.Lock()
	matched := make([]string, 0, len(c.queries))
	for key, query := range c.queries {
		if pattern == "" || strings.Contains(query, pattern) {
			matched = append(matched, key)
			delete(c.queries, key)
		}
	}
	c.mu.Unlock()

	removed := 0
	for _, key := range matched {
		if _, found := c.memory.Get(key); found {
			c.memory.Delete(key)
			removed++
		}
		if c.rdb != nil {
			if n, err := c.rdb.Del(ctx, key).Result(); err == nil {
				removed += int(n)
			} else {
				log.Printf("cache: redis del failed for %s: %v", key, err)
			}
		}
	}

	// With no pattern, also clear query entries written by other
	// processes. Their query text is not known here, only the key shape.
	if pattern == "" && c.rdb != nil {
		iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			if err := c.rdb.Del(ctx, iter.Val()).Err(); err == nil {
				removed++
			}
		}
		if err := iter.Err(); err != nil {
			log.Printf("cache: redis scan failed: %v", err)
		}
	}

	metrics.RecordCacheEvictions(removed)
	return removed
}

// Sweep evicts expired memory entries and prunes the query index along
// with them. Redis expires its own keys; both tiers share the TTL, so an
// entry gone from memory is expired or about to expire in Redis too.
func (c *Coordinator) Sweep() {
	before := c.memory.ItemCount()
	c.memory.DeleteExpired()
	if removed := before - c.memory.ItemCount(); removed > 0 {
		metrics.RecordCacheEvictions(removed)
	}

	c.mu.Lock()
	for key := range c.queries {
		if _, found := c.memory.Get(key); !found {
			delete(c.queries, key)
		}
	}
	c.mu.Unlock()
}

// StartSweeper runs Sweep every interval until ctx is cancelled. It holds
// no coordinator-level lock, so foreground reads are never blocked on a
// sweep.
func (c *Coordinator) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

func (c *Coordinator) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}
