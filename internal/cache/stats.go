package cache

import (
	"sync"
	"time"
)

// PerformanceStats is the derived view over the usage counters, exposed
// through the stats API so callers can tell outages apart from genuinely
// empty results.
type PerformanceStats struct {
	CacheHits          int64   `json:"cache_hits"`
	CacheMisses        int64   `json:"cache_misses"`
	CacheHitRatio      float64 `json:"cache_hit_ratio"`
	APIRequests        int64   `json:"api_requests"`
	APIFailures        int64   `json:"api_failures"`
	APISuccessRate     float64 `json:"api_success_rate"`
	DBQueries          int64   `json:"db_queries"`
	DBFailures         int64   `json:"db_failures"`
	DBSuccessRate      float64 `json:"db_success_rate"`
	APIUsagePercentage float64 `json:"api_usage_percentage"`
	DBUsagePercentage  float64 `json:"db_usage_percentage"`
	AvgAPIResponseMs   float64 `json:"avg_api_response_time_ms"`
	AvgDBResponseMs    float64 `json:"avg_db_response_time_ms"`
}

type statCounters struct {
	mu          sync.Mutex
	hits        int64
	misses      int64
	apiRequests int64
	apiFailures int64
	dbQueries   int64
	dbFailures  int64
	apiTime     time.Duration
	dbTime      time.Duration
}

func newStatCounters() *statCounters {
	return &statCounters{}
}

func (s *statCounters) recordHit() {
	s.mu.Lock()
	s.hits++
	s.mu.Unlock()
}

func (s *statCounters) recordMiss() {
	s.mu.Lock()
	s.misses++
	s.mu.Unlock()
}

// RecordAPIRequest counts one attempted memos API query.
func (c *Coordinator) RecordAPIRequest(d time.Duration) {
	c.stats.mu.Lock()
	c.stats.apiRequests++
	c.stats.apiTime += d
	c.stats.mu.Unlock()
}

func (c *Coordinator) RecordAPIFailure() {
	c.stats.mu.Lock()
	c.stats.apiFailures++
	c.stats.mu.Unlock()
}

// RecordDBQuery counts one direct SQL execution.
func (c *Coordinator) RecordDBQuery(d time.Duration) {
	c.stats.mu.Lock()
	c.stats.dbQueries++
	c.stats.dbTime += d
	c.stats.mu.Unlock()
}

func (c *Coordinator) RecordDBFailure() {
	c.stats.mu.Lock()
	c.stats.dbFailures++
	c.stats.mu.Unlock()
}

func (c *Coordinator) Stats() PerformanceStats {
	s := c.stats
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := PerformanceStats{
		CacheHits:   s.hits,
		CacheMisses: s.misses,
		APIRequests: s.apiRequests,
		APIFailures: s.apiFailures,
		DBQueries:   s.dbQueries,
		DBFailures:  s.dbFailures,
	}

	if total := s.hits + s.misses; total > 0 {
		stats.CacheHitRatio = float64(s.hits) / float64(total)
	}
	if s.apiRequests > 0 {
		stats.APISuccessRate = float64(s.apiRequests-s.apiFailures) / float64(s.apiRequests)
		stats.AvgAPIResponseMs = float64(s.apiTime.Milliseconds()) / float64(s.apiRequests)
	}
	if s.dbQueries > 0 {
		stats.DBSuccessRate = float64(s.dbQueries-s.dbFailures) / float64(s.dbQueries)
		stats.AvgDBResponseMs = float64(s.dbTime.Milliseconds()) / float64(s.dbQueries)
	}
	if served := s.apiRequests + s.dbQueries; served > 0 {
		stats.APIUsagePercentage = 100 * float64(s.apiRequests) / float64(served)
		stats.DBUsagePercentage = 100 * float64(s.dbQueries) / float64(served)
	}

	return stats
}
