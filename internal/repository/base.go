// Package repository provides the resilient data-access layer over the
// Pensieve screenshot store: cache first, then the memos API where the
// query shape allows it, then direct SQL. Public methods never return an
// error; total failure surfaces as an empty result and is only visible
// through the performance counters and logs.
package repository

import (
	"context"
	"database/sql"
	"log"
	"strings"
	"time"

	"github.com/avelac/retrace/internal/cache"
	"github.com/avelac/retrace/internal/metrics"
	"github.com/avelac/retrace/internal/resilience"
	"github.com/avelac/retrace/internal/router"
	"github.com/avelac/retrace/internal/table"
)

const defaultCacheTTL = 5 * time.Minute

// Base composes the cache coordinator, query router and database handle
// behind the three-tier fallback. Concrete repositories embed it.
type Base struct {
	db      *sql.DB
	cache   *cache.Coordinator
	router  *router.Router
	breaker *resilience.Breaker
}

func NewBase(db *sql.DB, c *cache.Coordinator, r *router.Router, b *resilience.Breaker) *Base {
	return &Base{db: db, cache: c, router: r, breaker: b}
}

// execute runs query through the fallback chain: cache hit, API route,
// direct SQL, empty table. The chain is strictly ordered and stops at the
// first tier that serves; a caller deadline expiring mid-chain short-
// circuits to the empty table. This method never returns an error.
func (b *Base) execute(ctx context.Context, query string, params []any, ttl time.Duration) table.Table {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	key := b.cache.Key(query, params)
	start := time.Now()
	if tbl, ok := b.cache.Get(ctx, key); ok {
		metrics.RecordQueryDuration(metrics.PathCache, time.Since(start))
		return tbl
	}

	if ctx.Err() != nil {
		return table.Empty()
	}

	if b.router != nil {
		apiStart := time.Now()
		tbl, outcome := b.router.Execute(ctx, query, params)
		switch outcome {
		case router.Served:
			b.cache.RecordAPIRequest(time.Since(apiStart))
			b.cache.Set(ctx, key, tbl, ttl)
			return tbl
		case router.Failed:
			b.cache.RecordAPIRequest(time.Since(apiStart))
			b.cache.RecordAPIFailure()
		}
	}

	if ctx.Err() != nil {
		return table.Empty()
	}

	dbStart := time.Now()
	tbl, err := b.queryDB(ctx, query, params)
	b.cache.RecordDBQuery(time.Since(dbStart))
	metrics.RecordDBQuery()
	if err != nil {
		b.cache.RecordDBFailure()
		metrics.RecordDBFailure()
		log.Printf("repository: query failed, returning empty result: %v", err)
		return table.Empty()
	}

	metrics.RecordQueryDuration(metrics.PathDB, time.Since(dbStart))
	b.cache.Set(ctx, key, tbl, ttl)
	return tbl
}

// queryDB executes query directly and builds the table from the cursor's
// column descriptions. Metadata joins share this path: column metadata is
// always available here, so multi-join shapes need no special casing.
func (b *Base) queryDB(ctx context.Context, query string, params []any) (table.Table, error) {
	rows, err := b.db.QueryContext(ctx, query, params...)
	if err != nil {
		return table.Table{}, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("repository: failed to close rows: %v", err)
		}
	}()

	columns, err := rows.Columns()
	if err != nil {
		return table.Table{}, err
	}

	tbl := table.New(columns)
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return table.Table{}, err
		}
		row := make([]any, len(columns))
		for i, v := range values {
			// Drivers hand back []byte for text columns; keep rows
			// JSON-serializable for the cache.
			if raw, ok := v.([]byte); ok {
				row[i] = string(raw)
			} else {
				row[i] = v
			}
		}
		tbl.Append(row)
	}

	return tbl, rows.Err()
}

// InvalidateCache removes cached queries containing pattern and returns
// how many entries were dropped.
func (b *Base) InvalidateCache(ctx context.Context, pattern string) int {
	return b.cache.Invalidate(ctx, pattern)
}

// PerformanceStats exposes the usage counters; with the never-throw
// contract, this is how callers tell an outage from an empty dataset.
func (b *Base) PerformanceStats() cache.PerformanceStats {
	return b.cache.Stats()
}

// CircuitStatus reports circuit breaker state and refreshes the
// open-circuits gauge.
func (b *Base) CircuitStatus() resilience.Status {
	status := b.breaker.Snapshot()
	metrics.UpdateOpenCircuits(len(status.OpenCircuits))
	return status
}

// joinsMetadata reports whether query reads the metadata pivot. Callers
// use it to pick longer cache TTLs for the heavier join queries.
func joinsMetadata(query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(q, "join") && strings.Contains(q, "metadata_entries")
}
