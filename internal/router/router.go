// Package router decides whether a SQL query can be served by the memos
// REST API instead of the database, and translates the small set of
// recognized query shapes into endpoint calls. It is a best-effort
// translator, not a query compiler: anything it does not recognize falls
// through to direct SQL.
package router

import (
	"context"
	"strings"
	"time"

	"github.com/avelac/retrace/internal/memos"
	"github.com/avelac/retrace/internal/metrics"
	"github.com/avelac/retrace/internal/resilience"
	"github.com/avelac/retrace/internal/table"
)

// EntityAPI is the slice of the memos client the router needs. Tests
// substitute a fake.
type EntityAPI interface {
	IsHealthy(ctx context.Context) bool
	SearchEntities(ctx context.Context, term string, limit int) ([]memos.Entity, error)
	GetEntities(ctx context.Context, limit int) ([]memos.Entity, error)
	GetEntity(ctx context.Context, id int64) (*memos.Entity, error)
}

// entityColumns is the fixed column set every API strategy produces,
// matching what the entities table exposes over SQL.
var entityColumns = []string{
	"id", "filepath", "filename", "created_at",
	"file_created_at", "last_scan_at", "file_type_group",
}

const (
	endpointSearch   = "search"
	endpointEntities = "entities"
	endpointEntity   = "entity"

	defaultSearchTerm = "screenshot"
	defaultListLimit  = 100
	maxSmallInt       = 1000
)

type Router struct {
	client  EntityAPI
	breaker *resilience.Breaker
}

func New(client EntityAPI, breaker *resilience.Breaker) *Router {
	return &Router{client: client, breaker: breaker}
}

// CanRoute reports whether query is worth attempting over the API: a
// client exists, it is healthy, no circuit is open and the query looks
// like a plain data read.
func (r *Router) CanRoute(ctx context.Context, query string) bool {
	if r == nil || r.client == nil {
		return false
	}
	if r.breaker != nil && r.breaker.AnyOpen() {
		return false
	}
	if !isDataQuery(query) {
		return false
	}
	return r.client.IsHealthy(ctx)
}

// Outcome tells the caller how an Execute attempt ended. Anything other
// than Served means the query must fall back to SQL; Failed additionally
// fed the circuit breaker.
type Outcome int

const (
	Unroutable Outcome = iota
	Served
	Failed
)

// Execute attempts the API route. A not-found entity lookup mapping to an
// empty table is still Served. No error ever propagates; failures feed
// the circuit breaker.
func (r *Router) Execute(ctx context.Context, query string, params []any) (table.Table, Outcome) {
	if !r.CanRoute(ctx, query) {
		return table.Table{}, Unroutable
	}

	intent := classify(query, params)
	if intent == intentUnroutable {
		return table.Table{}, Unroutable
	}

	endpoint := intent.endpoint()
	start := time.Now()
	metrics.RecordAPIRequest(endpoint)

	var (
		tbl table.Table
		err error
	)
	switch intent {
	case intentSearch:
		tbl, err = r.executeSearch(ctx, params)
	case intentListing:
		tbl, err = r.executeListing(ctx, params)
	case intentEntityLookup:
		tbl, err = r.executeLookup(ctx, params)
	}

	if err != nil {
		metrics.RecordAPIFailure(endpoint)
		if r.breaker != nil {
			r.breaker.RecordFailure(endpoint, err.Error())
		}
		return table.Table{}, Failed
	}

	if r.breaker != nil {
		r.breaker.RecordSuccess(endpoint)
	}
	metrics.RecordQueryDuration(metrics.PathAPI, time.Since(start))
	return tbl, Served
}

func (r *Router) executeSearch(ctx context.Context, params []any) (table.Table, error) {
	term := searchTerm(params)
	limit := smallIntParam(params, defaultListLimit)

	entities, err := r.client.SearchEntities(ctx, term, limit)
	if err != nil {
		return table.Table{}, err
	}
	return entitiesToTable(entities), nil
}

func (r *Router) executeListing(ctx context.Context, params []any) (table.Table, error) {
	entities, err := r.client.GetEntities(ctx, defaultListLimit)
	if err != nil {
		return table.Table{}, err
	}

	tbl := entitiesToTable(entities)
	// An integer parameter on a listing query is its LIMIT.
	if n, ok := firstIntParam(params); ok {
		tbl.Truncate(int(n))
	}
	return tbl, nil
}

func (r *Router) executeLookup(ctx context.Context, params []any) (table.Table, error) {
	id, _ := firstIntParam(params)

	entity, err := r.client.GetEntity(ctx, id)
	if err != nil {
		return table.Table{}, err
	}
	if entity == nil {
		return table.New(entityColumns), nil
	}
	return entitiesToTable([]memos.Entity{*entity}), nil
}

func entitiesToTable(entities []memos.Entity) table.Table {
	tbl := table.New(entityColumns)
	for _, e := range entities {
		tbl.Append([]any{
			e.ID, e.Filepath, e.Filename, e.CreatedAt,
			e.FileCreatedAt, e.LastScanAt, e.FileTypeGroup,
		})
	}
	return tbl
}

// searchTerm picks the first string parameter longer than two characters,
// stripped of SQL wildcards. Queries routed here came from LIKE patterns.
func searchTerm(params []any) string {
	for _, p := range params {
		s, ok := p.(string)
		if !ok {
			continue
		}
		s = strings.Trim(s, "%_*")
		if len(s) > 2 {
			return s
		}
	}
	return defaultSearchTerm
}

// smallIntParam returns the first positive integer parameter small enough
// to plausibly be a LIMIT, or fallback.
func smallIntParam(params []any, fallback int) int {
	for _, p := range params {
		if n, ok := intValue(p); ok && n > 0 && n <= maxSmallInt {
			return int(n)
		}
	}
	return fallback
}

func firstIntParam(params []any) (int64, bool) {
	for _, p := range params {
		if n, ok := intValue(p); ok {
			return n, true
		}
	}
	return 0, false
}

// intValue unwraps the integer types parameters arrive as. float64 shows
// up when params round-trip through JSON; only whole values count.
func intValue(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}
