package router

import (
	"strings"

	"github.com/avelac/retrace/internal/resilience"
)

// intent is the closed set of query shapes the router knows how to serve
// over the API. Everything else is unroutable and falls through to SQL.
type intent int

const (
	intentUnroutable intent = iota
	intentSearch
	intentListing
	intentEntityLookup
)

func (i intent) endpoint() string {
	switch i {
	case intentSearch:
		return endpointSearch
	case intentListing:
		return endpointEntities
	case intentEntityLookup:
		return endpointEntity
	}
	return resilience.GeneralEndpoint
}

// dataQueryMarkers: a routable query must contain at least one of these
// on top of starting with SELECT or WITH. Deliberately conservative; any
// structurally unusual SQL stays on the database path.
var dataQueryMarkers = []string{
	"select", "with", "from entities", "from metadata_entries",
	"join", "where", "order by", "limit",
}

func isDataQuery(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if !strings.HasPrefix(q, "select") && !strings.HasPrefix(q, "with") {
		return false
	}
	for _, marker := range dataQueryMarkers {
		if strings.Contains(q, marker) {
			return true
		}
	}
	return false
}

// classify maps a query plus its parameters onto an intent. Order
// matters: a search shape wins over a listing shape, and the entity
// lookup is the catch-all for queries carrying an integer parameter.
// Joins are always unroutable: no memos endpoint can express them.
func classify(query string, params []any) intent {
	q := strings.ToLower(query)

	if strings.Contains(q, "join") {
		return intentUnroutable
	}

	switch {
	case strings.Contains(q, "search") || strings.Contains(q, "like") || strings.Contains(q, "match"):
		return intentSearch
	case (strings.Contains(q, "entities") || strings.Contains(q, "screenshots")) && strings.Contains(q, "limit"):
		return intentListing
	default:
		if _, ok := firstIntParam(params); ok {
			return intentEntityLookup
		}
		return intentUnroutable
	}
}
