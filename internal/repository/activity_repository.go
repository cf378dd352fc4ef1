package repository

import (
	"context"
	"time"
)

const categoryBreakdownQuery = `
	SELECT m.value AS category, COUNT(DISTINCT e.id) AS count
	FROM entities e
	JOIN metadata_entries m ON m.entity_id = e.id AND m.key = 'category'
	WHERE e.created_at BETWEEN ? AND ?
	GROUP BY m.value
	ORDER BY count DESC
`

const hourlyActivityQuery = `
	SELECT CAST(strftime('%H', e.created_at) AS INTEGER) AS hour, COUNT(*) AS count
	FROM entities e
	WHERE e.created_at BETWEEN ? AND ?
	GROUP BY hour
	ORDER BY hour ASC
`

// ActivityRepository serves category and hourly breakdowns through the
// fallback stack.
type ActivityRepository struct {
	*Base
}

func NewActivityRepository(base *Base) *ActivityRepository {
	return &ActivityRepository{Base: base}
}

// CategoryBreakdown maps each extracted category to its capture count
// for the period.
func (r *ActivityRepository) CategoryBreakdown(ctx context.Context, start, end time.Time) map[string]int {
	tbl := r.execute(ctx, categoryBreakdownQuery, []any{start, end}, defaultCacheTTL)

	breakdown := make(map[string]int, tbl.Len())
	for _, row := range tbl.Rows {
		if len(row) < 2 {
			continue
		}
		if category := asString(row[0]); category != "" {
			breakdown[category] = int(asInt64(row[1]))
		}
	}
	return breakdown
}

// HourlyActivity returns capture counts indexed by hour of day.
func (r *ActivityRepository) HourlyActivity(ctx context.Context, start, end time.Time) map[int]int {
	tbl := r.execute(ctx, hourlyActivityQuery, []any{start, end}, defaultCacheTTL)

	hours := make(map[int]int, tbl.Len())
	for _, row := range tbl.Rows {
		if len(row) < 2 {
			continue
		}
		hours[int(asInt64(row[0]))] = int(asInt64(row[1]))
	}
	return hours
}
