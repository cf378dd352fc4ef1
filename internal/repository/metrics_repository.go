package repository

import (
	"context"
	"sort"
	"time"

	"github.com/avelac/retrace/internal/activity"
)

const summaryQuery = `
	SELECT
		COUNT(DISTINCT e.id) AS total_activities,
		COUNT(DISTINCT date(e.created_at)) AS active_days,
		COUNT(DISTINCT CASE WHEN m.key = 'active_window' THEN m.value END) AS unique_windows,
		COUNT(DISTINCT CASE WHEN m.key = 'category' THEN m.value END) AS unique_categories
	FROM entities e
	LEFT JOIN metadata_entries m ON m.entity_id = e.id
	WHERE e.created_at BETWEEN ? AND ?
`

// Summary is the period rollup served to dashboards.
type Summary struct {
	TotalActivities   int64   `json:"total_activities"`
	ActiveDays        int64   `json:"active_days"`
	UniqueWindows     int64   `json:"unique_windows"`
	UniqueCategories  int64   `json:"unique_categories"`
	AvgDailyActivity  float64 `json:"avg_daily_activities"`
}

// productiveCategories marks which extracted categories count toward
// productive time.
var productiveCategories = map[string]bool{
	"work":        true,
	"coding":      true,
	"development": true,
	"writing":     true,
	"research":    true,
}

// MetricsRepository serves aggregate rollups through the same fallback
// stack as the task repository.
type MetricsRepository struct {
	*Base
	tasks *TaskRepository
}

func NewMetricsRepository(base *Base, tasks *TaskRepository) *MetricsRepository {
	return &MetricsRepository{Base: base, tasks: tasks}
}

// MetricsSummary returns the period rollup. Failures yield a zero
// summary, never an error.
func (r *MetricsRepository) MetricsSummary(ctx context.Context, start, end time.Time) Summary {
	tbl := r.execute(ctx, summaryQuery, []any{start, end}, defaultCacheTTL)
	if tbl.IsEmpty() || len(tbl.Rows[0]) < 4 {
		return Summary{}
	}

	row := tbl.Rows[0]
	s := Summary{
		TotalActivities:  asInt64(row[0]),
		ActiveDays:       asInt64(row[1]),
		UniqueWindows:    asInt64(row[2]),
		UniqueCategories: asInt64(row[3]),
	}
	if s.ActiveDays > 0 {
		s.AvgDailyActivity = float64(s.TotalActivities) / float64(s.ActiveDays)
	}
	return s
}

// DailyMetrics aggregates one day's captures. Derived entirely from the
// task records so the category counts always sum to the task total.
func (r *MetricsRepository) DailyMetrics(ctx context.Context, date time.Time) activity.DailyMetrics {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.Add(24*time.Hour - time.Nanosecond)

	tasks := r.tasks.TasksForPeriod(ctx, dayStart, dayEnd, nil, 0)

	m := activity.DailyMetrics{
		Date:       dayStart.Format("2006-01-02"),
		TotalTasks: len(tasks),
		Categories: map[string]int{},
	}

	windows := map[string]bool{}
	appMinutes := map[string]float64{}
	hourCounts := map[int]int{}

	for _, t := range tasks {
		m.TotalDurationMinutes += t.DurationMinutes
		m.Categories[t.Category]++
		if productiveCategories[t.Category] {
			m.ProductiveMinutes += t.DurationMinutes
		}
		if t.WindowTitle != "" {
			windows[t.WindowTitle] = true
		}

		app := r.tasks.normalizer.Normalize(t.WindowTitle)
		appMinutes[app] += t.DurationMinutes
		hourCounts[t.Timestamp.Hour()]++
	}

	m.UniqueWindows = len(windows)
	m.MostUsedApps = topApps(appMinutes, 5)
	m.PeakHours = topHours(hourCounts, 3)
	return m
}

func topApps(minutes map[string]float64, n int) []activity.AppUsage {
	apps := make([]activity.AppUsage, 0, len(minutes))
	for app, mins := range minutes {
		apps = append(apps, activity.AppUsage{App: app, Minutes: mins})
	}
	sort.Slice(apps, func(i, j int) bool {
		if apps[i].Minutes != apps[j].Minutes {
			return apps[i].Minutes > apps[j].Minutes
		}
		return apps[i].App < apps[j].App
	})
	if len(apps) > n {
		apps = apps[:n]
	}
	return apps
}

func topHours(counts map[int]int, n int) []int {
	hours := make([]int, 0, len(counts))
	for hour := range counts {
		hours = append(hours, hour)
	}
	sort.Slice(hours, func(i, j int) bool {
		if counts[hours[i]] != counts[hours[j]] {
			return counts[hours[i]] > counts[hours[j]]
		}
		return hours[i] < hours[j]
	})
	if len(hours) > n {
		hours = hours[:n]
	}
	return hours
}
