// Package api exposes the tracker's read API over a plain ServeMux.
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avelac/retrace/internal/activity"
	"github.com/avelac/retrace/internal/httputil"
	"github.com/avelac/retrace/internal/repository"
)

type API struct {
	tasks      *repository.TaskRepository
	metrics    *repository.MetricsRepository
	activities *repository.ActivityRepository
	mux        *http.ServeMux
}

func NewAPI(tasks *repository.TaskRepository, metrics *repository.MetricsRepository, activities *repository.ActivityRepository) *API {
	api := &API{
		tasks:      tasks,
		metrics:    metrics,
		activities: activities,
		mux:        http.NewServeMux(),
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	a.mux.HandleFunc("/api/tasks", a.handleTasks)
	a.mux.HandleFunc("/api/groups", a.handleGroups)
	a.mux.HandleFunc("/api/metrics/summary", a.handleMetricsSummary)
	a.mux.HandleFunc("/api/metrics/daily/", a.handleDailyMetrics)
	a.mux.HandleFunc("/api/activity/categories", a.handleCategories)
	a.mux.HandleFunc("/api/activity/hourly", a.handleHourly)
	a.mux.HandleFunc("/api/stats/performance", a.handlePerformanceStats)
	a.mux.HandleFunc("/api/stats/circuit", a.handleCircuitStatus)
	a.mux.HandleFunc("/api/cache/invalidate/", a.handleCacheInvalidate)
	a.mux.HandleFunc("/healthz", a.handleHealth)
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func (a *API) handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start, end, err := parsePeriod(r)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var categories []string
	if raw := r.URL.Query().Get("categories"); raw != "" {
		categories = strings.Split(raw, ",")
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	tasks := a.tasks.TasksForPeriod(r.Context(), start, end, categories, limit)
	httputil.WriteJSON(w, tasks, http.StatusOK)
}

func (a *API) handleGroups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start, end, err := parsePeriod(r)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	opts := activity.GroupOptions{}
	q := r.URL.Query()
	if v, err := strconv.ParseFloat(q.Get("min_duration_minutes"), 64); err == nil {
		opts.MinDuration = time.Duration(v * float64(time.Minute))
	}
	if v, err := strconv.ParseFloat(q.Get("gap_minutes"), 64); err == nil {
		opts.GapThreshold = time.Duration(v * float64(time.Minute))
	}
	if v, err := strconv.Atoi(q.Get("min_task_count")); err == nil {
		opts.MinTaskCount = v
	}

	groups := a.tasks.TaskGroups(r.Context(), start, end, opts)
	httputil.WriteJSON(w, groups, http.StatusOK)
}

func (a *API) handleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start, end, err := parsePeriod(r)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	httputil.WriteJSON(w, a.metrics.MetricsSummary(r.Context(), start, end), http.StatusOK)
}

func (a *API) handleDailyMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/api/metrics/daily/")
	if raw == "" {
		httputil.WriteJSONError(w, "Date is required", http.StatusBadRequest)
		return
	}

	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		httputil.WriteJSONError(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	httputil.WriteJSON(w, a.metrics.DailyMetrics(r.Context(), date), http.StatusOK)
}

func (a *API) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start, end, err := parsePeriod(r)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	httputil.WriteJSON(w, a.activities.CategoryBreakdown(r.Context(), start, end), http.StatusOK)
}

func (a *API) handleHourly(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start, end, err := parsePeriod(r)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	httputil.WriteJSON(w, a.activities.HourlyActivity(r.Context(), start, end), http.StatusOK)
}

func (a *API) handlePerformanceStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	httputil.WriteJSON(w, a.tasks.PerformanceStats(), http.StatusOK)
}

func (a *API) handleCircuitStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	httputil.WriteJSON(w, a.tasks.CircuitStatus(), http.StatusOK)
}

func (a *API) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pattern := strings.TrimPrefix(r.URL.Path, "/api/cache/invalidate/")
	removed := a.tasks.InvalidateCache(r.Context(), pattern)
	httputil.WriteJSON(w, map[string]int{"removed": removed}, http.StatusOK)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// parsePeriod reads the start/end query parameters, accepting RFC 3339
// timestamps or bare dates. Missing bounds default to the last 24 hours.
func parsePeriod(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()

	end := time.Now()
	if raw := q.Get("end"); raw != "" {
		parsed, err := parseTimeParam(raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = parsed
	}

	start := end.Add(-24 * time.Hour)
	if raw := q.Get("start"); raw != "" {
		parsed, err := parseTimeParam(raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = parsed
	}

	return start, end, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
