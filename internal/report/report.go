// Package report exports activity rollups to CSV or JSON files.
package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/avelac/retrace/internal/activity"
	"github.com/avelac/retrace/internal/repository"
)

// Request describes one export: what to report on, over which period,
// and where to put it.
type Request struct {
	ReportType string `json:"report_type"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Format     string `json:"format"`
	OutputPath string `json:"output_path"`
}

type Generator struct {
	tasks      *repository.TaskRepository
	metrics    *repository.MetricsRepository
	activities *repository.ActivityRepository
}

func NewGenerator(tasks *repository.TaskRepository, metrics *repository.MetricsRepository, activities *repository.ActivityRepository) *Generator {
	return &Generator{tasks: tasks, metrics: metrics, activities: activities}
}

// Generate builds the requested report and writes it to disk, returning
// the output file path.
func (g *Generator) Generate(ctx context.Context, req Request) (string, error) {
	req, err := withDefaults(req)
	if err != nil {
		return "", fmt.Errorf("invalid request: %w", err)
	}

	start, end, err := parseTimeRange(req)
	if err != nil {
		return "", fmt.Errorf("invalid time range: %w", err)
	}

	log.Printf("generating %s report (format: %s, period: %s to %s)",
		req.ReportType, req.Format, start.Format(time.RFC3339), end.Format(time.RFC3339))

	var data [][]string
	switch req.ReportType {
	case "daily_summary":
		data = g.generateDailySummary(ctx, start, end)
	case "category_breakdown":
		data = g.generateCategoryBreakdown(ctx, start, end)
	case "app_usage":
		data = g.generateAppUsage(ctx, start, end)
	case "hourly_breakdown":
		data = g.generateHourlyBreakdown(ctx, start, end)
	case "task_groups":
		data = g.generateTaskGroups(ctx, start, end)
	default:
		return "", fmt.Errorf("unsupported report type: %s (available: daily_summary, category_breakdown, app_usage, hourly_breakdown, task_groups)", req.ReportType)
	}

	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	outputFile, err := save(req, data)
	if err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}

	log.Printf("report generated: %s (%d rows)", outputFile, len(data)-1)
	return outputFile, nil
}

func withDefaults(req Request) (Request, error) {
	if req.ReportType == "" {
		return req, errors.New("missing required field: report_type")
	}
	if req.OutputPath == "" {
		req.OutputPath = "./reports"
	}
	if req.Format == "" {
		req.Format = "csv"
	}
	return req, nil
}

func parseTimeRange(req Request) (time.Time, time.Time, error) {
	start := time.Now().Add(-24 * time.Hour)
	end := time.Now()

	if req.StartTime != "" {
		parsed, err := time.Parse(time.RFC3339, req.StartTime)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_time format: %w", err)
		}
		start = parsed
	}
	if req.EndTime != "" {
		parsed, err := time.Parse(time.RFC3339, req.EndTime)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_time format: %w", err)
		}
		end = parsed
	}

	return start, end, nil
}

func (g *Generator) generateDailySummary(ctx context.Context, start, end time.Time) [][]string {
	data := [][]string{
		{"Date", "Total Tasks", "Total Duration (min)", "Unique Windows", "Productive (min)"},
	}

	for day := start.Truncate(24 * time.Hour); !day.After(end); day = day.AddDate(0, 0, 1) {
		m := g.metrics.DailyMetrics(ctx, day)
		if m.TotalTasks == 0 {
			continue
		}
		data = append(data, []string{
			m.Date,
			fmt.Sprintf("%d", m.TotalTasks),
			fmt.Sprintf("%.1f", m.TotalDurationMinutes),
			fmt.Sprintf("%d", m.UniqueWindows),
			fmt.Sprintf("%.1f", m.ProductiveMinutes),
		})
	}

	return data
}

func (g *Generator) generateCategoryBreakdown(ctx context.Context, start, end time.Time) [][]string {
	breakdown := g.activities.CategoryBreakdown(ctx, start, end)

	data := [][]string{{"Category", "Captures"}}
	for _, category := range sortedKeys(breakdown) {
		data = append(data, []string{category, fmt.Sprintf("%d", breakdown[category])})
	}
	return data
}

func (g *Generator) generateAppUsage(ctx context.Context, start, end time.Time) [][]string {
	data := [][]string{{"Date", "App", "Minutes"}}

	for day := start.Truncate(24 * time.Hour); !day.After(end); day = day.AddDate(0, 0, 1) {
		m := g.metrics.DailyMetrics(ctx, day)
		for _, app := range m.MostUsedApps {
			data = append(data, []string{
				m.Date,
				app.App,
				fmt.Sprintf("%.1f", app.Minutes),
			})
		}
	}

	return data
}

func (g *Generator) generateHourlyBreakdown(ctx context.Context, start, end time.Time) [][]string {
	hours := g.activities.HourlyActivity(ctx, start, end)

	data := [][]string{{"Hour", "Captures"}}
	for hour := 0; hour < 24; hour++ {
		if count, ok := hours[hour]; ok {
			data = append(data, []string{fmt.Sprintf("%02d:00", hour), fmt.Sprintf("%d", count)})
		}
	}
	return data
}

func (g *Generator) generateTaskGroups(ctx context.Context, start, end time.Time) [][]string {
	groups := g.tasks.TaskGroups(ctx, start, end, activity.GroupOptions{})

	data := [][]string{
		{"Window", "Category", "Start", "End", "Duration (min)", "Captures"},
	}
	for _, group := range groups {
		data = append(data, []string{
			group.WindowTitle,
			group.Category,
			group.StartTime.Format("2006-01-02 15:04"),
			group.EndTime.Format("2006-01-02 15:04"),
			fmt.Sprintf("%.1f", group.DurationMinutes),
			fmt.Sprintf("%d", group.TaskCount),
		})
	}
	return data
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func save(req Request, data [][]string) (string, error) {
	if err := os.MkdirAll(req.OutputPath, 0755); err != nil {
		return "", err
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("retrace_%s_%s.%s", req.ReportType, timestamp, req.Format)
	fullPath := filepath.Join(req.OutputPath, filename)

	switch req.Format {
	case "csv":
		return fullPath, saveAsCSV(fullPath, data)
	case "json":
		return fullPath, saveAsJSON(fullPath, data)
	default:
		return "", fmt.Errorf("unsupported format: %s", req.Format)
	}
}

func saveAsCSV(path string, data [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Printf("failed to close file: %v", closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	return writer.WriteAll(data)
}

func saveAsJSON(path string, data [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Printf("failed to close file: %v", closeErr)
		}
	}()

	if len(data) < 2 {
		return errors.New("insufficient data for JSON export")
	}

	headers := data[0]
	rows := data[1:]

	var records []map[string]string
	for _, row := range rows {
		record := make(map[string]string)
		for i, header := range headers {
			if i < len(row) {
				record[header] = row[i]
			}
		}
		records = append(records, record)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]any{
		"generated_at": time.Now().Format(time.RFC3339),
		"data":         records,
		"total_rows":   len(records),
	})
}
