// Package activity holds the screenshot-derived task model and the
// grouping algorithm that coalesces raw captures into task-group
// intervals.
package activity

import "time"

// Task is one captured screenshot annotated with its extracted metadata.
// DurationMinutes is the sampling quantum the capture tool runs at, not a
// measured value. Tasks are immutable once built.
type Task struct {
	ID              int64             `json:"id"`
	Title           string            `json:"title"`
	Category        string            `json:"category"`
	Timestamp       time.Time         `json:"timestamp"`
	DurationMinutes float64           `json:"duration_minutes"`
	WindowTitle     string            `json:"window_title"`
	OCRText         string            `json:"ocr_text,omitempty"`
	ScreenshotPath  string            `json:"screenshot_path,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// TaskGroup is a coalesced interval of same-context activity.
// EndTime is never before StartTime, and DurationMinutes is floored at
// TaskCount*0.25 so rapid same-minute captures do not collapse to zero.
type TaskGroup struct {
	WindowTitle     string    `json:"window_title"`
	Category        string    `json:"category"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes float64   `json:"duration_minutes"`
	TaskCount       int       `json:"task_count"`
	Tasks           []Task    `json:"tasks"`
}

// DailyMetrics is the per-day rollup served by the metrics repository.
// Sum of Categories always equals TotalTasks.
type DailyMetrics struct {
	Date                 string         `json:"date"`
	TotalTasks           int            `json:"total_tasks"`
	TotalDurationMinutes float64        `json:"total_duration_minutes"`
	UniqueWindows        int            `json:"unique_windows"`
	Categories           map[string]int `json:"categories"`
	ProductiveMinutes    float64        `json:"productive_time_minutes"`
	MostUsedApps         []AppUsage     `json:"most_used_apps"`
	PeakHours            []int          `json:"peak_hours"`
}

type AppUsage struct {
	App     string  `json:"app"`
	Minutes float64 `json:"minutes"`
}
