package repository

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/avelac/retrace/internal/activity"
)

// Metadata keys the capture pipeline attaches to each screenshot entity.
const (
	metaActiveWindow = "active_window"
	metaOCRResult    = "ocr_result"
	metaCategory     = "category"
	metaTasks        = "tasks"
	metaVLMResult    = "minicpm_v_result"
	metaVLMResultAlt = "vlm_result"
	metaSubtasks     = "subtasks"
)

const taskQuery = `
	SELECT
		e.id,
		e.filepath,
		e.created_at,
		MAX(CASE WHEN m.key = 'active_window' THEN m.value END) AS active_window,
		MAX(CASE WHEN m.key = 'category' THEN m.value END) AS category,
		MAX(CASE WHEN m.key = 'ocr_result' THEN m.value END) AS ocr_result,
		MAX(CASE WHEN m.key = 'tasks' THEN m.value END) AS tasks,
		MAX(CASE WHEN m.key IN ('minicpm_v_result', 'vlm_result') THEN m.value END) AS vlm_result,
		MAX(CASE WHEN m.key = 'subtasks' THEN m.value END) AS subtasks
	FROM entities e
	LEFT JOIN metadata_entries m ON m.entity_id = e.id
	WHERE e.created_at BETWEEN ? AND ?
	GROUP BY e.id, e.filepath, e.created_at
	ORDER BY e.created_at ASC
	LIMIT ?
`

// TaskRepository reads per-screenshot task records and derives task
// groups from them.
type TaskRepository struct {
	*Base
	normalizer      *activity.Normalizer
	captureInterval time.Duration
}

// NewTaskRepository wires a task repository. captureInterval is the
// sampling quantum each capture stands for; zero means the 5 minute
// default.
func NewTaskRepository(base *Base, normalizer *activity.Normalizer, captureInterval time.Duration) *TaskRepository {
	if normalizer == nil {
		normalizer = activity.NewNormalizer()
	}
	if captureInterval <= 0 {
		captureInterval = 5 * time.Minute
	}
	return &TaskRepository{
		Base:            base,
		normalizer:      normalizer,
		captureInterval: captureInterval,
	}
}

// TasksForPeriod returns the raw task records captured in [start, end],
// optionally filtered to the given categories. Failures yield an empty
// slice, never an error.
func (r *TaskRepository) TasksForPeriod(ctx context.Context, start, end time.Time, categories []string, limit int) []activity.Task {
	if limit <= 0 {
		limit = 1000
	}

	ttl := defaultCacheTTL
	if joinsMetadata(taskQuery) {
		// The metadata pivot is the expensive query here; cache it longer.
		ttl = 10 * time.Minute
	}

	tbl := r.execute(ctx, taskQuery, []any{start, end, limit}, ttl)

	tasks := make([]activity.Task, 0, tbl.Len())
	for _, row := range tbl.Rows {
		if len(row) < 9 {
			continue
		}

		category := asString(row[4])
		if category == "" {
			category = "uncategorized"
		}
		if len(categories) > 0 && !slices.Contains(categories, category) {
			continue
		}

		windowTitle := asString(row[3])
		title := firstLine(asString(row[6]))
		if title == "" {
			title = windowTitle
		}

		task := activity.Task{
			ID:              asInt64(row[0]),
			Title:           title,
			Category:        category,
			Timestamp:       asTime(row[2]),
			DurationMinutes: r.captureInterval.Minutes(),
			WindowTitle:     windowTitle,
			OCRText:         asString(row[5]),
			ScreenshotPath:  asString(row[1]),
		}
		if vlm, subtasks := asString(row[7]), asString(row[8]); vlm != "" || subtasks != "" {
			task.Metadata = map[string]string{}
			if vlm != "" {
				task.Metadata[metaVLMResult] = vlm
			}
			if subtasks != "" {
				task.Metadata[metaSubtasks] = subtasks
			}
		}
		tasks = append(tasks, task)
	}

	return tasks
}

// TaskGroups coalesces the period's captures into task-group intervals.
func (r *TaskRepository) TaskGroups(ctx context.Context, start, end time.Time, opts activity.GroupOptions) []activity.TaskGroup {
	tasks := r.TasksForPeriod(ctx, start, end, nil, 0)
	return activity.Group(tasks, r.normalizer, opts)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
