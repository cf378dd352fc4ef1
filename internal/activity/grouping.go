package activity

import (
	"sort"
	"time"
)

const (
	DefaultGapThreshold = 15 * time.Minute
	DefaultMinDuration  = 30 * time.Second
	DefaultMinTaskCount = 3

	// perTaskFloorMinutes guards groups of same-minute captures against
	// collapsing to near-zero duration.
	perTaskFloorMinutes = 0.25
)

// GroupOptions tunes the grouping walk. Zero values take the defaults.
type GroupOptions struct {
	GapThreshold time.Duration
	MinDuration  time.Duration
	MinTaskCount int
}

func (o GroupOptions) withDefaults() GroupOptions {
	if o.GapThreshold <= 0 {
		o.GapThreshold = DefaultGapThreshold
	}
	if o.MinDuration <= 0 {
		o.MinDuration = DefaultMinDuration
	}
	if o.MinTaskCount <= 0 {
		o.MinTaskCount = DefaultMinTaskCount
	}
	return o
}

// Group walks tasks in timestamp order and coalesces consecutive captures
// of the same normalized window title into TaskGroups. A new group starts
// on a title change or when the gap since the group's last capture
// exceeds the threshold; either condition alone splits. Groups below the
// minimum duration are dropped unless they carry MinTaskCount or more
// tasks, so a single short capture never survives as a degenerate group.
func Group(tasks []Task, normalizer *Normalizer, opts GroupOptions) []TaskGroup {
	opts = opts.withDefaults()
	if normalizer == nil {
		normalizer = NewNormalizer()
	}
	if len(tasks) == 0 {
		return []TaskGroup{}
	}

	ordered := make([]Task, len(tasks))
	copy(ordered, tasks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	groups := []TaskGroup{}
	var current *TaskGroup
	var currentTitle string

	for _, t := range ordered {
		title := normalizer.Normalize(t.WindowTitle)

		startNew := current == nil ||
			title != currentTitle ||
			t.Timestamp.Sub(current.EndTime) > opts.GapThreshold

		if startNew {
			if current != nil {
				if g, keep := finalize(*current, opts); keep {
					groups = append(groups, g)
				}
			}
			current = &TaskGroup{
				WindowTitle: title,
				Category:    t.Category,
				StartTime:   t.Timestamp,
				EndTime:     t.Timestamp,
				Tasks:       []Task{t},
			}
			currentTitle = title
			continue
		}

		if t.Timestamp.After(current.EndTime) {
			current.EndTime = t.Timestamp
		}
		if current.Category == "" {
			current.Category = t.Category
		}
		current.Tasks = append(current.Tasks, t)
	}

	if current != nil {
		if g, keep := finalize(*current, opts); keep {
			groups = append(groups, g)
		}
	}

	return groups
}

// finalize applies the inclusion criterion and derives the group's
// duration. Many-task groups are kept even when their clock span is
// short: the sampling quantum under-reports rapid context switches.
func finalize(g TaskGroup, opts GroupOptions) (TaskGroup, bool) {
	span := g.EndTime.Sub(g.StartTime)
	g.TaskCount = len(g.Tasks)

	if span < opts.MinDuration && g.TaskCount < opts.MinTaskCount {
		return TaskGroup{}, false
	}

	spanMinutes := span.Minutes()
	floor := float64(g.TaskCount) * perTaskFloorMinutes
	g.DurationMinutes = spanMinutes
	if floor > g.DurationMinutes {
		g.DurationMinutes = floor
	}
	return g, true
}
