package main

import (
	"context"
	"flag"
	"log"

	"github.com/avelac/retrace/internal/cache"
	"github.com/avelac/retrace/internal/config"
	"github.com/avelac/retrace/internal/report"
	"github.com/avelac/retrace/internal/repository"
	"github.com/avelac/retrace/internal/resilience"
)

func main() {
	reportType := flag.String("type", "daily_summary", "report type: daily_summary, category_breakdown, app_usage, hourly_breakdown, task_groups")
	startTime := flag.String("start", "", "period start (RFC 3339), defaults to 24h ago")
	endTime := flag.String("end", "", "period end (RFC 3339), defaults to now")
	format := flag.String("format", "csv", "output format: csv or json")
	output := flag.String("output", "", "output directory")
	flag.Parse()

	cfg := config.Load()

	db, err := config.OpenDB(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("failed to close database: %v", err)
		}
	}()

	// Reports read the database directly; no API routing and no shared
	// cache tier for a one-shot run.
	coordinator, err := cache.New("")
	if err != nil {
		log.Fatal(err)
	}

	base := repository.NewBase(db, coordinator, nil, resilience.NewBreaker(0, 0))
	tasks := repository.NewTaskRepository(base, nil, cfg.CaptureInterval)
	metricsRepo := repository.NewMetricsRepository(base, tasks)
	activities := repository.NewActivityRepository(base)

	outputPath := *output
	if outputPath == "" {
		outputPath = cfg.ReportOutputPath
	}

	generator := report.NewGenerator(tasks, metricsRepo, activities)
	path, err := generator.Generate(context.Background(), report.Request{
		ReportType: *reportType,
		StartTime:  *startTime,
		EndTime:    *endTime,
		Format:     *format,
		OutputPath: outputPath,
	})
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("Report written to %s", path)
}
