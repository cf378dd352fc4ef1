package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avelac/retrace/internal/alert"
	"github.com/avelac/retrace/internal/api"
	"github.com/avelac/retrace/internal/cache"
	"github.com/avelac/retrace/internal/config"
	"github.com/avelac/retrace/internal/memos"
	"github.com/avelac/retrace/internal/middleware"
	"github.com/avelac/retrace/internal/repository"
	"github.com/avelac/retrace/internal/resilience"
	"github.com/avelac/retrace/internal/router"
)

func main() {
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

	coordinator, err := cache.New(cfg.RedisAddr)
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := coordinator.Close(); err != nil {
			log.Printf("failed to close cache: %v", err)
		}
	}()

	breaker := resilience.NewBreaker(cfg.BreakerThreshold, cfg.BreakerCoolDown)
	mailer := alert.NewMailer(cfg.AlertAPIKey, cfg.AlertFromName, cfg.AlertFromAddress, cfg.AlertTo, cfg.BreakerCoolDown)
	breaker.OnOpen(mailer.Notifier())

	client := memos.NewClient(cfg.MemosURL, cfg.MemosTimeout)
	queryRouter := router.New(client, breaker)

	base := repository.NewBase(db, coordinator, queryRouter, breaker)
	tasks := repository.NewTaskRepository(base, nil, cfg.CaptureInterval)
	metricsRepo := repository.NewMetricsRepository(base, tasks)
	activities := repository.NewActivityRepository(base)

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go coordinator.StartSweeper(sweepCtx, cfg.SweepInterval)

	apiHandler := api.NewAPI(tasks, metricsRepo, activities)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", middleware.RequestID(middleware.MetricsMiddleware(apiHandler)))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Printf("Server starting on :%s", cfg.Port)
	log.Printf("Memos API at %s", cfg.MemosURL)
	if cfg.RedisAddr != "" {
		log.Printf("Redis cache tier at %s", cfg.RedisAddr)
	} else {
		log.Printf("Redis cache tier disabled, memory only")
	}

	if err := server.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
