// Package main is the entry point for the Hygieia health engine.
// It wires the SQLite store, the rule-evaluation engine, the analytics
// engine and the HTTP API, then runs until interrupted.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hygieia/hygieia/internal/analytics"
	"github.com/hygieia/hygieia/internal/async"
	"github.com/hygieia/hygieia/internal/cache"
	"github.com/hygieia/hygieia/internal/config"
	"github.com/hygieia/hygieia/internal/engine"
	"github.com/hygieia/hygieia/internal/monitoring"
	"github.com/hygieia/hygieia/internal/notify"
	"github.com/hygieia/hygieia/internal/scheduler"
	"github.com/hygieia/hygieia/internal/server"
	"github.com/hygieia/hygieia/internal/store"
	"github.com/hygieia/hygieia/internal/version"
	"github.com/hygieia/hygieia/pkg/logger"
)

const (
	shutdownTimeout      = 30 * time.Second
	correlationCacheSize = 256
)

func main() {
	log := logger.NewLogger()

	log.Info("Starting Hygieia health engine",
		"version", version.GetVersion(),
	)

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.DatabasePath, logger.WithComponent(log, "store"))
	if err != nil {
		log.Error("Failed to open database", "error", err, "path", cfg.DatabasePath)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error("Failed to close database", "error", err)
		}
	}()

	metrics := monitoring.NewMetrics(logger.WithComponent(log, "metrics"))

	tracer, err := monitoring.NewTracer(&monitoring.TracingConfig{
		ServiceName:    "hygieia",
		ServiceVersion: version.GetVersion(),
		Environment:    os.Getenv("ENVIRONMENT"),
		OTLPEndpoint:   cfg.OTLPEndpoint,
		EnableConsole:  cfg.TracingConsole,
		SampleRate:     1.0,
	}, logger.WithComponent(log, "tracing"))
	if err != nil {
		log.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	clock := engine.NewSystemClock(cfg.Timezone)

	notifier := notify.NewDispatcher(cfg, clock, logger.WithComponent(log, "notify"))
	dispatcher := engine.NewDispatcher(st, notifier, metrics, logger.WithComponent(log, "dispatcher"))

	pool := async.NewPool(cfg.WorkerPoolSize, cfg.JobQueueSize, logger.WithComponent(log, "pool"))
	pool.Start()

	eng := engine.New(st, st, dispatcher, pool, clock, metrics, tracer,
		logger.WithComponent(log, "engine"))

	correlationCache := cache.NewMemoryCache(correlationCacheSize)
	analyticsEngine := analytics.New(st, correlationCache, metrics, tracer, clock,
		logger.WithComponent(log, "analytics"))

	healthMon := monitoring.NewHealthMonitor(logger.WithComponent(log, "health"), version.GetVersion())
	healthMon.Register("database", st.Ping)
	healthMon.Register("worker_pool", func(context.Context) error {
		if stats := pool.Stats(); stats.QueueLength == stats.QueueCapacity {
			return errors.New("evaluation queue is full")
		}
		return nil
	})

	sched := scheduler.New(eng, time.Duration(cfg.CheckIntervalMinutes)*time.Minute,
		logger.WithComponent(log, "scheduler"))

	srv := server.New(cfg, eng, dispatcher, st, analyticsEngine, metrics, healthMon,
		logger.WithComponent(log, "server"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.Start(ctx)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop accepting requests first, then the periodic work behind them.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	sched.Stop()
	pool.Stop()
	correlationCache.Stop()

	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shut down tracing", "error", err)
	}

	log.Info("Server exited")
}
