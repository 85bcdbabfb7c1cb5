package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qinyuanle/legal-qa-engine/internal/bootstrap"
	"github.com/qinyuanle/legal-qa-engine/internal/config"
	"github.com/qinyuanle/legal-qa-engine/internal/observability/logging"
	"github.com/qinyuanle/legal-qa-engine/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:        ":" + cfg.WorkerMetricsPort,
		Handler:     metricsMux,
		ReadTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker_metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	runBuild := func(parent context.Context, force bool) error {
		buildCtx, cancel := context.WithTimeout(parent, 10*time.Minute)
		defer cancel()

		workerMetrics.StartBuild()
		start := time.Now()
		report, buildErr := app.Builder.Rebuild(buildCtx, force)
		workerMetrics.FinishBuild("worker", report, time.Since(start), buildErr)
		if buildErr != nil {
			slog.Error("graph_rebuild_failed", "force", force, "error", buildErr)
			return buildErr
		}
		return nil
	}

	// Startup build: the corpus hash turns this into a no-op when nothing
	// changed since the persisted snapshot. An empty corpus is survivable;
	// the graph path just stays dark until the first seed + rebuild.
	if err := runBuild(ctx, false); err != nil {
		slog.Warn("startup_rebuild_incomplete", "error", err)
	}

	slog.Info("worker_subscribed", "subject", cfg.NATSRebuildSubject)
	err = app.Bus.SubscribeRebuildRequested(ctx, func(handlerCtx context.Context, force bool) error {
		return runBuild(handlerCtx, force)
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
