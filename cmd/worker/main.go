package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quizpix/quizpix/internal/bootstrap"
	"github.com/quizpix/quizpix/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "worker", cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: app.WorkerMetrics.Handler(),
	}
	go func() {
		log.Printf("worker metrics listening on :%s", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("worker metrics server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	batchTimeout := time.Duration(cfg.WorkerBatchTimeoutGrace) * time.Minute

	log.Printf("worker subscribed to %s", cfg.NATSSubject)
	err = app.Queue.SubscribeBatchIngested(ctx, func(handlerCtx context.Context, batchID string) error {
		// A throttled batch spends most of its wall clock in cooldowns;
		// the timeout is a safety net, not a pacing mechanism.
		gradeCtx, cancel := context.WithTimeout(handlerCtx, batchTimeout)
		defer cancel()

		app.WorkerMetrics.StartBatch()
		started := time.Now()
		gradeErr := app.GradeUC.GradeByID(gradeCtx, batchID)
		app.WorkerMetrics.FinishBatch("worker", time.Since(started), gradeErr)
		return gradeErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
