// Package bootstrap wires infrastructure to the core use cases for both
// services. The api and worker binaries share one composition root so their
// view of storage keys, schema and queue subjects can never diverge.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quizpix/quizpix/internal/config"
	"github.com/quizpix/quizpix/internal/core/ports"
	"github.com/quizpix/quizpix/internal/core/usecase"
	"github.com/quizpix/quizpix/internal/infrastructure/export"
	"github.com/quizpix/quizpix/internal/infrastructure/extractor/pdftext"
	"github.com/quizpix/quizpix/internal/infrastructure/preprocess"
	natsqueue "github.com/quizpix/quizpix/internal/infrastructure/queue/nats"
	"github.com/quizpix/quizpix/internal/infrastructure/recognition"
	"github.com/quizpix/quizpix/internal/infrastructure/repository/postgres"
	"github.com/quizpix/quizpix/internal/infrastructure/resilience"
	"github.com/quizpix/quizpix/internal/infrastructure/storage/localfs"
	"github.com/quizpix/quizpix/internal/observability/logging"
	"github.com/quizpix/quizpix/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Service string

	Queue   *natsqueue.Queue
	Batches ports.BatchRepository
	Results ports.ResultStore

	IngestUC  *usecase.IngestBatchUseCase
	GradeUC   *usecase.GradeBatchUseCase
	CorrectUC *usecase.CorrectResultUseCase
	ExportUC  *usecase.ExportBatchUseCase
	KeysUC    *usecase.ImportAnswerKeysUseCase

	HTTPMetrics   *metrics.HTTPServerMetrics
	WorkerMetrics *metrics.WorkerMetrics

	closeFn func()
}

func New(ctx context.Context, service string, cfg config.Config) (*App, error) {
	slog.SetDefault(logging.NewJSONLogger(service, cfg.LogLevel))

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	batches := postgres.NewBatchRepository(db)
	results := postgres.NewResultRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	preprocessor := preprocess.New(cfg.PreprocessMaxWidth, cfg.PreprocessJPEGQuality, float64(cfg.PreprocessRenderDPI))
	recognizer := recognition.New(
		cfg.RecognitionBaseURL,
		cfg.RecognitionAPIKey,
		cfg.RecognitionModel,
		time.Duration(cfg.RecognitionTimeoutSeconds)*time.Second,
	)

	workerMetrics := metrics.NewWorkerMetrics(service)
	httpMetrics := metrics.NewHTTPServerMetrics(service)

	gradeCfg := usecase.GradeConfig{
		ChunkWidth:        cfg.GradeChunkWidth,
		ReducedChunkWidth: cfg.GradeReducedChunkWidth,
		StaggerDelay:      time.Duration(cfg.GradeStaggerMillis) * time.Millisecond,
		ChunkPacing:       time.Duration(cfg.GradeChunkPacingMillis) * time.Millisecond,
		CooldownDelay:     time.Duration(cfg.GradeCooldownMillis) * time.Millisecond,
	}

	return &App{
		Config:  cfg,
		Service: service,
		Queue:   queue,
		Batches: batches,
		Results: results,

		IngestUC: usecase.NewIngestBatchUseCase(batches, storage, queue, preprocessor),
		GradeUC: usecase.NewGradeBatchUseCase(
			batches, results, storage, recognizer,
			workerMonitor{m: workerMetrics, service: service},
			gradeCfg,
		),
		CorrectUC: usecase.NewCorrectResultUseCase(batches, results),
		ExportUC:  usecase.NewExportBatchUseCase(results, export.NewRenderer()),
		KeysUC: usecase.NewImportAnswerKeysUseCase(
			preprocessor,
			recognition.WithResilience(recognizer, executor),
			pdftext.New(),
		),

		HTTPMetrics:   httpMetrics,
		WorkerMetrics: workerMetrics,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// workerMonitor feeds scheduler observations into the worker registry.
type workerMonitor struct {
	m       *metrics.WorkerMetrics
	service string
}

func (w workerMonitor) BatchPicked(queueLag time.Duration) {
	w.m.ObserveQueueLag(w.service, queueLag)
}

func (w workerMonitor) PageGraded(status string, duration time.Duration) {
	w.m.PageGraded(w.service, status, duration)
}

func (w workerMonitor) ThrottleEngaged() {
	w.m.ThrottleEngaged(w.service)
}
