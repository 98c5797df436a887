package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/quizpix/quizpix/internal/core/domain"
	"github.com/quizpix/quizpix/internal/core/ports"
)

// GradeConfig tunes the batch scheduler. The defaults mirror the pacing the
// upstream quota tolerates in practice: four staggered calls per chunk,
// halved width plus a long cooldown as soon as any call is rate limited.
type GradeConfig struct {
	ChunkWidth        int
	ReducedChunkWidth int
	StaggerDelay      time.Duration
	ChunkPacing       time.Duration
	CooldownDelay     time.Duration
}

func DefaultGradeConfig() GradeConfig {
	return GradeConfig{
		ChunkWidth:        4,
		ReducedChunkWidth: 2,
		StaggerDelay:      800 * time.Millisecond,
		ChunkPacing:       2 * time.Second,
		CooldownDelay:     20 * time.Second,
	}
}

func (c GradeConfig) normalize() GradeConfig {
	def := DefaultGradeConfig()
	out := c
	if out.ChunkWidth <= 0 {
		out.ChunkWidth = def.ChunkWidth
	}
	if out.ReducedChunkWidth <= 0 || out.ReducedChunkWidth > out.ChunkWidth {
		out.ReducedChunkWidth = min(def.ReducedChunkWidth, out.ChunkWidth)
	}
	if out.StaggerDelay < 0 {
		out.StaggerDelay = def.StaggerDelay
	}
	if out.ChunkPacing <= 0 {
		out.ChunkPacing = def.ChunkPacing
	}
	if out.CooldownDelay <= 0 {
		out.CooldownDelay = def.CooldownDelay
	}
	return out
}

// GradeMonitor receives scheduler observations. Implementations must be
// safe for concurrent use.
type GradeMonitor interface {
	BatchPicked(queueLag time.Duration)
	PageGraded(status string, duration time.Duration)
	ThrottleEngaged()
}

type GradeBatchUseCase struct {
	batches    ports.BatchRepository
	results    ports.ResultStore
	storage    ports.ObjectStorage
	recognizer ports.SheetRecognizer
	monitor    GradeMonitor
	cfg        GradeConfig

	// sleep is replaceable in tests so backoff behavior is observable
	// without real waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewGradeBatchUseCase(
	batches ports.BatchRepository,
	results ports.ResultStore,
	storage ports.ObjectStorage,
	recognizer ports.SheetRecognizer,
	monitor GradeMonitor,
	cfg GradeConfig,
) *GradeBatchUseCase {
	return &GradeBatchUseCase{
		batches:    batches,
		results:    results,
		storage:    storage,
		recognizer: recognizer,
		monitor:    monitor,
		cfg:        cfg.normalize(),
		sleep:      sleepCtx,
	}
}

// GradeByID runs the grading pipeline over every page of a batch.
//
// Pages are processed in consecutive chunks. Units within a chunk run
// concurrently with staggered starts; each unit's outcome is captured in
// its own result row, so one failing page never aborts the batch. A
// rate-limit signal anywhere in a chunk marks the affected rows
// "queued-retry", imposes a cooldown and halves the next chunk's width;
// a clean chunk restores the default width after a short pacing delay.
func (uc *GradeBatchUseCase) GradeByID(ctx context.Context, batchID string) error {
	batch, err := uc.batches.GetByID(ctx, batchID)
	if err != nil {
		return fmt.Errorf("load batch: %w", err)
	}
	if uc.monitor != nil {
		uc.monitor.BatchPicked(time.Since(batch.CreatedAt))
	}
	if err := uc.batches.UpdateStatus(ctx, batchID, domain.BatchProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.runSchedule(ctx, batch); err != nil {
		if failErr := uc.batches.UpdateStatus(context.WithoutCancel(ctx), batchID, domain.BatchFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.batches.UpdateStatus(ctx, batchID, domain.BatchCompleted, ""); err != nil {
		return fmt.Errorf("set status=completed: %w", err)
	}
	return nil
}

func (uc *GradeBatchUseCase) runSchedule(ctx context.Context, batch *domain.Batch) error {
	keys := domain.ParseAllAnswerKeys(batch.AnswerKeyText)
	total := batch.PageCount

	width := uc.cfg.ChunkWidth
	pacer := rate.NewLimiter(rate.Every(uc.cfg.ChunkPacing), 1)
	completed := 0

	for start := 1; start <= total; {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("batch canceled before chunk at page %d: %w", start, err)
		}

		end := min(start+width-1, total)
		chunk := make([]domain.GradedResult, end-start+1)

		var wg sync.WaitGroup
		for page := start; page <= end; page++ {
			wg.Add(1)
			go func(slot, page int) {
				defer wg.Done()
				// Stagger unit starts so a chunk never lands on the
				// upstream service as a single burst.
				if slot > 0 {
					if err := uc.sleep(ctx, time.Duration(slot)*uc.cfg.StaggerDelay); err != nil {
						chunk[slot] = domain.FailedResult(page, domain.NoteProcessingFailed)
						return
					}
				}
				chunk[slot] = uc.gradePage(ctx, batch.ID, page, keys)
			}(page-start, page)
		}
		wg.Wait()

		throttled := false
		for _, res := range chunk {
			if res.Note == domain.NoteQueuedRetry {
				throttled = true
				break
			}
		}

		if err := uc.results.Append(ctx, batch.ID, chunk); err != nil {
			return fmt.Errorf("append chunk results: %w", err)
		}
		completed += len(chunk)
		if err := uc.batches.UpdateProgress(ctx, batch.ID, completed, throttled); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}

		start = end + 1
		if start > total {
			break
		}

		if throttled {
			if uc.monitor != nil {
				uc.monitor.ThrottleEngaged()
			}
			slog.Warn("batch_throttled",
				"batch_id", batch.ID,
				"completed", completed,
				"cooldown_ms", uc.cfg.CooldownDelay.Milliseconds(),
				"next_chunk_width", uc.cfg.ReducedChunkWidth,
			)
			if err := uc.sleep(ctx, uc.cfg.CooldownDelay); err != nil {
				return fmt.Errorf("cooldown interrupted: %w", err)
			}
			width = uc.cfg.ReducedChunkWidth
		} else {
			if err := pacer.Wait(ctx); err != nil {
				return fmt.Errorf("chunk pacing interrupted: %w", err)
			}
			width = uc.cfg.ChunkWidth
		}
	}
	return nil
}

// gradePage processes one unit of work. Every outcome becomes a result row:
// rate limits yield a "queued-retry" placeholder, other failures a generic
// error row with a zero score, success a fully scored sheet.
func (uc *GradeBatchUseCase) gradePage(ctx context.Context, batchID string, page int, keys domain.AnswerKeySet) domain.GradedResult {
	started := time.Now()

	img, err := uc.loadPage(ctx, batchID, page)
	if err == nil {
		var sheet domain.RecognizedSheet
		sheet, err = uc.recognizer.AnalyzeSheet(ctx, domain.PageImage{Index: page, Data: img})
		if err == nil {
			uc.observe("ok", started)
			return domain.GradedResult{
				Page:      page,
				Sheet:     sheet,
				ScoreInfo: domain.Score(sheet, keys),
			}
		}
	}

	if domain.IsKind(err, domain.ErrRateLimited) {
		uc.observe("rate_limited", started)
		slog.Warn("page_rate_limited", "batch_id", batchID, "page", page, "error", err)
		return domain.FailedResult(page, domain.NoteQueuedRetry)
	}

	uc.observe("failed", started)
	slog.Error("page_failed", "batch_id", batchID, "page", page, "error", err)
	return domain.FailedResult(page, domain.NoteProcessingFailed)
}

func (uc *GradeBatchUseCase) loadPage(ctx context.Context, batchID string, page int) ([]byte, error) {
	rc, err := uc.storage.Open(ctx, PageKey(batchID, page))
	if err != nil {
		return nil, fmt.Errorf("open page image: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read page image: %w", err)
	}
	return data, nil
}

func (uc *GradeBatchUseCase) observe(status string, started time.Time) {
	if uc.monitor != nil {
		uc.monitor.PageGraded(status, time.Since(started))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
