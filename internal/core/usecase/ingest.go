package usecase

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quizpix/quizpix/internal/core/domain"
	"github.com/quizpix/quizpix/internal/core/ports"
)

type IngestBatchUseCase struct {
	batches      ports.BatchRepository
	storage      ports.ObjectStorage
	queue        ports.MessageQueue
	preprocessor ports.PagePreprocessor
}

func NewIngestBatchUseCase(
	batches ports.BatchRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	preprocessor ports.PagePreprocessor,
) *IngestBatchUseCase {
	return &IngestBatchUseCase{
		batches:      batches,
		storage:      storage,
		queue:        queue,
		preprocessor: preprocessor,
	}
}

// Upload normalizes the uploaded sheet files, stores one image per visual
// page and enqueues the batch for grading. Preprocessing is all-or-nothing:
// a single undecodable file fails the action before any batch state exists.
func (uc *IngestBatchUseCase) Upload(
	ctx context.Context,
	uploads []domain.Upload,
	answerKeyText string,
) (*domain.Batch, error) {
	if len(uploads) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload batch", fmt.Errorf("no sheet files"))
	}

	pages, err := uc.preprocessor.Normalize(ctx, uploads)
	if err != nil {
		return nil, fmt.Errorf("normalize uploads: %w", err)
	}
	if len(pages) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload batch", fmt.Errorf("no pages produced"))
	}

	id := uuid.NewString()
	for _, page := range pages {
		if err := uc.storage.Save(ctx, PageKey(id, page.Index), bytes.NewReader(page.Data)); err != nil {
			return nil, fmt.Errorf("save page %d: %w", page.Index, err)
		}
	}

	now := time.Now().UTC()
	batch := &domain.Batch{
		ID:            id,
		AnswerKeyText: strings.TrimSpace(answerKeyText),
		PageCount:     len(pages),
		Status:        domain.BatchUploaded,
		Progress:      domain.Progress{Total: len(pages)},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := uc.batches.Create(ctx, batch); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	if err := uc.queue.PublishBatchIngested(ctx, batch.ID); err != nil {
		return nil, fmt.Errorf("publish batch ingested: %w", err)
	}
	return batch, nil
}

// PageKey is the object-storage key of one normalized page image.
func PageKey(batchID string, page int) string {
	return fmt.Sprintf("%s/page-%04d.jpg", batchID, page)
}
