package ports

import (
	"context"
	"io"

	"github.com/quizpix/quizpix/internal/core/domain"
)

// BatchRepository persists batch lifecycle state.
type BatchRepository interface {
	Create(ctx context.Context, batch *domain.Batch) error
	GetByID(ctx context.Context, id string) (*domain.Batch, error)
	List(ctx context.Context) ([]domain.Batch, error)
	UpdateStatus(ctx context.Context, id string, status domain.BatchStatus, errMessage string) error
	UpdateProgress(ctx context.Context, id string, completed int, throttled bool) error
}

// ResultStore owns the ordered per-page result collection of a batch. The
// scheduler appends whole chunks during a run; after completion the
// correction usecase is the only writer.
type ResultStore interface {
	Append(ctx context.Context, batchID string, results []domain.GradedResult) error
	ListByBatch(ctx context.Context, batchID string) ([]domain.GradedResult, error)
	Get(ctx context.Context, batchID string, page int) (*domain.GradedResult, error)
	Update(ctx context.Context, batchID string, result *domain.GradedResult) error
}

// ObjectStorage stores normalized page images.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue hands ingested batches to the grading worker.
type MessageQueue interface {
	PublishBatchIngested(ctx context.Context, batchID string) error
	SubscribeBatchIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// PagePreprocessor normalizes uploaded files into ordered page images.
// The returned slice is all-or-nothing: any undecodable file fails the
// whole upload.
type PagePreprocessor interface {
	Normalize(ctx context.Context, uploads []domain.Upload) ([]domain.PageImage, error)
}

// SheetRecognizer is the narrow interface to the external recognition
// capability. One unit of work in, one structured result or one typed
// error out; retry and throttling live with the callers.
type SheetRecognizer interface {
	AnalyzeSheet(ctx context.Context, page domain.PageImage) (domain.RecognizedSheet, error)
	ExtractAnswerKey(ctx context.Context, page domain.PageImage) (domain.AnswerKeySet, error)
}

// KeyTextExtractor pulls the text layer out of an uploaded answer-key
// document, short-circuiting recognition for machine-produced PDFs.
type KeyTextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// GradeTableRenderer turns graded results into a downloadable grade table.
// Row order follows the input slice.
type GradeTableRenderer interface {
	RenderCSV(results []domain.GradedResult) ([]byte, error)
	RenderXLSX(results []domain.GradedResult) ([]byte, error)
}
