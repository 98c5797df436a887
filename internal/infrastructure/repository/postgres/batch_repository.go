package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/quizpix/quizpix/internal/core/domain"
)

type BatchRepository struct {
	db *sql.DB
}

func NewBatchRepository(db *sql.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

func (r *BatchRepository) Create(ctx context.Context, batch *domain.Batch) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO batches (id, answer_key_text, page_count, completed_pages, throttled, status, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		batch.ID, batch.AnswerKeyText, batch.PageCount, batch.Progress.Completed, batch.Progress.Throttled,
		string(batch.Status), batch.Error, batch.CreatedAt, batch.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

func (r *BatchRepository) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, answer_key_text, page_count, completed_pages, throttled, status, error_message, created_at, updated_at
FROM batches
WHERE id = $1
`, id)

	batch, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrBatchNotFound, "get batch", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan batch: %w", err)
	}
	return &batch, nil
}

func (r *BatchRepository) List(ctx context.Context) ([]domain.Batch, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, answer_key_text, page_count, completed_pages, throttled, status, error_message, created_at, updated_at
FROM batches
ORDER BY created_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Batch, 0)
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		out = append(out, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return out, nil
}

func (r *BatchRepository) UpdateStatus(ctx context.Context, id string, status domain.BatchStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE batches
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update batch status: %w", err)
	}
	return requireBatchRow(result, id)
}

func (r *BatchRepository) UpdateProgress(ctx context.Context, id string, completed int, throttled bool) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE batches
SET completed_pages = $2, throttled = $3, updated_at = $4
WHERE id = $1
`, id, completed, throttled, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update batch progress: %w", err)
	}
	return requireBatchRow(result, id)
}

func requireBatchRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrBatchNotFound, "update batch", fmt.Errorf("id=%s", id))
	}
	return nil
}

type batchScanner interface {
	Scan(dest ...interface{}) error
}

func scanBatch(row batchScanner) (domain.Batch, error) {
	var batch domain.Batch
	var status string
	err := row.Scan(
		&batch.ID,
		&batch.AnswerKeyText,
		&batch.PageCount,
		&batch.Progress.Completed,
		&batch.Progress.Throttled,
		&status,
		&batch.Error,
		&batch.CreatedAt,
		&batch.UpdatedAt,
	)
	if err != nil {
		return domain.Batch{}, err
	}
	batch.Status = domain.BatchStatus(status)
	batch.Progress.Total = batch.PageCount
	return batch, nil
}
