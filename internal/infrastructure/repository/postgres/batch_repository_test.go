package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/quizpix/quizpix/internal/core/domain"
)

func testTime(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
}

func newBatchRepoWithMock(t *testing.T) (*BatchRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &BatchRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newBatchRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, answer_key_text, page_count").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrBatchNotFound) {
		t.Fatalf("expected ErrBatchNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDDerivesProgressTotalFromPageCount(t *testing.T) {
	repo, mock, done := newBatchRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{
		"id", "answer_key_text", "page_count", "completed_pages", "throttled",
		"status", "error_message", "created_at", "updated_at",
	}).AddRow("b1", "MÃ 326: 1:A", 12, 8, true, "processing", "", testTime(t), testTime(t))

	mock.ExpectQuery("SELECT id, answer_key_text, page_count").
		WithArgs("b1").
		WillReturnRows(rows)

	batch, err := repo.GetByID(context.Background(), "b1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if batch.Progress.Total != 12 || batch.Progress.Completed != 8 || !batch.Progress.Throttled {
		t.Fatalf("unexpected progress: %+v", batch.Progress)
	}
	if batch.Status != domain.BatchProcessing {
		t.Fatalf("unexpected status: %q", batch.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newBatchRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE batches").
		WithArgs("missing", string(domain.BatchCompleted), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.BatchCompleted, "")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrBatchNotFound) {
		t.Fatalf("expected ErrBatchNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateProgressWritesCompletedAndThrottled(t *testing.T) {
	repo, mock, done := newBatchRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE batches").
		WithArgs("b1", 4, true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateProgress(context.Background(), "b1", 4, true); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
