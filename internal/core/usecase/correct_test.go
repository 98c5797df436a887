package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/quizpix/quizpix/internal/core/domain"
)

type rowStore struct {
	rows map[int]domain.GradedResult
}

func newRowStore(rows ...domain.GradedResult) *rowStore {
	s := &rowStore{rows: make(map[int]domain.GradedResult)}
	for _, row := range rows {
		s.rows[row.Page] = row
	}
	return s
}

func (s *rowStore) Append(_ context.Context, _ string, results []domain.GradedResult) error {
	for _, res := range results {
		s.rows[res.Page] = res
	}
	return nil
}

func (s *rowStore) ListByBatch(context.Context, string) ([]domain.GradedResult, error) {
	return nil, nil
}

func (s *rowStore) Get(_ context.Context, _ string, page int) (*domain.GradedResult, error) {
	row, ok := s.rows[page]
	if !ok {
		return nil, domain.WrapError(domain.ErrResultNotFound, "get result", fmt.Errorf("page=%d", page))
	}
	copied := row
	return &copied, nil
}

func (s *rowStore) Update(_ context.Context, _ string, result *domain.GradedResult) error {
	s.rows[result.Page] = *result
	return nil
}

func gradedRow() domain.GradedResult {
	return domain.GradedResult{
		Page: 1,
		Sheet: domain.RecognizedSheet{
			Student:  domain.StudentInfo{Name: "Nguyen Van A", StudentID: "HS001", Class: "12A1"},
			QuizCode: "999",
			Answers:  []domain.MarkedAnswer{{Q: 1, Marked: "A"}, {Q: 2, Marked: "C"}},
		},
		ScoreInfo: domain.ScoreInfo{Correct: 1, Total: 2, Score: "5.00"},
		Note:      domain.NoteProcessingFailed,
	}
}

func correctFixture(t *testing.T) (*CorrectResultUseCase, *rowStore) {
	t.Helper()
	batches := newMemBatches(&domain.Batch{ID: "b1", AnswerKeyText: "MÃ 326: 1:A 2:B\nMÃ 327: 1:D 2:C"})
	store := newRowStore(gradedRow())
	return NewCorrectResultUseCase(batches, store), store
}

func TestUpdateFieldStudentIDLeavesScoreAlone(t *testing.T) {
	uc, store := correctFixture(t)

	result, err := uc.UpdateField(context.Background(), "b1", 1, domain.FieldStudentID, "HS777")
	if err != nil {
		t.Fatalf("UpdateField: %v", err)
	}
	if result.Sheet.Student.StudentID != "HS777" {
		t.Fatalf("student id not updated: %+v", result.Sheet.Student)
	}
	if result.ScoreInfo.Score != "5.00" || result.ScoreInfo.Correct != 1 {
		t.Fatalf("score must not change on identity edit: %+v", result.ScoreInfo)
	}
	if !result.ManualOverride || result.Note != "" {
		t.Fatalf("override flag / note not applied: %+v", result)
	}
	if store.rows[1].Sheet.Student.StudentID != "HS777" {
		t.Fatal("correction not persisted")
	}
}

func TestUpdateFieldQuizCodeRescores(t *testing.T) {
	uc, _ := correctFixture(t)

	// Marks are 1:A 2:C. Key 327 expects 1:D 2:C, so the rescore flips
	// which question counts as correct.
	result, err := uc.UpdateField(context.Background(), "b1", 1, domain.FieldQuizCode, "327")
	if err != nil {
		t.Fatalf("UpdateField: %v", err)
	}
	if result.Sheet.QuizCode != "327" {
		t.Fatalf("quiz code not updated: %q", result.Sheet.QuizCode)
	}
	if result.ScoreInfo.Correct != 1 || result.ScoreInfo.Total != 2 || result.ScoreInfo.Score != "5.00" {
		t.Fatalf("unexpected rescore: %+v", result.ScoreInfo)
	}
	if !result.ManualOverride {
		t.Fatal("row should be marked manually overridden")
	}
}

func TestUpdateFieldQuizCodeFallsBackToFirstKey(t *testing.T) {
	uc, _ := correctFixture(t)

	result, err := uc.UpdateField(context.Background(), "b1", 1, domain.FieldQuizCode, "888")
	if err != nil {
		t.Fatalf("UpdateField: %v", err)
	}
	// Unknown code scores against the first key (326: 1:A 2:B), matching
	// only question 1.
	if result.ScoreInfo.Correct != 1 || result.ScoreInfo.Score != "5.00" {
		t.Fatalf("fallback rescore wrong: %+v", result.ScoreInfo)
	}
}

func TestUpdateFieldRejectsUnknownField(t *testing.T) {
	uc, _ := correctFixture(t)

	_, err := uc.UpdateField(context.Background(), "b1", 1, domain.CorrectionField("name"), "x")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

func TestUpdateFieldMissingRow(t *testing.T) {
	uc, _ := correctFixture(t)

	_, err := uc.UpdateField(context.Background(), "b1", 42, domain.FieldStudentID, "x")
	if !domain.IsKind(err, domain.ErrResultNotFound) {
		t.Fatalf("want ErrResultNotFound, got %v", err)
	}
}
