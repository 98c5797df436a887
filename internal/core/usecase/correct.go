package usecase

import (
	"context"
	"fmt"

	"github.com/quizpix/quizpix/internal/core/domain"
	"github.com/quizpix/quizpix/internal/core/ports"
)

type CorrectResultUseCase struct {
	batches ports.BatchRepository
	results ports.ResultStore
}

func NewCorrectResultUseCase(batches ports.BatchRepository, results ports.ResultStore) *CorrectResultUseCase {
	return &CorrectResultUseCase{batches: batches, results: results}
}

// UpdateField applies an operator correction to one result row.
//
// Editing the student identifier only replaces the field. Editing the quiz
// code additionally rescores the sheet against the batch's key text, which
// is reparsed on the spot; it is the only field whose edit can
// change the score. Either edit marks the row as manually overridden and
// clears its error note.
func (uc *CorrectResultUseCase) UpdateField(
	ctx context.Context,
	batchID string,
	page int,
	field domain.CorrectionField,
	value string,
) (*domain.GradedResult, error) {
	result, err := uc.results.Get(ctx, batchID, page)
	if err != nil {
		return nil, fmt.Errorf("load result: %w", err)
	}

	switch field {
	case domain.FieldStudentID:
		result.Sheet.Student.StudentID = value
	case domain.FieldQuizCode:
		batch, err := uc.batches.GetByID(ctx, batchID)
		if err != nil {
			return nil, fmt.Errorf("load batch: %w", err)
		}
		keys := domain.ParseAllAnswerKeys(batch.AnswerKeyText)
		result.Sheet.QuizCode = value
		result.ScoreInfo = domain.Score(result.Sheet, keys)
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "update field", fmt.Errorf("unknown field %q", field))
	}

	result.ManualOverride = true
	result.Note = ""

	if err := uc.results.Update(ctx, batchID, result); err != nil {
		return nil, fmt.Errorf("store corrected result: %w", err)
	}
	return result, nil
}
