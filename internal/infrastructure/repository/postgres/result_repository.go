package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/quizpix/quizpix/internal/core/domain"
)

type ResultRepository struct {
	db *sql.DB
}

func NewResultRepository(db *sql.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Append inserts one scheduler chunk of results. Page slots are unique per
// batch, so replaying a chunk after a partial failure is an error rather than
// a silent overwrite.
func (r *ResultRepository) Append(ctx context.Context, batchID string, results []domain.GradedResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin results tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, res := range results {
		answersJSON, err := json.Marshal(res.Sheet.Answers)
		if err != nil {
			return fmt.Errorf("marshal answers page=%d: %w", res.Page, err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO graded_results (
	batch_id, page, student_name, student_id, class, quiz_code, answers, correct, total, score, note, manual_override
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
			batchID, res.Page, res.Sheet.Student.Name, res.Sheet.Student.StudentID, res.Sheet.Student.Class,
			res.Sheet.QuizCode, answersJSON, res.ScoreInfo.Correct, res.ScoreInfo.Total, res.ScoreInfo.Score,
			res.Note, res.ManualOverride,
		)
		if err != nil {
			return fmt.Errorf("insert result page=%d: %w", res.Page, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit results tx: %w", err)
	}
	return nil
}

func (r *ResultRepository) ListByBatch(ctx context.Context, batchID string) ([]domain.GradedResult, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT page, student_name, student_id, class, quiz_code, answers, correct, total, score, note, manual_override
FROM graded_results
WHERE batch_id = $1
ORDER BY page ASC
`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	out := make([]domain.GradedResult, 0)
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return out, nil
}

func (r *ResultRepository) Get(ctx context.Context, batchID string, page int) (*domain.GradedResult, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT page, student_name, student_id, class, quiz_code, answers, correct, total, score, note, manual_override
FROM graded_results
WHERE batch_id = $1 AND page = $2
`, batchID, page)

	res, err := scanResult(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrResultNotFound, "get result", fmt.Errorf("batch=%s page=%d", batchID, page))
		}
		return nil, err
	}
	return &res, nil
}

func (r *ResultRepository) Update(ctx context.Context, batchID string, result *domain.GradedResult) error {
	answersJSON, err := json.Marshal(result.Sheet.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers page=%d: %w", result.Page, err)
	}

	execResult, err := r.db.ExecContext(ctx, `
UPDATE graded_results
SET student_name = $3, student_id = $4, class = $5, quiz_code = $6, answers = $7,
	correct = $8, total = $9, score = $10, note = $11, manual_override = $12
WHERE batch_id = $1 AND page = $2
`,
		batchID, result.Page, result.Sheet.Student.Name, result.Sheet.Student.StudentID, result.Sheet.Student.Class,
		result.Sheet.QuizCode, answersJSON, result.ScoreInfo.Correct, result.ScoreInfo.Total, result.ScoreInfo.Score,
		result.Note, result.ManualOverride,
	)
	if err != nil {
		return fmt.Errorf("update result: %w", err)
	}
	rows, err := execResult.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrResultNotFound, "update result", fmt.Errorf("batch=%s page=%d", batchID, result.Page))
	}
	return nil
}

type resultScanner interface {
	Scan(dest ...interface{}) error
}

func scanResult(row resultScanner) (domain.GradedResult, error) {
	var res domain.GradedResult
	var answersRaw []byte
	err := row.Scan(
		&res.Page,
		&res.Sheet.Student.Name,
		&res.Sheet.Student.StudentID,
		&res.Sheet.Student.Class,
		&res.Sheet.QuizCode,
		&answersRaw,
		&res.ScoreInfo.Correct,
		&res.ScoreInfo.Total,
		&res.ScoreInfo.Score,
		&res.Note,
		&res.ManualOverride,
	)
	if err != nil {
		return domain.GradedResult{}, fmt.Errorf("scan result: %w", err)
	}
	if err := json.Unmarshal(answersRaw, &res.Sheet.Answers); err != nil {
		return domain.GradedResult{}, fmt.Errorf("unmarshal answers: %w", err)
	}
	return res, nil
}
