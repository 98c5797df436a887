// Package export renders graded results as operator-facing grade tables.
// Column headers stay in Vietnamese to match the printed answer sheets;
// the CSV form carries a UTF-8 BOM so spreadsheet tools decode them.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/quizpix/quizpix/internal/core/domain"
)

// pointsPerQuestion is the weighted export convention: the reported total
// score is correct-count × 0.2, distinct from the 10-point scale score.
const pointsPerQuestion = 0.2

var headers = []string{"STT", "Số phách", "Mã đề", "Số câu đúng", "Số câu sai", "Tổng điểm", "Ghi chú"}

// noteManualOverride marks rows the operator corrected by hand.
const noteManualOverride = "Đã sửa thủ công"

type Row struct {
	Seq        int
	StudentID  string
	QuizCode   string
	Correct    int
	Wrong      int
	TotalScore string
	Note       string
}

// Renderer exposes the table renderers behind the core rendering port.
type Renderer struct{}

func NewRenderer() Renderer { return Renderer{} }

func (Renderer) RenderCSV(results []domain.GradedResult) ([]byte, error) {
	return CSV(Rows(results))
}

func (Renderer) RenderXLSX(results []domain.GradedResult) ([]byte, error) {
	return XLSX(Rows(results))
}

// Rows flattens graded results into export rows, in stored (page) order.
func Rows(results []domain.GradedResult) []Row {
	rows := make([]Row, 0, len(results))
	for i, res := range results {
		rows = append(rows, Row{
			Seq:        i + 1,
			StudentID:  res.Sheet.Student.StudentID,
			QuizCode:   res.Sheet.QuizCode,
			Correct:    res.ScoreInfo.Correct,
			Wrong:      max(0, res.ScoreInfo.Total-res.ScoreInfo.Correct),
			TotalScore: fmt.Sprintf("%.1f", float64(res.ScoreInfo.Correct)*pointsPerQuestion),
			Note:       rowNote(res),
		})
	}
	return rows
}

func rowNote(res domain.GradedResult) string {
	if res.Note != "" {
		return res.Note
	}
	if res.ManualOverride {
		return noteManualOverride
	}
	return ""
}

// CSV renders rows as BOM-prefixed UTF-8 CSV.
func CSV(rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("\uFEFF")

	w := csv.NewWriter(&buf)
	if err := w.Write(headers); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			fmt.Sprintf("%d", row.Seq),
			row.StudentID,
			row.QuizCode,
			fmt.Sprintf("%d", row.Correct),
			fmt.Sprintf("%d", row.Wrong),
			row.TotalScore,
			row.Note,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", row.Seq, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// XLSX renders rows as a single-sheet workbook.
func XLSX(rows []Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("header cell name: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("write header %q: %w", header, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("style header %q: %w", header, err)
		}
	}

	for i, row := range rows {
		values := []any{row.Seq, row.StudentID, row.QuizCode, row.Correct, row.Wrong, row.TotalScore, row.Note}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row.Seq, err)
			}
		}
	}

	if err := f.SetColWidth(sheet, "B", "C", 16); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(sheet, "G", "G", 28); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
