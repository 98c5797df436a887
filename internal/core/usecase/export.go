package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/quizpix/quizpix/internal/core/domain"
	"github.com/quizpix/quizpix/internal/core/ports"
)

type ExportBatchUseCase struct {
	results  ports.ResultStore
	renderer ports.GradeTableRenderer
}

func NewExportBatchUseCase(results ports.ResultStore, renderer ports.GradeTableRenderer) *ExportBatchUseCase {
	return &ExportBatchUseCase{results: results, renderer: renderer}
}

type ExportFile struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Export renders the batch's grade table in the requested format. Results
// come back from the store in page order, so row order always matches the
// original page order.
func (uc *ExportBatchUseCase) Export(ctx context.Context, batchID, format string) (*ExportFile, error) {
	results, err := uc.results.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}
	if len(results) == 0 {
		return nil, domain.WrapError(domain.ErrResultNotFound, "export batch", fmt.Errorf("batch %s has no results", batchID))
	}

	stamp := time.Now().UTC().Format("20060102_150405")

	switch format {
	case "", "csv":
		data, err := uc.renderer.RenderCSV(results)
		if err != nil {
			return nil, fmt.Errorf("render csv: %w", err)
		}
		return &ExportFile{
			Data:        data,
			Filename:    fmt.Sprintf("ket_qua_%s.csv", stamp),
			ContentType: "text/csv; charset=utf-8",
		}, nil
	case "xlsx":
		data, err := uc.renderer.RenderXLSX(results)
		if err != nil {
			return nil, fmt.Errorf("render xlsx: %w", err)
		}
		return &ExportFile{
			Data:        data,
			Filename:    fmt.Sprintf("ket_qua_%s.xlsx", stamp),
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		}, nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "export batch", fmt.Errorf("unsupported format %q", format))
	}
}
