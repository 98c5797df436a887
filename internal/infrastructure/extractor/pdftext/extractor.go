// Package pdftext pulls the embedded text layer out of PDF answer-key
// documents. Machine-produced keys keep their text layer intact, which lets
// key import skip the recognition round-trip entirely.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/quizpix/quizpix/internal/core/domain"
)

type Extractor struct{}

func New() *Extractor { return &Extractor{} }

// Extract returns the concatenated text layer of data. Scanned PDFs without
// a text layer yield an empty string, not an error; the caller falls back to
// image recognition in that case.
func (e *Extractor) Extract(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.WrapError(domain.ErrDecode, "extract pdf text", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", domain.WrapError(domain.ErrDecode, "extract pdf text", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", domain.WrapError(domain.ErrDecode, "extract pdf text", fmt.Errorf("read text stream: %w", err))
	}
	return strings.TrimSpace(buf.String()), nil
}
