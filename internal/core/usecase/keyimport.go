package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/quizpix/quizpix/internal/core/domain"
	"github.com/quizpix/quizpix/internal/core/ports"
)

type ImportAnswerKeysUseCase struct {
	preprocessor ports.PagePreprocessor
	recognizer   ports.SheetRecognizer
	pdfText      ports.KeyTextExtractor
}

func NewImportAnswerKeysUseCase(
	preprocessor ports.PagePreprocessor,
	recognizer ports.SheetRecognizer,
	pdfText ports.KeyTextExtractor,
) *ImportAnswerKeysUseCase {
	return &ImportAnswerKeysUseCase{
		preprocessor: preprocessor,
		recognizer:   recognizer,
		pdfText:      pdfText,
	}
}

// Import turns uploaded answer-key files into canonical key text the
// operator can merge into a batch's key field. PDFs with a usable text
// layer skip recognition entirely; everything else is normalized to page
// images and read by the recognition service. Unlike per-sheet grading this
// is an action-level call: any failure aborts the whole import.
func (uc *ImportAnswerKeysUseCase) Import(ctx context.Context, uploads []domain.Upload) (string, error) {
	if len(uploads) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "import keys", fmt.Errorf("no key files"))
	}

	var out strings.Builder
	for _, upload := range uploads {
		if upload.MimeType == "application/pdf" && uc.pdfText != nil {
			text, err := uc.pdfText.Extract(ctx, upload.Data)
			if err == nil && domain.ParseAllAnswerKeys(text).Len() > 0 {
				writeKeyText(&out, domain.ParseAllAnswerKeys(text))
				continue
			}
			// No text layer or no parseable keys: fall through to
			// image recognition of the scanned pages.
		}

		pages, err := uc.preprocessor.Normalize(ctx, []domain.Upload{upload})
		if err != nil {
			return "", fmt.Errorf("normalize key file %q: %w", upload.Filename, err)
		}
		for _, page := range pages {
			keys, err := uc.recognizer.ExtractAnswerKey(ctx, page)
			if err != nil {
				return "", fmt.Errorf("recognize keys in %q page %d: %w", upload.Filename, page.Index, err)
			}
			writeKeyText(&out, keys)
		}
	}
	return strings.TrimSpace(out.String()), nil
}

// writeKeyText renders a key set back into the textual format
// ParseAllAnswerKeys consumes, one "MÃ <code>: q:a ..." line per variant.
func writeKeyText(out *strings.Builder, keys domain.AnswerKeySet) {
	for _, code := range keys.Codes() {
		key, _ := keys.Lookup(code)

		questions := make([]int, 0, len(key))
		for q := range key {
			questions = append(questions, q)
		}
		sort.Ints(questions)

		if out.Len() > 0 {
			out.WriteString("\n")
		}
		fmt.Fprintf(out, "MÃ %s:", code)
		for _, q := range questions {
			fmt.Fprintf(out, " %d:%s", q, key[q])
		}
	}
}
