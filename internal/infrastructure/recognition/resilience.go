package recognition

import (
	"context"

	"github.com/quizpix/quizpix/internal/core/domain"
	"github.com/quizpix/quizpix/internal/core/ports"
	"github.com/quizpix/quizpix/internal/infrastructure/resilience"
)

// WithResilience routes answer-key extraction through exec: a key upload is
// a handful of calls and an interactive operation, so transparent retry is
// worth it there. Per-sheet analysis passes through untouched; the batch
// scheduler reacts to those errors itself.
func WithResilience(inner ports.SheetRecognizer, exec *resilience.Executor) ports.SheetRecognizer {
	if exec == nil {
		return inner
	}
	return &resilientRecognizer{inner: inner, exec: exec}
}

type resilientRecognizer struct {
	inner ports.SheetRecognizer
	exec  *resilience.Executor
}

func (r *resilientRecognizer) AnalyzeSheet(ctx context.Context, page domain.PageImage) (domain.RecognizedSheet, error) {
	return r.inner.AnalyzeSheet(ctx, page)
}

func (r *resilientRecognizer) ExtractAnswerKey(ctx context.Context, page domain.PageImage) (domain.AnswerKeySet, error) {
	var set domain.AnswerKeySet
	err := r.exec.Execute(ctx, "recognition.extract_key", func(callCtx context.Context) error {
		var callErr error
		set, callErr = r.inner.ExtractAnswerKey(callCtx, page)
		return callErr
	}, classifyRecognitionError)
	return set, err
}

func classifyRecognitionError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if domain.IsKind(err, domain.ErrTemporary) || domain.IsKind(err, domain.ErrRateLimited) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
