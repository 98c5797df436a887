package recognition

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/quizpix/quizpix/internal/core/domain"
)

// quotaWords are the substrings upstream providers put in quota-exhaustion
// messages that arrive without a usable status code. Matching on message text
// is confined to this file; everything past the adapter sees typed errors.
var quotaWords = []string{"429", "rate limit", "quota", "exhausted"}

func translateUpstreamError(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || hasQuotaWording(apiErr.Message) {
			return domain.WrapError(domain.ErrRateLimited, operation, err)
		}
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}

	if hasQuotaWording(err.Error()) {
		return domain.WrapError(domain.ErrRateLimited, operation, err)
	}
	return domain.WrapError(domain.ErrTemporary, operation, err)
}

func hasQuotaWording(message string) bool {
	message = strings.ToLower(message)
	for _, word := range quotaWords {
		if strings.Contains(message, word) {
			return true
		}
	}
	return false
}
