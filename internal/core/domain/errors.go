package domain

import (
	"errors"
	"fmt"
)

var (
	ErrBatchNotFound  = errors.New("batch not found")
	ErrResultNotFound = errors.New("result not found")
	ErrInvalidInput   = errors.New("invalid input")

	// ErrDecode marks an unreadable upload; the whole upload action fails.
	ErrDecode = errors.New("undecodable file")

	// ErrRateLimited marks upstream throttling. The scheduler recovers from
	// it with chunk-level backoff; it is never surfaced as a hard failure.
	ErrRateLimited = errors.New("recognition rate limited")

	// ErrRecognition marks a malformed or unusable recognition response.
	ErrRecognition = errors.New("recognition failed")

	ErrTemporary = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
