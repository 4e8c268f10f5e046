package content

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers unknown, expired and malformed identifiers.
	ErrNotFound = errors.New("content not found")
	// ErrDuplicateKey is returned by Repository.Insert when the short id is taken.
	ErrDuplicateKey = errors.New("short id already exists")
	// ErrAllocationExhausted means no free short id was found within the retry budget.
	ErrAllocationExhausted = errors.New("short id allocation exhausted")
	// ErrRateLimited means the client exceeded its admission budget.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrUpstream wraps failures of the content store or object store.
	ErrUpstream = errors.New("upstream store failure")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
)

// ValidationError describes a rejected submission.
type ValidationError struct {
	Field    string
	Reason   string
	TooLarge bool
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid returns a ValidationError for field.
func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// TooLarge returns a ValidationError flagged as an oversize payload.
func TooLarge(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, TooLarge: true}
}
