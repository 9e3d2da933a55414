package passport

import (
	"errors"
	"fmt"
)

// ErrorCategory is the normalized failure taxonomy for score lookups.
type ErrorCategory string

const (
	ErrorTimeout        ErrorCategory = "timeout"
	ErrorBadData        ErrorCategory = "bad_data"
	ErrorProviderOutage ErrorCategory = "provider_outage"
	ErrorRateLimited    ErrorCategory = "rate_limited"
	ErrorCircuitOpen    ErrorCategory = "circuit_open"
	ErrorInternal       ErrorCategory = "internal"
)

// ProviderError wraps score API failures with a category.
type ProviderError struct {
	Category   ErrorCategory
	Message    string
	Underlying error
	Retryable  bool
}

func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("score api [%s]: %s: %v", e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("score api [%s]: %s", e.Category, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

// NewProviderError builds a ProviderError; timeouts, outages and rate limits
// are retryable.
func NewProviderError(category ErrorCategory, message string, underlying error) *ProviderError {
	retryable := category == ErrorTimeout ||
		category == ErrorProviderOutage ||
		category == ErrorRateLimited ||
		category == ErrorCircuitOpen
	return &ProviderError{
		Category:   category,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// IsRetryable reports whether err carries a retryable ProviderError.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// CategoryOf returns the category of a ProviderError in err's chain, or
// ErrorInternal.
func CategoryOf(err error) ErrorCategory {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorInternal
}
