package llm

import (
	"errors"
	"fmt"

	"BlogEnricher/internal/domain"
)

// Error types for classifying provider failures.

// ErrEmptyResponse is returned when a provider answers without usable text.
var ErrEmptyResponse = errors.New("llm returned no text")

// ErrNotConfigured is returned by a provider missing its key, endpoint or model.
var ErrNotConfigured = errors.New("llm provider misconfigured")

// APIError is a non-2xx or in-body error reported by a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
	// Quota marks exhausted quota or rate limiting.
	Quota bool
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s error %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Unwrap exposes domain.ErrQuotaExceeded for quota errors.
func (e *APIError) Unwrap() error {
	if e.Quota {
		return domain.ErrQuotaExceeded
	}
	return nil
}
