package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/swarmdesk/swarmdesk/internal/storage"
)

// DomainError standardizes application errors surfaced over HTTP.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts any error to a DomainError, translating the
// storage error taxonomy onto HTTP semantics: invalid key is an
// authorization failure, a full rate window is a throttling response, and
// an unsupported operation names the backend gap instead of pretending the
// resource is missing.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}

	if errors.Is(err, storage.ErrInvalidAPIKey) {
		return NewDomainError("INVALID_API_KEY", "invalid or disabled api key", http.StatusUnauthorized, nil)
	}
	if errors.Is(err, storage.ErrAPIKeysUnsupported) {
		return NewDomainError("NOT_SUPPORTED", err.Error(), http.StatusNotImplemented, nil)
	}

	var rateErr *storage.RateLimitError
	if errors.As(err, &rateErr) {
		return NewDomainError("RATE_LIMIT_EXCEEDED", "rate limit exceeded, try again later",
			http.StatusTooManyRequests, map[string]any{
				"limit":       rateErr.Limit,
				"windowStart": rateErr.WindowStart,
			})
	}

	var unavailable *storage.UnavailableError
	if errors.As(err, &unavailable) {
		return &DomainError{
			Code:       "STORAGE_UNAVAILABLE",
			Message:    unavailable.Error(),
			HTTPStatus: http.StatusServiceUnavailable,
			Err:        err,
		}
	}

	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError converts generic errors to DomainError.
func MapError(err error) error {
	return ToDomainError(err)
}
