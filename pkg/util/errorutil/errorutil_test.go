package errorutil

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmdesk/swarmdesk/internal/storage"
)

func TestToDomainErrorPassesThrough(t *testing.T) {
	original := NewDomainError("VALIDATION_FAILED", "bad input", http.StatusBadRequest, nil)
	assert.Same(t, original, ToDomainError(original))
	assert.Nil(t, ToDomainError(nil))
}

func TestToDomainErrorMapsStorageTaxonomy(t *testing.T) {
	invalid := ToDomainError(storage.ErrInvalidAPIKey)
	assert.Equal(t, http.StatusUnauthorized, invalid.HTTPStatus)
	assert.Equal(t, "INVALID_API_KEY", invalid.Code)

	unsupported := ToDomainError(storage.ErrAPIKeysUnsupported)
	assert.Equal(t, http.StatusNotImplemented, unsupported.HTTPStatus)
	assert.Equal(t, "NOT_SUPPORTED", unsupported.Code)

	windowStart := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	limited := ToDomainError(&storage.RateLimitError{Identifier: "10.0.0.1", Limit: 10, WindowStart: windowStart})
	assert.Equal(t, http.StatusTooManyRequests, limited.HTTPStatus)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", limited.Code)
	assert.Equal(t, 10, limited.Details["limit"])
	assert.Equal(t, windowStart, limited.Details["windowStart"])

	unavailable := ToDomainError(storage.Unavailable("postgres", "cannot reach database", errors.New("dial tcp: refused")))
	assert.Equal(t, http.StatusServiceUnavailable, unavailable.HTTPStatus)
	assert.Equal(t, "STORAGE_UNAVAILABLE", unavailable.Code)
}

func TestToDomainErrorDefaultsToInternal(t *testing.T) {
	mapped := ToDomainError(errors.New("disk on fire"))
	require.NotNil(t, mapped)
	assert.Equal(t, http.StatusInternalServerError, mapped.HTTPStatus)
	assert.Equal(t, "INTERNAL_ERROR", mapped.Code)
	assert.Equal(t, "internal server error", mapped.Message, "internal detail must not leak into the message")
}
