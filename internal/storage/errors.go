package storage

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidAPIKey signals a bug-report submission carrying a key that does
// not exist or has been revoked. Distinct from a missing-resource result so
// the boundary layer can answer 401, not 404.
var ErrInvalidAPIKey = errors.New("invalid or disabled api key")

// ErrAPIKeysUnsupported is returned by backends that cannot persist API
// keys across restarts (the file backend).
var ErrAPIKeysUnsupported = errors.New("api keys are not supported by this storage backend")

// RateLimitError rejects a bug-report submission whose fixed window is
// already full.
type RateLimitError struct {
	Identifier  string
	Limit       int
	WindowStart time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %q: %d requests in window starting %s",
		e.Identifier, e.Limit, e.WindowStart.UTC().Format(time.RFC3339))
}

// IsRateLimited reports whether err is a RateLimitError.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// UnavailableError is raised at adapter construction or Init time when a
// backend cannot come up: missing connection configuration or an unusable
// medium. The Hint names what the operator should fix.
type UnavailableError struct {
	Backend string
	Hint    string
	Err     error
}

func (e *UnavailableError) Error() string {
	msg := fmt.Sprintf("storage backend %q unavailable: %s", e.Backend, e.Hint)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Unavailable builds an UnavailableError.
func Unavailable(backend, hint string, err error) error {
	return &UnavailableError{Backend: backend, Hint: hint, Err: err}
}
