package storage

import "time"

// Fixed-window rate-limit policy for bug-report ingestion. The window is
// hour-aligned, so bursts across a boundary are possible; that imprecision
// is accepted in exchange for a single counter row per identifier.
const (
	// RateLimitWindow is the width of one counting window.
	RateLimitWindow = time.Hour
	// RateLimitAuthenticated applies to submissions carrying a valid API key.
	RateLimitAuthenticated = 1000
	// RateLimitAnonymous applies to everything else.
	RateLimitAnonymous = 10
	// AnonymousIdentifier is counted against when a submission has neither
	// an API key nor a network address.
	AnonymousIdentifier = "anonymous"
)

// WindowStart truncates t to the hour-aligned window it falls in.
func WindowStart(t time.Time) time.Time {
	return t.UTC().Truncate(RateLimitWindow)
}

// RateIdentifier picks the counter identity for a submission: the API key
// if present, else the caller's network address, else the anonymous
// sentinel.
func RateIdentifier(apiKey *string, networkID string) string {
	if apiKey != nil && *apiKey != "" {
		return *apiKey
	}
	if networkID != "" {
		return networkID
	}
	return AnonymousIdentifier
}

// RateLimitFor returns the per-window cap for a submission.
func RateLimitFor(authenticated bool) int {
	if authenticated {
		return RateLimitAuthenticated
	}
	return RateLimitAnonymous
}
