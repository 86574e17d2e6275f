package domain

import "time"

// APIKey authenticates the public bug-report ingestion path. Revocation
// flips Enabled to false; rows are never deleted so a revoked key can be
// audited later.
type APIKey struct {
	Key       string     `json:"key"`
	Name      string     `json:"name,omitempty"`
	Enabled   bool       `json:"enabled"`
	CreatedAt time.Time  `json:"createdAt"`
	LastUsed  *time.Time `json:"lastUsed,omitempty"`
}

// RateLimitWindow is one fixed-window submission counter: one row per
// (identifier, hour-aligned window start) pair. Counts only grow within a
// window; rollover starts a fresh row and stale rows get pruned.
type RateLimitWindow struct {
	Identifier   string    `json:"identifier"`
	WindowStart  time.Time `json:"windowStart"`
	RequestCount int       `json:"requestCount"`
}
