// Package storage defines the contract every persistence backend satisfies.
// Exactly one concrete adapter (file, sqlite, postgres) is constructed per
// process via Open; everything above this package holds only the Store
// interface and stays backend-agnostic.
package storage

import (
	"context"
	"strings"
	"time"

	"github.com/swarmdesk/swarmdesk/internal/domain"
)

// TicketFilter narrows ListTickets results. Nil fields are ignored; a zero
// filter returns every ticket.
type TicketFilter struct {
	Status        *domain.TicketStatus
	ExcludeStatus *domain.TicketStatus
	Priority      *domain.TicketPriority
	Route         *string // case-insensitive substring match
}

// Nullable wraps a patch field that distinguishes "leave alone" (Set false)
// from "assign" and from "clear" (Set true, Value nil).
type Nullable[T any] struct {
	Set   bool
	Value *T
}

// Assign returns a Nullable carrying a new value.
func Assign[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: &v}
}

// Clear returns a Nullable that nulls the field out.
func Clear[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

// TicketSeed is the CreateTicket input. ID, CreatedAt and UpdatedAt are
// normally left zero and assigned by the adapter; the migration tool sets
// them explicitly to preserve identity across backends.
type TicketSeed struct {
	ID             string
	Route          string
	F12Errors      string
	ServerErrors   string
	Description    string
	Status         domain.TicketStatus
	Priority       *domain.TicketPriority
	Namespace      *string
	RelatedTickets []string
	SwarmActions   []domain.SwarmAction
	Comments       []domain.Comment
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TicketPatch is a partial update. Nil pointer fields are untouched.
// RelatedTickets, when present, replaces the prior relation set outright.
type TicketPatch struct {
	Status         *domain.TicketStatus
	Priority       Nullable[domain.TicketPriority]
	Namespace      Nullable[string]
	RelatedTickets *[]string
	Description    *string
	F12Errors      *string
	ServerErrors   *string
	Route          *string
}

// CommentSeed is the AddComment input.
type CommentSeed struct {
	Type     domain.CommentType
	Author   string
	Content  string
	Metadata map[string]any
}

// CommentPatch is a partial comment update. Metadata merges into the
// existing map rather than replacing it.
type CommentPatch struct {
	Author   *string
	Content  *string
	Metadata map[string]any
}

// BugReport is the restricted ticket-creation request accepted from
// untrusted end users. APIKey nil means unauthenticated; NetworkID is the
// caller's network address used as the fallback rate-limit identifier.
type BugReport struct {
	Route        string
	F12Errors    string
	ServerErrors string
	Description  string
	Priority     *domain.TicketPriority
	APIKey       *string
	NetworkID    string
}

// BugReportAck is the reduced acknowledgment returned for bug reports.
// Deliberately not the full ticket shape: internal fields never leak to
// untrusted submitters.
type BugReportAck struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Store is the capability every storage backend implements. Read and
// mutate operations signal a missing ticket or comment with a nil result
// and a nil error; only genuine backend failures return errors.
type Store interface {
	// Init performs idempotent setup of the underlying medium: create the
	// file and directory, or the schema with tables and indexes. Safe to
	// call against a store that already has the target shape.
	Init(ctx context.Context) error
	// Close releases any held handle. Safe to call more than once.
	Close() error

	ListTickets(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	GetTicket(ctx context.Context, id string) (*domain.Ticket, error)
	CreateTicket(ctx context.Context, seed TicketSeed) (*domain.Ticket, error)
	UpdateTicket(ctx context.Context, id string, patch TicketPatch) (*domain.Ticket, error)
	// DeleteTicket cascades to the ticket's comments, swarm actions and
	// relation rows. Reports whether anything was actually removed.
	DeleteTicket(ctx context.Context, id string) (bool, error)

	// AddSwarmAction appends one log entry with a fresh timestamp and
	// returns the full updated ticket.
	AddSwarmAction(ctx context.Context, ticketID, action string, result *string) (*domain.Ticket, error)

	AddComment(ctx context.Context, ticketID string, seed CommentSeed) (*domain.Comment, error)
	ListComments(ctx context.Context, ticketID string) ([]domain.Comment, error)
	UpdateComment(ctx context.Context, ticketID, commentID string, patch CommentPatch) (*domain.Comment, error)
	DeleteComment(ctx context.Context, ticketID, commentID string) (bool, error)

	Stats(ctx context.Context) (*domain.Stats, error)

	// CreateBugReport runs the public ingestion path: API-key check, fixed
	// window rate limit, then a minimal ticket.
	CreateBugReport(ctx context.Context, report BugReport) (*BugReportAck, error)

	// API-key management. The file backend cannot persist keys across
	// restarts and returns ErrAPIKeysUnsupported instead of emulating it.
	CreateAPIKey(ctx context.Context, name string) (*domain.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]domain.APIKey, error)
	RevokeAPIKey(ctx context.Context, key string) (bool, error)
}

// ApplyPatch applies recognized patch fields to a ticket in place and
// reports whether anything changed. Shared by all three adapters so patch
// semantics stay bit-for-bit identical.
func ApplyPatch(t *domain.Ticket, patch TicketPatch) bool {
	changed := false
	if patch.Status != nil {
		t.Status = *patch.Status
		changed = true
	}
	if patch.Priority.Set {
		t.Priority = patch.Priority.Value
		changed = true
	}
	if patch.Namespace.Set {
		t.Namespace = patch.Namespace.Value
		changed = true
	}
	if patch.RelatedTickets != nil {
		t.RelatedTickets = append([]string(nil), (*patch.RelatedTickets)...)
		changed = true
	}
	if patch.Description != nil {
		t.Description = *patch.Description
		changed = true
	}
	if patch.F12Errors != nil {
		t.F12Errors = *patch.F12Errors
		changed = true
	}
	if patch.ServerErrors != nil {
		t.ServerErrors = *patch.ServerErrors
		changed = true
	}
	if patch.Route != nil {
		t.Route = *patch.Route
		changed = true
	}
	return changed
}

// MatchesFilter reports whether a ticket passes every present filter field.
func MatchesFilter(t *domain.Ticket, filter TicketFilter) bool {
	if filter.Status != nil && t.Status != *filter.Status {
		return false
	}
	if filter.ExcludeStatus != nil && t.Status == *filter.ExcludeStatus {
		return false
	}
	if filter.Priority != nil {
		if t.Priority == nil || *t.Priority != *filter.Priority {
			return false
		}
	}
	if filter.Route != nil {
		if !containsFold(t.Route, *filter.Route) {
			return false
		}
	}
	return true
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// BugReportSeed builds the minimal ticket seed for an accepted bug report.
func BugReportSeed(report BugReport) TicketSeed {
	return TicketSeed{
		Route:        report.Route,
		F12Errors:    report.F12Errors,
		ServerErrors: report.ServerErrors,
		Description:  report.Description,
		Status:       domain.TicketStatusOpen,
		Priority:     report.Priority,
	}
}

// SubmittedAck is the acknowledgment for an accepted bug report.
func SubmittedAck(ticketID string) *BugReportAck {
	return &BugReportAck{
		ID:      ticketID,
		Status:  "submitted",
		Message: "bug report received",
	}
}
