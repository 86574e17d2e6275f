package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmdesk/swarmdesk/internal/domain"
)

func TestNewTicketID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewTicketID()
		assert.True(t, strings.HasPrefix(id, "TKT-"), "id %q should carry the TKT prefix", id)
		require.False(t, seen[id], "duplicate id %q", id)
		seen[id] = true
	}
}

func TestNewCommentID(t *testing.T) {
	a := NewCommentID()
	b := NewCommentID()
	assert.True(t, strings.HasPrefix(a, "CMT-"))
	assert.NotEqual(t, a, b)
}

func TestNewAPIKeySecret(t *testing.T) {
	key := NewAPIKeySecret()
	assert.True(t, strings.HasPrefix(key, "stk_"))
	assert.GreaterOrEqual(t, len(key), len("stk_")+32)
	assert.NotEqual(t, key, NewAPIKeySecret())
}

func TestWindowStart(t *testing.T) {
	at := time.Date(2026, 3, 14, 15, 9, 26, 535000000, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC), WindowStart(at))
}

func TestRateIdentifier(t *testing.T) {
	key := "stk_abc"
	assert.Equal(t, "stk_abc", RateIdentifier(&key, "10.0.0.1"))
	assert.Equal(t, "10.0.0.1", RateIdentifier(nil, "10.0.0.1"))
	assert.Equal(t, AnonymousIdentifier, RateIdentifier(nil, ""))
}

func TestSeedTicketDefaults(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	ticket, err := SeedTicket(TicketSeed{Route: "/checkout"}, now)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ticket.ID, "TKT-"))
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Nil(t, ticket.Priority)
	assert.Equal(t, now, ticket.CreatedAt)
	assert.Equal(t, now, ticket.UpdatedAt)
	assert.Empty(t, ticket.Comments)
}

func TestSeedTicketPreservesIdentity(t *testing.T) {
	createdAt := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	updatedAt := createdAt.Add(time.Hour)

	ticket, err := SeedTicket(TicketSeed{
		ID:        "TKT-1748736000000",
		Status:    domain.TicketStatusFixed,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "TKT-1748736000000", ticket.ID)
	assert.Equal(t, createdAt, ticket.CreatedAt)
	assert.Equal(t, updatedAt, ticket.UpdatedAt)
}

func TestSeedTicketRejectsBadEnums(t *testing.T) {
	_, err := SeedTicket(TicketSeed{Status: "resolved"}, time.Now())
	assert.Error(t, err)

	bad := domain.TicketPriority("urgent")
	_, err = SeedTicket(TicketSeed{Priority: &bad}, time.Now())
	assert.Error(t, err)
}

func TestSeedTicketKeepsUpdatedAtAfterCreatedAt(t *testing.T) {
	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ticket, err := SeedTicket(TicketSeed{
		CreatedAt: createdAt,
		UpdatedAt: createdAt.Add(-time.Hour),
	}, time.Now())
	require.NoError(t, err)
	assert.False(t, ticket.UpdatedAt.Before(ticket.CreatedAt))
}

func TestApplyPatch(t *testing.T) {
	high := domain.TicketPriorityHigh
	ticket := &domain.Ticket{
		Status:         domain.TicketStatusOpen,
		Priority:       &high,
		RelatedTickets: []string{"TKT-1"},
	}

	fixed := domain.TicketStatusFixed
	replacement := []string{"TKT-2", "TKT-3"}
	changed := ApplyPatch(ticket, TicketPatch{
		Status:         &fixed,
		Priority:       Clear[domain.TicketPriority](),
		Namespace:      Assign("payments"),
		RelatedTickets: &replacement,
	})

	assert.True(t, changed)
	assert.Equal(t, domain.TicketStatusFixed, ticket.Status)
	assert.Nil(t, ticket.Priority)
	require.NotNil(t, ticket.Namespace)
	assert.Equal(t, "payments", *ticket.Namespace)
	assert.Equal(t, []string{"TKT-2", "TKT-3"}, ticket.RelatedTickets)
}

func TestApplyPatchIgnoresAbsentFields(t *testing.T) {
	high := domain.TicketPriorityHigh
	ticket := &domain.Ticket{Status: domain.TicketStatusOpen, Priority: &high}

	changed := ApplyPatch(ticket, TicketPatch{})
	assert.False(t, changed)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	require.NotNil(t, ticket.Priority)
	assert.Equal(t, domain.TicketPriorityHigh, *ticket.Priority)
}

func TestApplyCommentPatchMergesMetadata(t *testing.T) {
	comment := &domain.Comment{Metadata: map[string]any{"b": 2}}
	now := time.Now()

	ApplyCommentPatch(comment, CommentPatch{Metadata: map[string]any{"a": 1}}, now)

	assert.Equal(t, map[string]any{"a": 1, "b": 2}, comment.Metadata)
	require.NotNil(t, comment.EditedAt)
	assert.Equal(t, now, *comment.EditedAt)
}

func TestMatchesFilter(t *testing.T) {
	high := domain.TicketPriorityHigh
	ticket := &domain.Ticket{
		Status:   domain.TicketStatusOpen,
		Priority: &high,
		Route:    "/Checkout/Cart",
	}

	open := domain.TicketStatusOpen
	closed := domain.TicketStatusClosed
	route := "checkout"

	assert.True(t, MatchesFilter(ticket, TicketFilter{}))
	assert.True(t, MatchesFilter(ticket, TicketFilter{Status: &open}))
	assert.False(t, MatchesFilter(ticket, TicketFilter{Status: &closed}))
	assert.False(t, MatchesFilter(ticket, TicketFilter{ExcludeStatus: &open}))
	assert.True(t, MatchesFilter(ticket, TicketFilter{Priority: &high, Route: &route}))

	noPriority := &domain.Ticket{Status: domain.TicketStatusOpen}
	assert.False(t, MatchesFilter(noPriority, TicketFilter{Priority: &high}))
}
