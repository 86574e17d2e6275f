package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swarmdesk/swarmdesk/internal/domain"
	"github.com/swarmdesk/swarmdesk/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "tickets.db"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New("", zap.NewNop())
	require.Error(t, err)

	var unavailable *storage.UnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestInitIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Init(context.Background()))
}

func TestTicketRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	critical := domain.TicketPriorityCritical
	result := "restarted pod"
	created, err := s.CreateTicket(ctx, storage.TicketSeed{
		Route:          "/api/orders",
		F12Errors:      "500 from /api/orders",
		ServerErrors:   "pq: connection refused",
		Description:    "orders page failing",
		Priority:       &critical,
		RelatedTickets: []string{"TKT-1", "TKT-2"},
		SwarmActions:   []domain.SwarmAction{{Action: "restart", Result: &result}},
		Comments:       []domain.Comment{{Content: "seen in staging too"}},
	})
	require.NoError(t, err)
	require.NotNil(t, created)

	got, err := s.GetTicket(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "/api/orders", got.Route)
	assert.Equal(t, domain.TicketStatusOpen, got.Status)
	require.NotNil(t, got.Priority)
	assert.Equal(t, domain.TicketPriorityCritical, *got.Priority)
	assert.Equal(t, []string{"TKT-1", "TKT-2"}, got.RelatedTickets)
	require.Len(t, got.SwarmActions, 1)
	assert.Equal(t, "restart", got.SwarmActions[0].Action)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "seen in staging too", got.Comments[0].Content)
	assert.Equal(t, domain.DefaultCommentAuthor, got.Comments[0].Author)

	missing, err := s.GetTicket(ctx, "TKT-0")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTimestampsSurviveStorageFormat(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2026, 3, 14, 15, 9, 26, 535000000, time.UTC)
	s.now = func() time.Time { return at }

	created, err := s.CreateTicket(ctx, storage.TicketSeed{Route: "/a"})
	require.NoError(t, err)

	got, err := s.GetTicket(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	// Stored with millisecond precision; sub-millisecond detail is dropped.
	assert.Equal(t, at.Truncate(time.Millisecond), got.CreatedAt)
}

func TestListTicketsFiltersAndOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	clock := base
	s.now = func() time.Time { return clock }

	first, err := s.CreateTicket(ctx, storage.TicketSeed{Route: "/checkout"})
	require.NoError(t, err)

	clock = base.Add(time.Minute)
	high := domain.TicketPriorityHigh
	second, err := s.CreateTicket(ctx, storage.TicketSeed{
		Route:    "/admin/users",
		Status:   domain.TicketStatusInProgress,
		Priority: &high,
	})
	require.NoError(t, err)

	all, err := s.ListTickets(ctx, storage.TicketFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest should come first")
	assert.Equal(t, first.ID, all[1].ID)

	inProgress := domain.TicketStatusInProgress
	byStatus, err := s.ListTickets(ctx, storage.TicketFilter{Status: &inProgress})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, second.ID, byStatus[0].ID)

	excluded, err := s.ListTickets(ctx, storage.TicketFilter{ExcludeStatus: &inProgress})
	require.NoError(t, err)
	require.Len(t, excluded, 1)
	assert.Equal(t, first.ID, excluded[0].ID)

	route := "admin"
	byRoute, err := s.ListTickets(ctx, storage.TicketFilter{Priority: &high, Route: &route})
	require.NoError(t, err)
	require.Len(t, byRoute, 1)
	assert.Equal(t, second.ID, byRoute[0].ID)
}

func TestUpdateTicketReplacesRelations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateTicket(ctx, storage.TicketSeed{
		Route:          "/checkout",
		RelatedTickets: []string{"TKT-1"},
	})
	require.NoError(t, err)

	replacement := []string{"TKT-2", "TKT-3"}
	fixed := domain.TicketStatusFixed
	updated, err := s.UpdateTicket(ctx, created.ID, storage.TicketPatch{
		Status:         &fixed,
		Namespace:      storage.Assign("payments"),
		RelatedTickets: &replacement,
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, domain.TicketStatusFixed, updated.Status)
	assert.Equal(t, []string{"TKT-2", "TKT-3"}, updated.RelatedTickets)
	require.NotNil(t, updated.Namespace)
	assert.Equal(t, "payments", *updated.Namespace)

	cleared, err := s.UpdateTicket(ctx, created.ID, storage.TicketPatch{
		Namespace: storage.Clear[string](),
	})
	require.NoError(t, err)
	require.NotNil(t, cleared)
	assert.Nil(t, cleared.Namespace)

	missing, err := s.UpdateTicket(ctx, "TKT-0", storage.TicketPatch{Status: &fixed})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDeleteTicketCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateTicket(ctx, storage.TicketSeed{Route: "/checkout"})
	require.NoError(t, err)
	comment, err := s.AddComment(ctx, created.ID, storage.CommentSeed{Content: "first look"})
	require.NoError(t, err)
	require.NotNil(t, comment)
	_, err = s.AddSwarmAction(ctx, created.ID, "triage", nil)
	require.NoError(t, err)

	deleted, err := s.DeleteTicket(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err := s.GetTicket(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	var count int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments`).Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count, "comments should be removed with their ticket")

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM swarm_actions`).Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count, "swarm actions should be removed with their ticket")

	again, err := s.DeleteTicket(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, again)
}

func TestCommentLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateTicket(ctx, storage.TicketSeed{Route: "/checkout"})
	require.NoError(t, err)

	comment, err := s.AddComment(ctx, created.ID, storage.CommentSeed{
		Type:     domain.CommentTypeAI,
		Author:   "triage-bot",
		Content:  "likely a serializer regression",
		Metadata: map[string]any{"model": "triage-v2"},
	})
	require.NoError(t, err)
	require.NotNil(t, comment)
	assert.Nil(t, comment.EditedAt)

	content := "confirmed serializer regression"
	edited, err := s.UpdateComment(ctx, created.ID, comment.ID, storage.CommentPatch{
		Content:  &content,
		Metadata: map[string]any{"confidence": 0.9},
	})
	require.NoError(t, err)
	require.NotNil(t, edited)
	assert.Equal(t, content, edited.Content)
	assert.Equal(t, "triage-v2", edited.Metadata["model"], "existing metadata keys survive the merge")
	assert.NotNil(t, edited.EditedAt)

	comments, err := s.ListComments(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)

	deleted, err := s.DeleteComment(ctx, created.ID, comment.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	comments, err = s.ListComments(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)

	missing, err := s.ListComments(ctx, "TKT-0")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	high := domain.TicketPriorityHigh
	_, err := s.CreateTicket(ctx, storage.TicketSeed{Route: "/a", Priority: &high})
	require.NoError(t, err)
	_, err = s.CreateTicket(ctx, storage.TicketSeed{Route: "/b", Status: domain.TicketStatusClosed})
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[domain.TicketStatusOpen])
	assert.Equal(t, 1, stats.ByStatus[domain.TicketStatusClosed])
	assert.Equal(t, 1, stats.ByPriority[domain.TicketPriorityHigh])
}

func TestAPIKeyLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateAPIKey(ctx, "ci-reporter")
	require.NoError(t, err)
	assert.True(t, created.Enabled)
	assert.Contains(t, created.Key, "stk_")

	keys, err := s.ListAPIKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "ci-reporter", keys[0].Name)

	revoked, err := s.RevokeAPIKey(ctx, created.Key)
	require.NoError(t, err)
	assert.True(t, revoked)

	// Revocation disables the key but keeps the row for auditing.
	keys, err = s.ListAPIKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.False(t, keys[0].Enabled)

	revoked, err = s.RevokeAPIKey(ctx, "stk_unknown")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestBugReportRequiresValidKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bogus := "stk_bogus"
	_, err := s.CreateBugReport(ctx, storage.BugReport{Route: "/a", APIKey: &bogus, NetworkID: "10.0.0.1"})
	assert.ErrorIs(t, err, storage.ErrInvalidAPIKey)

	created, err := s.CreateAPIKey(ctx, "ci-reporter")
	require.NoError(t, err)

	ack, err := s.CreateBugReport(ctx, storage.BugReport{Route: "/a", APIKey: &created.Key, NetworkID: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "submitted", ack.Status)

	keys, err := s.ListAPIKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotNil(t, keys[0].LastUsed, "authenticated use should stamp last_used")

	revoked, err := s.RevokeAPIKey(ctx, created.Key)
	require.NoError(t, err)
	require.True(t, revoked)

	_, err = s.CreateBugReport(ctx, storage.BugReport{Route: "/a", APIKey: &created.Key, NetworkID: "10.0.0.1"})
	assert.ErrorIs(t, err, storage.ErrInvalidAPIKey)
}

func TestBugReportAnonymousRateLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	clock := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	limit := storage.RateLimitFor(false)
	for i := 0; i < limit; i++ {
		_, err := s.CreateBugReport(ctx, storage.BugReport{Route: "/a", NetworkID: "10.0.0.1"})
		require.NoError(t, err)
	}

	_, err := s.CreateBugReport(ctx, storage.BugReport{Route: "/a", NetworkID: "10.0.0.1"})
	require.Error(t, err)
	assert.True(t, storage.IsRateLimited(err))

	var limited *storage.RateLimitError
	require.ErrorAs(t, err, &limited)
	assert.Equal(t, "10.0.0.1", limited.Identifier)
	assert.Equal(t, limit, limited.Limit)
	assert.Equal(t, storage.WindowStart(clock), limited.WindowStart)

	// A fresh hour opens a fresh window.
	clock = clock.Add(time.Hour)
	_, err = s.CreateBugReport(ctx, storage.BugReport{Route: "/a", NetworkID: "10.0.0.1"})
	require.NoError(t, err)
}

func TestBugReportMissingNetworkIDFallsBackToAnonymous(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ack, err := s.CreateBugReport(ctx, storage.BugReport{Route: "/a"})
	require.NoError(t, err)
	require.NotNil(t, ack)

	var count int
	err = s.db.QueryRowContext(ctx,
		`SELECT request_count FROM rate_limits WHERE identifier = ?`, storage.AnonymousIdentifier).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
