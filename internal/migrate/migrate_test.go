package migrate

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
	"github.com/swarmdesk/swarmdesk/internal/storage/file"
	"github.com/swarmdesk/swarmdesk/internal/storage/sqlite"
)

// buildSourceSnapshot writes tickets through the file adapter and returns
// the path of the resulting JSON document.
func buildSourceSnapshot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tickets.json")
	ctx := context.Background()

	src, err := file.New(path, filepath.Join(dir, "backups"), 3, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, src.Init(ctx))

	high := domain.TicketPriorityHigh
	first, err := src.CreateTicket(ctx, storage.TicketSeed{
		Route:       "/checkout",
		Description: "checkout page blank",
		Priority:    &high,
	})
	require.NoError(t, err)
	_, err = src.AddComment(ctx, first.ID, storage.CommentSeed{Content: "seen in staging too"})
	require.NoError(t, err)
	_, err = src.AddSwarmAction(ctx, first.ID, "triage", nil)
	require.NoError(t, err)

	_, err = src.CreateTicket(ctx, storage.TicketSeed{
		Route:  "/admin/users",
		Status: domain.TicketStatusClosed,
	})
	require.NoError(t, err)
	require.NoError(t, src.Close())
	return path
}

func TestLoadSnapshot(t *testing.T) {
	path := buildSourceSnapshot(t)

	snapshot, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Len(t, snapshot.Tickets, 2)

	_, err = LoadSnapshot(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestRunFileToSqlite(t *testing.T) {
	path := buildSourceSnapshot(t)
	ctx := context.Background()

	snapshot, err := LoadSnapshot(path)
	require.NoError(t, err)

	target, err := sqlite.New(filepath.Join(t.TempDir(), "tickets.db"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, target.Init(ctx))
	defer target.Close()

	result, err := Run(ctx, snapshot, target, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Migrated)
	assert.Zero(t, result.Skipped)
	assert.Zero(t, result.Failed)

	for _, src := range snapshot.Tickets {
		got, err := target.GetTicket(ctx, src.ID)
		require.NoError(t, err)
		require.NotNil(t, got, "ticket %s should exist at the destination", src.ID)
		assert.Equal(t, src.Route, got.Route)
		assert.Equal(t, src.Status, got.Status)
		assert.Equal(t, src.CreatedAt.Truncate(time.Millisecond).UTC(), got.CreatedAt.UTC(),
			"original timestamps should survive the copy")
		assert.Len(t, got.Comments, len(src.Comments))
		assert.Len(t, got.SwarmActions, len(src.SwarmActions))
	}
}

func TestRunIsIdempotent(t *testing.T) {
	path := buildSourceSnapshot(t)
	ctx := context.Background()

	snapshot, err := LoadSnapshot(path)
	require.NoError(t, err)

	target, err := sqlite.New(filepath.Join(t.TempDir(), "tickets.db"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, target.Init(ctx))
	defer target.Close()

	first, err := Run(ctx, snapshot, target, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Migrated)

	second, err := Run(ctx, snapshot, target, zap.NewNop())
	require.NoError(t, err)
	assert.Zero(t, second.Migrated)
	assert.Equal(t, 2, second.Skipped)
	assert.Zero(t, second.Failed)

	all, err := target.ListTickets(ctx, storage.TicketFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRunCountsBadTickets(t *testing.T) {
	ctx := context.Background()
	snapshot := &Snapshot{Tickets: []domain.Ticket{
		{Route: "/no-id"},
		{ID: "TKT-1", Route: "/ok", Status: domain.TicketStatusOpen,
			CreatedAt: time.Now(), UpdatedAt: time.Now()},
	}}

	target, err := sqlite.New(filepath.Join(t.TempDir(), "tickets.db"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, target.Init(ctx))
	defer target.Close()

	result, err := Run(ctx, snapshot, target, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Migrated)
	assert.Equal(t, 1, result.Failed)
}
