// Package migrate copies tickets from a JSON snapshot into a freshly
// constructed target adapter. The copy is best-effort and one-directional:
// IDs already present at the destination are skipped, per-ticket failures
// are logged and counted, and the source is never modified. Running it
// twice is therefore safe and converges on the same final state.
package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/swarmdesk/swarmdesk/internal/domain"
	"github.com/swarmdesk/swarmdesk/internal/storage"
)

// Snapshot mirrors the file backend's persisted document.
type Snapshot struct {
	Tickets []domain.Ticket `json:"tickets"`
}

// Result summarizes one migration run.
type Result struct {
	Migrated int
	Skipped  int
	Failed   int
}

// LoadSnapshot reads a complete JSON snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snapshot, nil
}

// Run replays every snapshot ticket through CreateTicket on the target,
// preserving IDs and timestamps. Tickets whose ID already exists at the
// destination are skipped, which makes a rerun idempotent.
func Run(ctx context.Context, snapshot *Snapshot, target storage.Store, logger *zap.Logger) (*Result, error) {
	result := &Result{}

	for i := range snapshot.Tickets {
		ticket := &snapshot.Tickets[i]
		if ticket.ID == "" {
			logger.Warn("skipping ticket without id", zap.Int("index", i))
			result.Failed++
			continue
		}

		existing, err := target.GetTicket(ctx, ticket.ID)
		if err != nil {
			logger.Warn("lookup failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
			result.Failed++
			continue
		}
		if existing != nil {
			result.Skipped++
			continue
		}

		if _, err := target.CreateTicket(ctx, seedFromTicket(ticket)); err != nil {
			logger.Warn("migration failed for ticket", zap.String("ticket_id", ticket.ID), zap.Error(err))
			result.Failed++
			continue
		}
		result.Migrated++
	}

	logger.Info("migration complete",
		zap.Int("migrated", result.Migrated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// seedFromTicket carries the full ticket, identity included, through the
// creation escape hatch.
func seedFromTicket(t *domain.Ticket) storage.TicketSeed {
	return storage.TicketSeed{
		ID:             t.ID,
		Route:          t.Route,
		F12Errors:      t.F12Errors,
		ServerErrors:   t.ServerErrors,
		Description:    t.Description,
		Status:         t.Status,
		Priority:       t.Priority,
		Namespace:      t.Namespace,
		RelatedTickets: t.RelatedTickets,
		SwarmActions:   t.SwarmActions,
		Comments:       t.Comments,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}
