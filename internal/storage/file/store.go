// Package file implements the storage contract over a single JSON
// document. The whole dataset lives in memory and every mutation rewrites
// the file, which is acceptable for the assumed single-process, low-volume
// deployment. Multi-process writers against the same file are not
// coordinated.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/swarmdesk/swarmdesk/internal/domain"
	"github.com/swarmdesk/swarmdesk/internal/storage"
)

type document struct {
	Tickets []domain.Ticket `json:"tickets"`
}

type windowKey struct {
	identifier  string
	windowStart int64
}

// Store is the file-backed adapter.
type Store struct {
	path    string
	backups *BackupManager
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	doc     document
	loaded  bool
	windows map[windowKey]int
}

// New constructs the adapter. Init must be called before use.
func New(path, backupDir string, backupKeep int, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, storage.Unavailable("file", "FILE_STORAGE_PATH is not set", nil)
	}
	return &Store{
		path:    path,
		backups: NewBackupManager(backupDir, backupKeep, logger),
		logger:  logger,
		now:     time.Now,
		windows: make(map[windowKey]int),
	}, nil
}

// Init creates the data directory and file when absent and loads the
// dataset into memory. Safe to call against an existing store.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return storage.Unavailable("file", "cannot create data directory", err)
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.doc = document{Tickets: []domain.Ticket{}}
		s.loaded = true
		return s.persistLocked()
	}
	if err != nil {
		return storage.Unavailable("file", "cannot read data file", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return storage.Unavailable("file", "data file is not valid JSON", err)
	}
	if doc.Tickets == nil {
		doc.Tickets = []domain.Ticket{}
	}
	s.doc = doc
	s.loaded = true
	return nil
}

// Close is a no-op: the adapter holds no persistent handle.
func (s *Store) Close() error {
	return nil
}

// persistLocked snapshots the previous file contents and rewrites the
// document. Callers hold s.mu.
func (s *Store) persistLocked() error {
	s.backups.Snapshot(s.path)
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	return nil
}

func (s *Store) findLocked(id string) *domain.Ticket {
	for i := range s.doc.Tickets {
		if s.doc.Tickets[i].ID == id {
			return &s.doc.Tickets[i]
		}
	}
	return nil
}

// ListTickets returns tickets matching the filter, newest first.
func (s *Store) ListTickets(ctx context.Context, filter storage.TicketFilter) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []domain.Ticket
	for i := range s.doc.Tickets {
		if storage.MatchesFilter(&s.doc.Tickets[i], filter) {
			result = append(result, cloneTicket(&s.doc.Tickets[i]))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// GetTicket returns the full ticket or nil when absent.
func (s *Store) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(id)
	if t == nil {
		return nil, nil
	}
	out := cloneTicket(t)
	return &out, nil
}

// CreateTicket persists a new ticket, assigning identity and timestamps
// unless the seed carries them already (the migration escape hatch).
func (s *Store) CreateTicket(ctx context.Context, seed storage.TicketSeed) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, err := storage.SeedTicket(seed, s.now())
	if err != nil {
		return nil, err
	}
	s.doc.Tickets = append(s.doc.Tickets, *ticket)
	if err := s.persistLocked(); err != nil {
		s.doc.Tickets = s.doc.Tickets[:len(s.doc.Tickets)-1]
		return nil, err
	}
	out := cloneTicket(ticket)
	return &out, nil
}

// UpdateTicket applies a partial update. Missing tickets yield nil, nil.
func (s *Store) UpdateTicket(ctx context.Context, id string, patch storage.TicketPatch) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(id)
	if t == nil {
		return nil, nil
	}
	storage.ApplyPatch(t, patch)
	t.UpdatedAt = s.now()
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	out := cloneTicket(t)
	return &out, nil
}

// DeleteTicket removes a ticket along with its owned comments and actions.
func (s *Store) DeleteTicket(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.doc.Tickets {
		if s.doc.Tickets[i].ID == id {
			s.doc.Tickets = append(s.doc.Tickets[:i], s.doc.Tickets[i+1:]...)
			if err := s.persistLocked(); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// AddSwarmAction appends one log entry and returns the updated ticket.
func (s *Store) AddSwarmAction(ctx context.Context, ticketID, action string, result *string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(ticketID)
	if t == nil {
		return nil, nil
	}
	now := s.now()
	t.SwarmActions = append(t.SwarmActions, domain.SwarmAction{
		Timestamp: now,
		Action:    action,
		Result:    result,
	})
	t.UpdatedAt = now
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	out := cloneTicket(t)
	return &out, nil
}

// AddComment appends a comment to a ticket.
func (s *Store) AddComment(ctx context.Context, ticketID string, seed storage.CommentSeed) (*domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(ticketID)
	if t == nil {
		return nil, nil
	}
	now := s.now()
	comment := storage.SeedComment(seed, now)
	t.Comments = append(t.Comments, comment)
	t.UpdatedAt = now
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	out := cloneComment(&comment)
	return &out, nil
}

// ListComments returns a ticket's comments in insertion order, or nil when
// the ticket is absent.
func (s *Store) ListComments(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(ticketID)
	if t == nil {
		return nil, nil
	}
	out := make([]domain.Comment, 0, len(t.Comments))
	for i := range t.Comments {
		out = append(out, cloneComment(&t.Comments[i]))
	}
	return out, nil
}

// UpdateComment edits a comment, merging metadata keys into the existing
// map rather than replacing it.
func (s *Store) UpdateComment(ctx context.Context, ticketID, commentID string, patch storage.CommentPatch) (*domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(ticketID)
	if t == nil {
		return nil, nil
	}
	for i := range t.Comments {
		if t.Comments[i].ID != commentID {
			continue
		}
		now := s.now()
		storage.ApplyCommentPatch(&t.Comments[i], patch, now)
		t.UpdatedAt = now
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
		out := cloneComment(&t.Comments[i])
		return &out, nil
	}
	return nil, nil
}

// DeleteComment removes one comment from a ticket.
func (s *Store) DeleteComment(ctx context.Context, ticketID, commentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.findLocked(ticketID)
	if t == nil {
		return false, nil
	}
	for i := range t.Comments {
		if t.Comments[i].ID == commentID {
			t.Comments = append(t.Comments[:i], t.Comments[i+1:]...)
			t.UpdatedAt = s.now()
			if err := s.persistLocked(); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// Stats aggregates ticket counts by status and priority.
func (s *Store) Stats(ctx context.Context) (*domain.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &domain.Stats{
		Total:      len(s.doc.Tickets),
		ByStatus:   make(map[domain.TicketStatus]int),
		ByPriority: make(map[domain.TicketPriority]int),
	}
	for i := range s.doc.Tickets {
		stats.ByStatus[s.doc.Tickets[i].Status]++
		if s.doc.Tickets[i].Priority != nil {
			stats.ByPriority[*s.doc.Tickets[i].Priority]++
		}
	}
	return stats, nil
}

// CreateBugReport runs the public ingestion path. The file backend stores
// no API keys, so any supplied key is treated as invalid rather than
// silently accepted. Rate-limit windows live in memory only.
func (s *Store) CreateBugReport(ctx context.Context, report storage.BugReport) (*storage.BugReportAck, error) {
	s.mu.Lock()

	if report.APIKey != nil && *report.APIKey != "" {
		s.mu.Unlock()
		return nil, storage.ErrInvalidAPIKey
	}

	now := s.now()
	windowStart := storage.WindowStart(now)
	s.pruneWindowsLocked(windowStart)

	identifier := storage.RateIdentifier(nil, report.NetworkID)
	key := windowKey{identifier: identifier, windowStart: windowStart.Unix()}
	limit := storage.RateLimitFor(false)
	if s.windows[key] >= limit {
		s.mu.Unlock()
		return nil, &storage.RateLimitError{Identifier: identifier, Limit: limit, WindowStart: windowStart}
	}
	s.windows[key]++
	s.mu.Unlock()

	ticket, err := s.CreateTicket(ctx, storage.BugReportSeed(report))
	if err != nil {
		return nil, err
	}
	return storage.SubmittedAck(ticket.ID), nil
}

func (s *Store) pruneWindowsLocked(current time.Time) {
	cutoff := current.Add(-storage.RateLimitWindow).Unix()
	for key := range s.windows {
		if key.windowStart < cutoff {
			delete(s.windows, key)
		}
	}
}

// CreateAPIKey is unsupported: keys held only in memory would vanish on
// restart, which would be a silent correctness trap.
func (s *Store) CreateAPIKey(ctx context.Context, name string) (*domain.APIKey, error) {
	return nil, storage.ErrAPIKeysUnsupported
}

// ListAPIKeys is unsupported for the file backend.
func (s *Store) ListAPIKeys(ctx context.Context) ([]domain.APIKey, error) {
	return nil, storage.ErrAPIKeysUnsupported
}

// RevokeAPIKey is unsupported for the file backend.
func (s *Store) RevokeAPIKey(ctx context.Context, key string) (bool, error) {
	return false, storage.ErrAPIKeysUnsupported
}

func cloneTicket(t *domain.Ticket) domain.Ticket {
	out := *t
	out.RelatedTickets = append([]string(nil), t.RelatedTickets...)
	out.SwarmActions = append([]domain.SwarmAction(nil), t.SwarmActions...)
	out.Comments = make([]domain.Comment, 0, len(t.Comments))
	for i := range t.Comments {
		out.Comments = append(out.Comments, cloneComment(&t.Comments[i]))
	}
	return out
}

func cloneComment(c *domain.Comment) domain.Comment {
	out := *c
	if c.Metadata != nil {
		out.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
