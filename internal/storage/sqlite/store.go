// Package sqlite implements the storage contract over an embedded SQLite
// database. Every multi-statement mutation runs inside a single
// transaction, so a failure partway through never leaves a partial ticket
// visible.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"

	"github.com/swarmdesk/swarmdesk/internal/domain"
	"github.com/swarmdesk/swarmdesk/internal/storage"
)

// storedTimeFormat is a fixed-width UTC layout, so created_at ordering in
// SQL matches chronological ordering.
const storedTimeFormat = "2006-01-02T15:04:05.000Z"

// Store is the embedded-SQLite adapter.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// New opens (or creates) the database file. Init must still be called to
// establish the schema.
func New(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, storage.Unavailable("sqlite", "SQLITE_PATH is not set", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, storage.Unavailable("sqlite", "cannot create data directory", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storage.Unavailable("sqlite", "cannot open database (is modernc.org/sqlite available in this build?)", err)
	}
	// SQLite allows one writer; a single pooled connection avoids
	// SQLITE_BUSY churn under concurrent calls.
	db.SetMaxOpenConns(1)
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Init creates the schema when absent. Safe against an already-initialized
// database.
func (s *Store) Init(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storage.Unavailable("sqlite", "cannot reach database", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close releases the database handle. database/sql tolerates repeated
// Close calls, so no extra guard is needed.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(storedTimeFormat)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(storedTimeFormat, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// querier abstracts *sql.DB and *sql.Tx, so hydration helpers run both
// inside and outside transactions.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ListTickets returns tickets matching the filter, newest first.
func (s *Store) ListTickets(ctx context.Context, filter storage.TicketFilter) ([]domain.Ticket, error) {
	query := `SELECT id, route, f12_errors, server_errors, description, status, priority, namespace, created_at, updated_at
              FROM tickets`
	clauses := []string{}
	args := []any{}
	if filter.Status != nil {
		clauses = append(clauses, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.ExcludeStatus != nil {
		clauses = append(clauses, "status <> ?")
		args = append(args, string(*filter.ExcludeStatus))
	}
	if filter.Priority != nil {
		clauses = append(clauses, "priority = ?")
		args = append(args, string(*filter.Priority))
	}
	if filter.Route != nil {
		clauses = append(clauses, "LOWER(route) LIKE ?")
		args = append(args, "%"+strings.ToLower(*filter.Route)+"%")
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicketRow(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range tickets {
		if err := s.hydrate(ctx, s.db, &tickets[i]); err != nil {
			return nil, err
		}
	}
	return tickets, nil
}

// GetTicket returns the fully hydrated ticket or nil when absent.
func (s *Store) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	return s.getTicket(ctx, s.db, id)
}

func (s *Store) getTicket(ctx context.Context, q querier, id string) (*domain.Ticket, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, route, f12_errors, server_errors, description, status, priority, namespace, created_at, updated_at
         FROM tickets WHERE id = ?`, id)
	ticket, err := scanTicketRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.hydrate(ctx, q, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicketRow(row rowScanner) (*domain.Ticket, error) {
	var (
		t         domain.Ticket
		priority  sql.NullString
		namespace sql.NullString
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&t.ID, &t.Route, &t.F12Errors, &t.ServerErrors, &t.Description,
		&t.Status, &priority, &namespace, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if priority.Valid {
		p := domain.TicketPriority(priority.String)
		t.Priority = &p
	}
	if namespace.Valid {
		ns := namespace.String
		t.Namespace = &ns
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

func (s *Store) hydrate(ctx context.Context, q querier, t *domain.Ticket) error {
	related, err := s.loadRelations(ctx, q, t.ID)
	if err != nil {
		return err
	}
	t.RelatedTickets = related

	actions, err := s.loadActions(ctx, q, t.ID)
	if err != nil {
		return err
	}
	t.SwarmActions = actions

	comments, err := s.loadComments(ctx, q, t.ID)
	if err != nil {
		return err
	}
	t.Comments = comments
	return nil
}

func (s *Store) loadRelations(ctx context.Context, q querier, ticketID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT related_id FROM ticket_relations WHERE ticket_id = ? ORDER BY rowid`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	related := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		related = append(related, id)
	}
	return related, rows.Err()
}

func (s *Store) loadActions(ctx context.Context, q querier, ticketID string) ([]domain.SwarmAction, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT timestamp, action, result FROM swarm_actions WHERE ticket_id = ? ORDER BY id`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	actions := []domain.SwarmAction{}
	for rows.Next() {
		var (
			action domain.SwarmAction
			ts     string
			result sql.NullString
		)
		if err := rows.Scan(&ts, &action.Action, &result); err != nil {
			return nil, err
		}
		action.Timestamp = parseTime(ts)
		if result.Valid {
			r := result.String
			action.Result = &r
		}
		actions = append(actions, action)
	}
	return actions, rows.Err()
}

func (s *Store) loadComments(ctx context.Context, q querier, ticketID string) ([]domain.Comment, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, type, author, content, metadata, timestamp, edited_at
         FROM comments WHERE ticket_id = ? ORDER BY rowid`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	comments := []domain.Comment{}
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, *comment)
	}
	return comments, rows.Err()
}

func scanComment(row rowScanner) (*domain.Comment, error) {
	var (
		c        domain.Comment
		metadata sql.NullString
		ts       string
		editedAt sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Type, &c.Author, &c.Content, &metadata, &ts, &editedAt); err != nil {
		return nil, err
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &c.Metadata); err != nil {
			return nil, fmt.Errorf("decode comment %s metadata: %w", c.ID, err)
		}
	}
	c.Timestamp = parseTime(ts)
	if editedAt.Valid {
		t := parseTime(editedAt.String)
		c.EditedAt = &t
	}
	return &c, nil
}

func encodeMetadata(metadata map[string]any) (any, error) {
	if metadata == nil {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return string(data), nil
}

// CreateTicket persists a ticket and its nested rows in one transaction.
func (s *Store) CreateTicket(ctx context.Context, seed storage.TicketSeed) (*domain.Ticket, error) {
	ticket, err := storage.SeedTicket(seed, s.now())
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertTicket(ctx, tx, ticket); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ticket, nil
}

func insertTicket(ctx context.Context, q querier, t *domain.Ticket) error {
	var priority any
	if t.Priority != nil {
		priority = string(*t.Priority)
	}
	if _, err := q.ExecContext(ctx,
		`INSERT INTO tickets (id, route, f12_errors, server_errors, description, status, priority, namespace, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Route, t.F12Errors, t.ServerErrors, t.Description, string(t.Status),
		priority, nullableString(t.Namespace), formatTime(t.CreatedAt), formatTime(t.UpdatedAt)); err != nil {
		return err
	}
	for _, related := range t.RelatedTickets {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO ticket_relations (ticket_id, related_id) VALUES (?, ?)`, t.ID, related); err != nil {
			return err
		}
	}
	for _, action := range t.SwarmActions {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO swarm_actions (ticket_id, timestamp, action, result) VALUES (?, ?, ?, ?)`,
			t.ID, formatTime(action.Timestamp), action.Action, nullableString(action.Result)); err != nil {
			return err
		}
	}
	for _, comment := range t.Comments {
		metadata, err := encodeMetadata(comment.Metadata)
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx,
			`INSERT INTO comments (id, ticket_id, type, author, content, metadata, timestamp, edited_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			comment.ID, t.ID, string(comment.Type), comment.Author, comment.Content,
			metadata, formatTime(comment.Timestamp), nullableTime(comment.EditedAt)); err != nil {
			return err
		}
	}
	return nil
}

// UpdateTicket applies a partial update inside one transaction. Missing
// tickets yield nil, nil.
func (s *Store) UpdateTicket(ctx context.Context, id string, patch storage.TicketPatch) (*domain.Ticket, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	ticket, err := s.getTicket(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, nil
	}

	storage.ApplyPatch(ticket, patch)
	ticket.UpdatedAt = s.now()

	var priority any
	if ticket.Priority != nil {
		priority = string(*ticket.Priority)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE tickets SET route = ?, f12_errors = ?, server_errors = ?, description = ?,
            status = ?, priority = ?, namespace = ?, updated_at = ?
         WHERE id = ?`,
		ticket.Route, ticket.F12Errors, ticket.ServerErrors, ticket.Description,
		string(ticket.Status), priority, nullableString(ticket.Namespace),
		formatTime(ticket.UpdatedAt), id); err != nil {
		return nil, err
	}

	if patch.RelatedTickets != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM ticket_relations WHERE ticket_id = ?`, id); err != nil {
			return nil, err
		}
		for _, related := range ticket.RelatedTickets {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO ticket_relations (ticket_id, related_id) VALUES (?, ?)`, id, related); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ticket, nil
}

// DeleteTicket removes the ticket row; child rows cascade.
func (s *Store) DeleteTicket(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tickets WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// AddSwarmAction appends one log entry and returns the updated ticket.
func (s *Store) AddSwarmAction(ctx context.Context, ticketID, action string, result *string) (*domain.Ticket, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	if exists, err := ticketExists(ctx, tx, ticketID); err != nil {
		return nil, err
	} else if !exists {
		return nil, nil
	}

	now := s.now()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO swarm_actions (ticket_id, timestamp, action, result) VALUES (?, ?, ?, ?)`,
		ticketID, formatTime(now), action, nullableString(result)); err != nil {
		return nil, err
	}
	if err := touchTicket(ctx, tx, ticketID, formatTime(now)); err != nil {
		return nil, err
	}

	ticket, err := s.getTicket(ctx, tx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ticket, nil
}

func ticketExists(ctx context.Context, q querier, id string) (bool, error) {
	var count int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE id = ?`, id).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func touchTicket(ctx context.Context, q querier, id, updatedAt string) error {
	_, err := q.ExecContext(ctx, `UPDATE tickets SET updated_at = ? WHERE id = ?`, updatedAt, id)
	return err
}

// AddComment appends a comment to a ticket.
func (s *Store) AddComment(ctx context.Context, ticketID string, seed storage.CommentSeed) (*domain.Comment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	if exists, err := ticketExists(ctx, tx, ticketID); err != nil {
		return nil, err
	} else if !exists {
		return nil, nil
	}

	now := s.now()
	comment := storage.SeedComment(seed, now)
	metadata, err := encodeMetadata(comment.Metadata)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO comments (id, ticket_id, type, author, content, metadata, timestamp)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		comment.ID, ticketID, string(comment.Type), comment.Author, comment.Content,
		metadata, formatTime(comment.Timestamp)); err != nil {
		return nil, err
	}
	if err := touchTicket(ctx, tx, ticketID, formatTime(now)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListComments returns a ticket's comments in insertion order, or nil when
// the ticket is absent.
func (s *Store) ListComments(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	if exists, err := ticketExists(ctx, s.db, ticketID); err != nil {
		return nil, err
	} else if !exists {
		return nil, nil
	}
	return s.loadComments(ctx, s.db, ticketID)
}

// UpdateComment edits a comment, merging metadata keys into the stored map.
func (s *Store) UpdateComment(ctx context.Context, ticketID, commentID string, patch storage.CommentPatch) (*domain.Comment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx,
		`SELECT id, type, author, content, metadata, timestamp, edited_at
         FROM comments WHERE id = ? AND ticket_id = ?`, commentID, ticketID)
	comment, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	storage.ApplyCommentPatch(comment, patch, now)
	metadata, err := encodeMetadata(comment.Metadata)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE comments SET author = ?, content = ?, metadata = ?, edited_at = ? WHERE id = ?`,
		comment.Author, comment.Content, metadata, nullableTime(comment.EditedAt), commentID); err != nil {
		return nil, err
	}
	if err := touchTicket(ctx, tx, ticketID, formatTime(now)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return comment, nil
}

// DeleteComment removes one comment from a ticket.
func (s *Store) DeleteComment(ctx context.Context, ticketID, commentID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`DELETE FROM comments WHERE id = ? AND ticket_id = ?`, commentID, ticketID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}
	if err := touchTicket(ctx, tx, ticketID, formatTime(s.now())); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// Stats aggregates ticket counts by status and priority.
func (s *Store) Stats(ctx context.Context) (*domain.Stats, error) {
	stats := &domain.Stats{
		ByStatus:   make(map[domain.TicketStatus]int),
		ByPriority: make(map[domain.TicketPriority]int),
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets`).Scan(&stats.Total); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tickets GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[domain.TicketStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prows, err := s.db.QueryContext(ctx,
		`SELECT priority, COUNT(*) FROM tickets WHERE priority IS NOT NULL GROUP BY priority`)
	if err != nil {
		return nil, err
	}
	defer prows.Close()
	for prows.Next() {
		var (
			priority string
			count    int
		)
		if err := prows.Scan(&priority, &count); err != nil {
			return nil, err
		}
		stats.ByPriority[domain.TicketPriority(priority)] = count
	}
	return stats, prows.Err()
}

// CreateBugReport runs the public ingestion path: key check, fixed-window
// rate limit, minimal ticket.
func (s *Store) CreateBugReport(ctx context.Context, report storage.BugReport) (*storage.BugReportAck, error) {
	now := s.now()
	authenticated := false

	if report.APIKey != nil && *report.APIKey != "" {
		var enabled int
		err := s.db.QueryRowContext(ctx,
			`SELECT enabled FROM api_keys WHERE key = ?`, *report.APIKey).Scan(&enabled)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrInvalidAPIKey
		}
		if err != nil {
			return nil, err
		}
		if enabled == 0 {
			return nil, storage.ErrInvalidAPIKey
		}
		if _, err := s.db.ExecContext(ctx,
			`UPDATE api_keys SET last_used = ? WHERE key = ?`, formatTime(now), *report.APIKey); err != nil {
			return nil, err
		}
		authenticated = true
	}

	s.pruneRateWindows(ctx, now)

	identifier := storage.RateIdentifier(report.APIKey, report.NetworkID)
	windowStart := storage.WindowStart(now)
	limit := storage.RateLimitFor(authenticated)

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT request_count FROM rate_limits WHERE identifier = ? AND window_start = ?`,
		identifier, formatTime(windowStart)).Scan(&count)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if count >= limit {
		return nil, &storage.RateLimitError{Identifier: identifier, Limit: limit, WindowStart: windowStart}
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO rate_limits (identifier, window_start, request_count) VALUES (?, ?, 1)
         ON CONFLICT (identifier, window_start) DO UPDATE SET request_count = request_count + 1`,
		identifier, formatTime(windowStart)); err != nil {
		return nil, err
	}

	ticket, err := s.CreateTicket(ctx, storage.BugReportSeed(report))
	if err != nil {
		return nil, err
	}
	return storage.SubmittedAck(ticket.ID), nil
}

// pruneRateWindows drops counter rows older than one window. Best-effort:
// a failed prune is logged and never blocks the submission.
func (s *Store) pruneRateWindows(ctx context.Context, now time.Time) {
	cutoff := storage.WindowStart(now).Add(-storage.RateLimitWindow)
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM rate_limits WHERE window_start < ?`, formatTime(cutoff)); err != nil {
		s.logger.Warn("rate limit prune failed", zap.Error(err))
	}
}

// CreateAPIKey mints and stores a new key.
func (s *Store) CreateAPIKey(ctx context.Context, name string) (*domain.APIKey, error) {
	key := domain.APIKey{
		Key:       storage.NewAPIKeySecret(),
		Name:      name,
		Enabled:   true,
		CreatedAt: s.now(),
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (key, name, enabled, created_at) VALUES (?, ?, 1, ?)`,
		key.Key, key.Name, formatTime(key.CreatedAt)); err != nil {
		return nil, err
	}
	return &key, nil
}

// ListAPIKeys returns all keys, including revoked ones.
func (s *Store) ListAPIKeys(ctx context.Context) ([]domain.APIKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, name, enabled, created_at, last_used FROM api_keys ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []domain.APIKey{}
	for rows.Next() {
		var (
			key       domain.APIKey
			enabled   int
			createdAt string
			lastUsed  sql.NullString
		)
		if err := rows.Scan(&key.Key, &key.Name, &enabled, &createdAt, &lastUsed); err != nil {
			return nil, err
		}
		key.Enabled = enabled != 0
		key.CreatedAt = parseTime(createdAt)
		if lastUsed.Valid {
			t := parseTime(lastUsed.String)
			key.LastUsed = &t
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// RevokeAPIKey disables a key without deleting its row.
func (s *Store) RevokeAPIKey(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE api_keys SET enabled = 0 WHERE key = ?`, key)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
