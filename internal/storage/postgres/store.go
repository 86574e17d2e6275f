// Package postgres implements the storage contract over a remote
// PostgreSQL database via pgx. Unlike the original remote backend this one
// does have a multi-statement transaction primitive, so nested writes run
// transactionally instead of as best-effort sequential inserts.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/swarmdesk/swarmdesk/internal/config"
	"github.com/swarmdesk/swarmdesk/internal/domain"
	"github.com/swarmdesk/swarmdesk/internal/storage"
)

// Store is the remote-Postgres adapter.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	now    func() time.Time
}

// New establishes the connection pool. A missing DSN fails here, at
// construction, so a misconfigured deployment is visible at startup.
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*Store, error) {
	if cfg.PostgresDSN == "" {
		return nil, storage.Unavailable("postgres", "POSTGRES_DSN is not set", nil)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, storage.Unavailable("postgres", "POSTGRES_DSN is not a valid connection string", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, storage.Unavailable("postgres", "cannot create connection pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, storage.Unavailable("postgres", "cannot reach database", err)
	}

	logger.Info("connected to postgres")
	return &Store{pool: pool, logger: logger, now: time.Now}, nil
}

// Init creates the schema when absent.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close releases pool resources. Safe to call more than once.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	return nil
}

// querier abstracts pool and transaction for hydration helpers.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconnCommandTag, error)
}

// pgconnCommandTag narrows the pgconn.CommandTag surface we rely on.
type pgconnCommandTag = interface{ RowsAffected() int64 }

// poolQuerier adapts *pgxpool.Pool to the querier interface.
type poolQuerier struct{ pool *pgxpool.Pool }

func (p poolQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return p.pool.Query(ctx, sql, args...)
}

func (p poolQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

func (p poolQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconnCommandTag, error) {
	return p.pool.Exec(ctx, sql, args...)
}

// txQuerier adapts pgx.Tx to the querier interface.
type txQuerier struct{ tx pgx.Tx }

func (t txQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.tx.Query(ctx, sql, args...)
}

func (t txQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.tx.QueryRow(ctx, sql, args...)
}

func (t txQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconnCommandTag, error) {
	return t.tx.Exec(ctx, sql, args...)
}

func (s *Store) q() querier {
	return poolQuerier{pool: s.pool}
}

// ListTickets returns tickets matching the filter, newest first.
func (s *Store) ListTickets(ctx context.Context, filter storage.TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT id, route, f12_errors, server_errors, description, status, priority, namespace, created_at, updated_at
             FROM tickets`
	clauses := []string{}
	args := []any{}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.ExcludeStatus != nil {
		args = append(args, string(*filter.ExcludeStatus))
		clauses = append(clauses, fmt.Sprintf("status <> $%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, string(*filter.Priority))
		clauses = append(clauses, fmt.Sprintf("priority = $%d", len(args)))
	}
	if filter.Route != nil {
		args = append(args, "%"+strings.ToLower(*filter.Route)+"%")
		clauses = append(clauses, fmt.Sprintf("LOWER(route) LIKE $%d", len(args)))
	}

	query := base
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		if err := scanTicket(rows, &t); err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range tickets {
		if err := s.hydrate(ctx, s.q(), &tickets[i]); err != nil {
			return nil, err
		}
	}
	return tickets, nil
}

// GetTicket returns the fully hydrated ticket or nil when absent.
func (s *Store) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	return s.getTicket(ctx, s.q(), id)
}

func (s *Store) getTicket(ctx context.Context, q querier, id string) (*domain.Ticket, error) {
	var t domain.Ticket
	row := q.QueryRow(ctx,
		`SELECT id, route, f12_errors, server_errors, description, status, priority, namespace, created_at, updated_at
         FROM tickets WHERE id = $1`, id)
	if err := scanTicket(row, &t); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := s.hydrate(ctx, q, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner, t *domain.Ticket) error {
	var priority, namespace *string
	if err := row.Scan(&t.ID, &t.Route, &t.F12Errors, &t.ServerErrors, &t.Description,
		&t.Status, &priority, &namespace, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return err
	}
	if priority != nil {
		p := domain.TicketPriority(*priority)
		t.Priority = &p
	}
	t.Namespace = namespace
	return nil
}

func (s *Store) hydrate(ctx context.Context, q querier, t *domain.Ticket) error {
	rows, err := q.Query(ctx,
		`SELECT related_id FROM ticket_relations WHERE ticket_id = $1 ORDER BY position`, t.ID)
	if err != nil {
		return err
	}
	t.RelatedTickets = []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		t.RelatedTickets = append(t.RelatedTickets, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	arows, err := q.Query(ctx,
		`SELECT timestamp, action, result FROM swarm_actions WHERE ticket_id = $1 ORDER BY id`, t.ID)
	if err != nil {
		return err
	}
	t.SwarmActions = []domain.SwarmAction{}
	for arows.Next() {
		var action domain.SwarmAction
		if err := arows.Scan(&action.Timestamp, &action.Action, &action.Result); err != nil {
			arows.Close()
			return err
		}
		t.SwarmActions = append(t.SwarmActions, action)
	}
	arows.Close()
	if err := arows.Err(); err != nil {
		return err
	}

	comments, err := loadComments(ctx, q, t.ID)
	if err != nil {
		return err
	}
	t.Comments = comments
	return nil
}

func loadComments(ctx context.Context, q querier, ticketID string) ([]domain.Comment, error) {
	rows, err := q.Query(ctx,
		`SELECT id, type, author, content, metadata, timestamp, edited_at
         FROM comments WHERE ticket_id = $1 ORDER BY position`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []domain.Comment{}
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.Type, &c.Author, &c.Content, &c.Metadata, &c.Timestamp, &c.EditedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// CreateTicket persists a ticket and its nested rows in one transaction.
func (s *Store) CreateTicket(ctx context.Context, seed storage.TicketSeed) (*domain.Ticket, error) {
	ticket, err := storage.SeedTicket(seed, s.now())
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := insertTicket(ctx, txQuerier{tx: tx}, ticket); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ticket, nil
}

func insertTicket(ctx context.Context, q querier, t *domain.Ticket) error {
	if _, err := q.Exec(ctx,
		`INSERT INTO tickets (id, route, f12_errors, server_errors, description, status, priority, namespace, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.Route, t.F12Errors, t.ServerErrors, t.Description, string(t.Status),
		t.Priority, t.Namespace, t.CreatedAt, t.UpdatedAt); err != nil {
		return err
	}
	for i, related := range t.RelatedTickets {
		if _, err := q.Exec(ctx,
			`INSERT INTO ticket_relations (ticket_id, related_id, position) VALUES ($1, $2, $3)`,
			t.ID, related, i); err != nil {
			return err
		}
	}
	for _, action := range t.SwarmActions {
		if _, err := q.Exec(ctx,
			`INSERT INTO swarm_actions (ticket_id, timestamp, action, result) VALUES ($1, $2, $3, $4)`,
			t.ID, action.Timestamp, action.Action, action.Result); err != nil {
			return err
		}
	}
	for _, comment := range t.Comments {
		if _, err := q.Exec(ctx,
			`INSERT INTO comments (id, ticket_id, type, author, content, metadata, timestamp, edited_at)
             VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			comment.ID, t.ID, string(comment.Type), comment.Author, comment.Content,
			comment.Metadata, comment.Timestamp, comment.EditedAt); err != nil {
			return err
		}
	}
	return nil
}

// UpdateTicket applies a partial update inside one transaction.
func (s *Store) UpdateTicket(ctx context.Context, id string, patch storage.TicketPatch) (*domain.Ticket, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	q := txQuerier{tx: tx}

	ticket, err := s.getTicket(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, nil
	}

	storage.ApplyPatch(ticket, patch)
	ticket.UpdatedAt = s.now()

	if _, err := q.Exec(ctx,
		`UPDATE tickets SET route = $1, f12_errors = $2, server_errors = $3, description = $4,
            status = $5, priority = $6, namespace = $7, updated_at = $8
         WHERE id = $9`,
		ticket.Route, ticket.F12Errors, ticket.ServerErrors, ticket.Description,
		string(ticket.Status), ticket.Priority, ticket.Namespace, ticket.UpdatedAt, id); err != nil {
		return nil, err
	}

	if patch.RelatedTickets != nil {
		if _, err := q.Exec(ctx, `DELETE FROM ticket_relations WHERE ticket_id = $1`, id); err != nil {
			return nil, err
		}
		for i, related := range ticket.RelatedTickets {
			if _, err := q.Exec(ctx,
				`INSERT INTO ticket_relations (ticket_id, related_id, position) VALUES ($1, $2, $3)`,
				id, related, i); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ticket, nil
}

// DeleteTicket removes the ticket row; child rows cascade.
func (s *Store) DeleteTicket(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tickets WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// AddSwarmAction appends one log entry and returns the updated ticket.
func (s *Store) AddSwarmAction(ctx context.Context, ticketID, action string, result *string) (*domain.Ticket, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	q := txQuerier{tx: tx}

	now := s.now()
	tag, err := q.Exec(ctx, `UPDATE tickets SET updated_at = $1 WHERE id = $2`, now, ticketID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}
	if _, err := q.Exec(ctx,
		`INSERT INTO swarm_actions (ticket_id, timestamp, action, result) VALUES ($1, $2, $3, $4)`,
		ticketID, now, action, result); err != nil {
		return nil, err
	}

	ticket, err := s.getTicket(ctx, q, ticketID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ticket, nil
}

// AddComment appends a comment to a ticket.
func (s *Store) AddComment(ctx context.Context, ticketID string, seed storage.CommentSeed) (*domain.Comment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	q := txQuerier{tx: tx}

	now := s.now()
	tag, err := q.Exec(ctx, `UPDATE tickets SET updated_at = $1 WHERE id = $2`, now, ticketID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}

	comment := storage.SeedComment(seed, now)
	if _, err := q.Exec(ctx,
		`INSERT INTO comments (id, ticket_id, type, author, content, metadata, timestamp)
         VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		comment.ID, ticketID, string(comment.Type), comment.Author, comment.Content,
		comment.Metadata, comment.Timestamp); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListComments returns a ticket's comments, or nil when the ticket is
// absent.
func (s *Store) ListComments(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tickets WHERE id = $1)`, ticketID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return loadComments(ctx, s.q(), ticketID)
}

// UpdateComment edits a comment, merging metadata keys into the stored map.
func (s *Store) UpdateComment(ctx context.Context, ticketID, commentID string, patch storage.CommentPatch) (*domain.Comment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	q := txQuerier{tx: tx}

	var c domain.Comment
	err = q.QueryRow(ctx,
		`SELECT id, type, author, content, metadata, timestamp, edited_at
         FROM comments WHERE id = $1 AND ticket_id = $2`, commentID, ticketID).
		Scan(&c.ID, &c.Type, &c.Author, &c.Content, &c.Metadata, &c.Timestamp, &c.EditedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	storage.ApplyCommentPatch(&c, patch, now)

	if _, err := q.Exec(ctx,
		`UPDATE comments SET author = $1, content = $2, metadata = $3, edited_at = $4 WHERE id = $5`,
		c.Author, c.Content, c.Metadata, c.EditedAt, commentID); err != nil {
		return nil, err
	}
	if _, err := q.Exec(ctx, `UPDATE tickets SET updated_at = $1 WHERE id = $2`, now, ticketID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteComment removes one comment from a ticket.
func (s *Store) DeleteComment(ctx context.Context, ticketID, commentID string) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	q := txQuerier{tx: tx}

	tag, err := q.Exec(ctx,
		`DELETE FROM comments WHERE id = $1 AND ticket_id = $2`, commentID, ticketID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if _, err := q.Exec(ctx, `UPDATE tickets SET updated_at = $1 WHERE id = $2`, s.now(), ticketID); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
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

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets`).Scan(&stats.Total); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM tickets GROUP BY status`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ByStatus[domain.TicketStatus(status)] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prows, err := s.pool.Query(ctx,
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
		var enabled bool
		err := s.pool.QueryRow(ctx,
			`SELECT enabled FROM api_keys WHERE key = $1`, *report.APIKey).Scan(&enabled)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrInvalidAPIKey
		}
		if err != nil {
			return nil, err
		}
		if !enabled {
			return nil, storage.ErrInvalidAPIKey
		}
		if _, err := s.pool.Exec(ctx,
			`UPDATE api_keys SET last_used = $1 WHERE key = $2`, now, *report.APIKey); err != nil {
			return nil, err
		}
		authenticated = true
	}

	s.pruneRateWindows(ctx, now)

	identifier := storage.RateIdentifier(report.APIKey, report.NetworkID)
	windowStart := storage.WindowStart(now)
	limit := storage.RateLimitFor(authenticated)

	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT request_count FROM rate_limits WHERE identifier = $1 AND window_start = $2`,
		identifier, windowStart).Scan(&count)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if count >= limit {
		return nil, &storage.RateLimitError{Identifier: identifier, Limit: limit, WindowStart: windowStart}
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO rate_limits (identifier, window_start, request_count) VALUES ($1, $2, 1)
         ON CONFLICT (identifier, window_start) DO UPDATE SET request_count = rate_limits.request_count + 1`,
		identifier, windowStart); err != nil {
		return nil, err
	}

	ticket, err := s.CreateTicket(ctx, storage.BugReportSeed(report))
	if err != nil {
		return nil, err
	}
	return storage.SubmittedAck(ticket.ID), nil
}

// pruneRateWindows drops counter rows older than one window. Best-effort.
func (s *Store) pruneRateWindows(ctx context.Context, now time.Time) {
	cutoff := storage.WindowStart(now).Add(-storage.RateLimitWindow)
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM rate_limits WHERE window_start < $1`, cutoff); err != nil {
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
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (key, name, enabled, created_at) VALUES ($1, $2, TRUE, $3)`,
		key.Key, key.Name, key.CreatedAt); err != nil {
		return nil, err
	}
	return &key, nil
}

// ListAPIKeys returns all keys, including revoked ones.
func (s *Store) ListAPIKeys(ctx context.Context) ([]domain.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, name, enabled, created_at, last_used FROM api_keys ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []domain.APIKey{}
	for rows.Next() {
		var key domain.APIKey
		if err := rows.Scan(&key.Key, &key.Name, &key.Enabled, &key.CreatedAt, &key.LastUsed); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// RevokeAPIKey disables a key without deleting its row.
func (s *Store) RevokeAPIKey(ctx context.Context, key string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE api_keys SET enabled = FALSE WHERE key = $1`, key)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
