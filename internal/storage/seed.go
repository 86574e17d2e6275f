package storage

import (
	"fmt"
	"time"

	"github.com/swarmdesk/swarmdesk/internal/domain"
)

// SeedTicket materializes a TicketSeed into a fully defaulted ticket.
// Shared by every adapter so created tickets look identical regardless of
// backend. Identity and timestamps are assigned here unless the seed
// carries them, which only the migration tool does.
func SeedTicket(seed TicketSeed, now time.Time) (*domain.Ticket, error) {
	status := seed.Status
	if status == "" {
		status = domain.TicketStatusOpen
	}
	if _, err := domain.ParseStatus(string(status)); err != nil {
		return nil, err
	}
	if seed.Priority != nil {
		if _, err := domain.ParsePriority(string(*seed.Priority)); err != nil {
			return nil, err
		}
	}

	id := seed.ID
	if id == "" {
		id = NewTicketID()
	}
	createdAt := seed.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := seed.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	if updatedAt.Before(createdAt) {
		updatedAt = createdAt
	}

	actions := make([]domain.SwarmAction, 0, len(seed.SwarmActions))
	for _, action := range seed.SwarmActions {
		if action.Timestamp.IsZero() {
			action.Timestamp = now
		}
		actions = append(actions, action)
	}

	comments := make([]domain.Comment, 0, len(seed.Comments))
	for _, comment := range seed.Comments {
		normalized, err := normalizeComment(comment, now)
		if err != nil {
			return nil, err
		}
		comments = append(comments, normalized)
	}

	return &domain.Ticket{
		ID:             id,
		Route:          seed.Route,
		F12Errors:      seed.F12Errors,
		ServerErrors:   seed.ServerErrors,
		Description:    seed.Description,
		Status:         status,
		Priority:       seed.Priority,
		Namespace:      seed.Namespace,
		RelatedTickets: append([]string(nil), seed.RelatedTickets...),
		SwarmActions:   actions,
		Comments:       comments,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

// SeedComment materializes a CommentSeed with identity and defaults.
func SeedComment(seed CommentSeed, now time.Time) domain.Comment {
	author := seed.Author
	if author == "" {
		author = domain.DefaultCommentAuthor
	}
	commentType := seed.Type
	if commentType == "" {
		commentType = domain.CommentTypeHuman
	}
	return domain.Comment{
		ID:        NewCommentID(),
		Type:      commentType,
		Author:    author,
		Content:   seed.Content,
		Metadata:  copyMetadata(seed.Metadata),
		Timestamp: now,
	}
}

// normalizeComment defaults a comment supplied inside a ticket seed,
// keeping any identity and timestamps the migration tool preserved.
func normalizeComment(c domain.Comment, now time.Time) (domain.Comment, error) {
	if c.ID == "" {
		c.ID = NewCommentID()
	}
	if c.Author == "" {
		c.Author = domain.DefaultCommentAuthor
	}
	parsed, err := domain.ParseCommentType(string(c.Type))
	if err != nil {
		return domain.Comment{}, fmt.Errorf("comment %s: %w", c.ID, err)
	}
	c.Type = parsed
	if c.Timestamp.IsZero() {
		c.Timestamp = now
	}
	c.Metadata = copyMetadata(c.Metadata)
	return c, nil
}

// ApplyCommentPatch edits a comment in place. Metadata keys merge into the
// existing map; existing keys not named by the patch survive.
func ApplyCommentPatch(c *domain.Comment, patch CommentPatch, now time.Time) {
	if patch.Author != nil {
		c.Author = *patch.Author
	}
	if patch.Content != nil {
		c.Content = *patch.Content
	}
	if len(patch.Metadata) > 0 {
		if c.Metadata == nil {
			c.Metadata = make(map[string]any, len(patch.Metadata))
		}
		for k, v := range patch.Metadata {
			c.Metadata[k] = v
		}
	}
	edited := now
	c.EditedAt = &edited
}

func copyMetadata(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
