package domain

import (
	"fmt"
	"strings"
	"time"
)

// CommentType distinguishes human authors from automated ones.
type CommentType string

const (
	CommentTypeHuman CommentType = "human"
	CommentTypeAI    CommentType = "ai"
)

// DefaultCommentAuthor is used when a comment arrives without an author.
const DefaultCommentAuthor = "anonymous"

// ParseCommentType normalizes a raw comment type. Empty input defaults to
// human.
func ParseCommentType(raw string) (CommentType, error) {
	t := CommentType(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case "":
		return CommentTypeHuman, nil
	case CommentTypeHuman, CommentTypeAI:
		return t, nil
	}
	return "", fmt.Errorf("invalid comment type %q", raw)
}

// Comment is one discussion entry owned by a single ticket. Deleting the
// ticket deletes its comments. Metadata semantics belong to the caller;
// updates merge keys into the existing map rather than replacing it.
type Comment struct {
	ID        string         `json:"id"`
	Type      CommentType    `json:"type"`
	Author    string         `json:"author"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	EditedAt  *time.Time     `json:"editedAt,omitempty"`
}
