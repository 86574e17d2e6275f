package dto

import (
	"encoding/json"
)

// CreateTicketRequest payload. Nested actions and comments may be supplied
// at creation time and are persisted with the ticket.
type CreateTicketRequest struct {
	Route          string                 `json:"route"`
	F12Errors      string                 `json:"f12Errors"`
	ServerErrors   string                 `json:"serverErrors"`
	Description    string                 `json:"description"`
	Status         string                 `json:"status"`
	Priority       string                 `json:"priority"`
	Namespace      *string                `json:"namespace"`
	RelatedTickets []string               `json:"relatedTickets"`
	SwarmActions   []SwarmActionRequest   `json:"swarmActions"`
	Comments       []CreateCommentRequest `json:"comments"`
}

// UpdateTicketRequest is a partial update. Priority and namespace use raw
// JSON so an explicit null (clear the field) is distinguishable from the
// field being absent (leave it alone).
type UpdateTicketRequest struct {
	Status         *string         `json:"status"`
	Priority       json.RawMessage `json:"priority"`
	Namespace      json.RawMessage `json:"namespace"`
	RelatedTickets *[]string       `json:"relatedTickets"`
	Description    *string         `json:"description"`
	F12Errors      *string         `json:"f12Errors"`
	ServerErrors   *string         `json:"serverErrors"`
	Route          *string         `json:"route"`
}

// SwarmActionRequest payload.
type SwarmActionRequest struct {
	Action string  `json:"action"`
	Result *string `json:"result"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Type     string         `json:"type"`
	Author   string         `json:"author"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// UpdateCommentRequest payload. Metadata merges into the stored map.
type UpdateCommentRequest struct {
	Author   *string        `json:"author"`
	Content  *string        `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// BugReportRequest is the restricted public submission payload.
type BugReportRequest struct {
	Route        string `json:"route"`
	F12Errors    string `json:"f12Errors"`
	ServerErrors string `json:"serverErrors"`
	Description  string `json:"description"`
	Priority     string `json:"priority"`
}

// CreateAPIKeyRequest payload.
type CreateAPIKeyRequest struct {
	Name string `json:"name"`
}
