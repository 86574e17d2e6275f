package events

import (
	"time"

	"github.com/swarmdesk/swarmdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated     EventType = "ticket_created"
	EventTicketUpdated     EventType = "ticket_updated"
	EventTicketDeleted     EventType = "ticket_deleted"
	EventBugReportReceived EventType = "bug_report_received"
)

// Event represents a domain event emitted after a successful mutation.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Route    string                 `json:"route"`
	Status   domain.TicketStatus    `json:"status"`
	Priority *domain.TicketPriority `json:"priority,omitempty"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	Status   domain.TicketStatus    `json:"status"`
	Priority *domain.TicketPriority `json:"priority,omitempty"`
}

// BugReportReceivedPayload payload.
type BugReportReceivedPayload struct {
	Route         string                 `json:"route"`
	Priority      *domain.TicketPriority `json:"priority,omitempty"`
	Authenticated bool                   `json:"authenticated"`
}
