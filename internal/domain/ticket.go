package domain

import (
	"fmt"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusFixed      TicketStatus = "fixed"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketPriority enumerates urgency levels. A ticket may also carry no
// priority at all, represented as a nil *TicketPriority.
type TicketPriority string

const (
	TicketPriorityCritical TicketPriority = "critical"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityLow      TicketPriority = "low"
)

// Statuses lists every valid ticket status.
func Statuses() []TicketStatus {
	return []TicketStatus{TicketStatusOpen, TicketStatusInProgress, TicketStatusFixed, TicketStatusClosed}
}

// Priorities lists every valid ticket priority.
func Priorities() []TicketPriority {
	return []TicketPriority{TicketPriorityCritical, TicketPriorityHigh, TicketPriorityMedium, TicketPriorityLow}
}

// ParseStatus normalizes a raw status value. Empty input defaults to open;
// anything outside the enumeration is rejected.
func ParseStatus(raw string) (TicketStatus, error) {
	s := TicketStatus(strings.ToLower(strings.TrimSpace(raw)))
	if s == "" {
		return TicketStatusOpen, nil
	}
	for _, valid := range Statuses() {
		if s == valid {
			return s, nil
		}
	}
	return "", fmt.Errorf("invalid ticket status %q", raw)
}

// ParsePriority normalizes a raw priority value. Empty input means no
// priority and yields a nil pointer.
func ParsePriority(raw string) (*TicketPriority, error) {
	p := TicketPriority(strings.ToLower(strings.TrimSpace(raw)))
	if p == "" {
		return nil, nil
	}
	for _, valid := range Priorities() {
		if p == valid {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("invalid ticket priority %q", raw)
}

// SwarmAction is one append-only remediation log entry on a ticket.
type SwarmAction struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Result    *string   `json:"result"`
}

// Ticket is the root persisted aggregate. The JSON tags double as the
// on-disk layout of the file-backed store.
type Ticket struct {
	ID             string          `json:"id"`
	Route          string          `json:"route"`
	F12Errors      string          `json:"f12Errors"`
	ServerErrors   string          `json:"serverErrors"`
	Description    string          `json:"description"`
	Status         TicketStatus    `json:"status"`
	Priority       *TicketPriority `json:"priority,omitempty"`
	Namespace      *string         `json:"namespace,omitempty"`
	RelatedTickets []string        `json:"relatedTickets"`
	SwarmActions   []SwarmAction   `json:"swarmActions"`
	Comments       []Comment       `json:"comments"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Stats aggregates ticket counts. Tickets without a priority appear in no
// priority bucket, so ByPriority sums to at most Total.
type Stats struct {
	Total      int                    `json:"total"`
	ByStatus   map[TicketStatus]int   `json:"byStatus"`
	ByPriority map[TicketPriority]int `json:"byPriority"`
}
