package models

import (
	"encoding/json"
	"time"
)

// FlowStatus carries the portal's workflow badge metadata for a ticket
type FlowStatus struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Background  string `json:"background"` // Badge background color
	Foreground  string `json:"foreground"` // Badge text color
}

// Ticket is the local mirror of one portal ticket.
// Identity is (OwnerID, TicketID); unique per owner.
type Ticket struct {
	OwnerID  string `json:"owner_id" badgerhold:"index"`
	TicketID string `json:"ticket_id"` // Stable numeric id from the portal, kept as string

	Number      string `json:"number"`
	Title       string `json:"title"`
	Priority    string `json:"priority"`  // Normalized label, e.g. "Alta"
	Situation   string `json:"situation"` // Normalized label, e.g. "Em Andamento"
	Status      string `json:"status"`    // Legacy field kept for scraped rows
	Kind        string `json:"kind"`
	SLA         string `json:"sla"`
	Requester   string `json:"requester"`
	Assignee    string `json:"assignee"`
	Service     string `json:"service"`
	CreatedDate string `json:"created_date"` // Portal-formatted, stored verbatim
	DueDate     string `json:"due_date"`
	Description string `json:"description"`
	Group       string `json:"group"`
	GroupID     int    `json:"group_id"`

	SituationCode int        `json:"situation_code"`
	FlowStatus    FlowStatus `json:"flow_status"`

	// Raw preserves the original portal payload for this ticket
	Raw json.RawMessage `json:"raw,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key returns the storage key for this ticket
func (t *Ticket) Key() string {
	return t.OwnerID + "/" + t.TicketID
}

// TicketKey builds a storage key from its parts
func TicketKey(ownerID, ticketID string) string {
	return ownerID + "/" + ticketID
}
