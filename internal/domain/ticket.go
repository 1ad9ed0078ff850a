package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "New"
	TicketStatusActive     TicketStatus = "Active"
	TicketStatusPending    TicketStatus = "Pending"
	TicketStatusOnHold     TicketStatus = "On Hold"
	TicketStatusClosed     TicketStatus = "Closed"
	TicketStatusTerminated TicketStatus = "Terminated"
)

// ClosedTicketStatuses is the closed/terminated set. Everything else is open.
var ClosedTicketStatuses = []TicketStatus{TicketStatusClosed, TicketStatusTerminated}

// IsOpen reports whether a ticket in this status can receive replies.
func (s TicketStatus) IsOpen() bool {
	for _, closed := range ClosedTicketStatuses {
		if s == closed {
			return false
		}
	}
	return true
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "Low"
	TicketPriorityMedium TicketPriority = "Medium"
	TicketPriorityHigh   TicketPriority = "High"
	TicketPriorityUrgent TicketPriority = "Urgent"
)

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID             string
	Key            string
	OrganizationID string
	Title          string
	Description    string
	ReporterID     string
	Channel        ChannelKind
	Status         TicketStatus
	Priority       TicketPriority
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
