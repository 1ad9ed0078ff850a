package events

import (
	"time"

	"github.com/spec-kit/helpdesk-intake/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated        EventType = "ticket_created"
	EventConversationAppended EventType = "conversation_appended"
)

// Event represents a domain event emitted by the intake pipeline.
type Event struct {
	ID             string             `json:"id"`
	Type           EventType          `json:"type"`
	OrganizationID string             `json:"organization_id"`
	TicketID       string             `json:"ticket_id"`
	Channel        domain.ChannelKind `json:"channel"`
	Timestamp      time.Time          `json:"timestamp"`
	Payload        interface{}        `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketKey     string                `json:"ticket_key"`
	ReporterID    string                `json:"reporter_id"`
	Title         string                `json:"title"`
	Priority      domain.TicketPriority `json:"priority"`
	CorrelationID string                `json:"correlation_id,omitempty"`
}

// ConversationAppendedPayload payload.
type ConversationAppendedPayload struct {
	EntryID       string `json:"entry_id"`
	AuthorID      string `json:"author_id"`
	BodyPreview   string `json:"body_preview"`
	CorrelationID string `json:"correlation_id,omitempty"`
}
