package domain

import "time"

// ConversationEntry is one message in a ticket's history.
type ConversationEntry struct {
	ID             string
	TicketID       string
	OrganizationID string
	AuthorID       string
	Content        string
	Channel        ChannelKind
	ExternalID     string
	CreatedAt      time.Time
}
