package dto

import (
	"github.com/spec-kit/helpdesk-intake/internal/service"
)

// IntakeResponse is returned to the provider for every accepted delivery.
type IntakeResponse struct {
	Status         service.IntakeOutcome `json:"status"`
	OrganizationID string                `json:"organization_id"`
	TicketID       string                `json:"ticket_id,omitempty"`
	TicketKey      string                `json:"ticket_key,omitempty"`
	EntryID        string                `json:"entry_id,omitempty"`
	Acknowledged   bool                  `json:"acknowledged"`
}

// NewIntakeResponse maps a pipeline result.
func NewIntakeResponse(result *service.IntakeResult) IntakeResponse {
	resp := IntakeResponse{
		Status:         result.Outcome,
		OrganizationID: result.OrganizationID,
		Acknowledged:   result.State == service.StateAcknowledged || result.AckQueued,
	}
	if result.Ticket != nil {
		resp.TicketID = result.Ticket.ID
		resp.TicketKey = result.Ticket.Key
	}
	if result.Entry != nil {
		resp.EntryID = result.Entry.ID
	}
	return resp
}
