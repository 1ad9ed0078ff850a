package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-intake/internal/domain"
)

// WhatsAppSettingsRequest rotates the messaging provider account.
type WhatsAppSettingsRequest struct {
	AccountSID     *string `json:"account_sid" validate:"omitempty,max=64"`
	AuthToken      *string `json:"auth_token" validate:"omitempty,max=128"`
	BusinessNumber *string `json:"business_number" validate:"omitempty,max=32"`
}

// EmailSettingsRequest rotates the inbound email configuration.
type EmailSettingsRequest struct {
	SupportAlias *string `json:"support_alias" validate:"omitempty,max=254"`
	InboundToken *string `json:"inbound_token" validate:"omitempty,min=16,max=128"`
}

// ChannelSettingsRequest payload for PUT /admin/organizations/:id/channels.
type ChannelSettingsRequest struct {
	WhatsApp    *WhatsAppSettingsRequest `json:"whatsapp"`
	Email       *EmailSettingsRequest    `json:"email"`
	AckTemplate *string                  `json:"ack_template" validate:"omitempty,max=1000"`
}

// ToUpdate converts the request into a partial update.
func (r ChannelSettingsRequest) ToUpdate() domain.ChannelSettingsUpdate {
	update := domain.ChannelSettingsUpdate{AckTemplate: r.AckTemplate}
	if r.WhatsApp != nil {
		update.WhatsAppAccountSID = r.WhatsApp.AccountSID
		update.WhatsAppAuthToken = r.WhatsApp.AuthToken
		update.WhatsAppBusinessNumber = r.WhatsApp.BusinessNumber
	}
	if r.Email != nil {
		update.SupportEmailAlias = r.Email.SupportAlias
		update.EmailInboundToken = r.Email.InboundToken
	}
	return update
}

// ChannelSettingsResponse shows channel settings with secrets reduced to a presence flag.
type ChannelSettingsResponse struct {
	OrganizationID string                   `json:"organization_id"`
	Name           string                   `json:"name"`
	Status         string                   `json:"status"`
	WhatsApp       WhatsAppSettingsResponse `json:"whatsapp"`
	Email          EmailSettingsResponse    `json:"email"`
	AckTemplate    string                   `json:"ack_template,omitempty"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

// WhatsAppSettingsResponse view.
type WhatsAppSettingsResponse struct {
	AccountSID     string `json:"account_sid,omitempty"`
	AuthTokenSet   bool   `json:"auth_token_set"`
	BusinessNumber string `json:"business_number,omitempty"`
}

// EmailSettingsResponse view.
type EmailSettingsResponse struct {
	SupportAlias    string `json:"support_alias,omitempty"`
	InboundTokenSet bool   `json:"inbound_token_set"`
}

// NewChannelSettingsResponse maps an organization.
func NewChannelSettingsResponse(org *domain.Organization) ChannelSettingsResponse {
	return ChannelSettingsResponse{
		OrganizationID: org.ID,
		Name:           org.Name,
		Status:         string(org.Status),
		WhatsApp: WhatsAppSettingsResponse{
			AccountSID:     org.WhatsApp.AccountSID,
			AuthTokenSet:   org.WhatsApp.AuthToken != "",
			BusinessNumber: org.WhatsApp.BusinessNumber,
		},
		Email: EmailSettingsResponse{
			SupportAlias:    org.Email.SupportAlias,
			InboundTokenSet: org.Email.InboundToken != "",
		},
		AckTemplate: org.AckTemplate,
		UpdatedAt:   org.UpdatedAt,
	}
}
