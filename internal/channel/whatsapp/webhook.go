// Package whatsapp adapts a Twilio-style WhatsApp messaging provider.
package whatsapp

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/helpdesk-intake/internal/channel"
	"github.com/spec-kit/helpdesk-intake/internal/domain"
)

const addressScheme = "whatsapp:"

// WebhookPayload is the form-encoded body of an inbound message callback.
type WebhookPayload struct {
	From        string `form:"From" validate:"required"`
	To          string `form:"To" validate:"required"`
	Body        string `form:"Body" validate:"required"`
	ProfileName string `form:"ProfileName"`
	AccountSid  string `form:"AccountSid" validate:"required"`
	MessageSid  string `form:"MessageSid"`
}

// Inbound validates the payload and converts it to an InboundMessage.
// AccountSid is the credential; the tenant check compares it to the stored account.
func Inbound(validate *validator.Validate, payload WebhookPayload, receivedAt time.Time) (domain.InboundMessage, error) {
	payload.Body = strings.TrimSpace(payload.Body)
	if err := validate.Struct(payload); err != nil {
		return domain.InboundMessage{}, channel.ValidationError("invalid whatsapp webhook payload", err)
	}

	return domain.InboundMessage{
		Channel:          domain.ChannelWhatsApp,
		BusinessIdentity: stripScheme(payload.To),
		CustomerIdentity: stripScheme(payload.From),
		CustomerName:     strings.TrimSpace(payload.ProfileName),
		Body:             payload.Body,
		CorrelationID:    payload.MessageSid,
		Credential:       payload.AccountSid,
		ReceivedAt:       receivedAt.UTC(),
	}, nil
}

func stripScheme(address string) string {
	address = strings.TrimSpace(address)
	if len(address) >= len(addressScheme) && strings.EqualFold(address[:len(addressScheme)], addressScheme) {
		return address[len(addressScheme):]
	}
	return address
}

func withScheme(number string) string {
	return addressScheme + stripScheme(number)
}
