package service

import (
	"strings"
	"unicode/utf8"

	"github.com/spec-kit/helpdesk-intake/internal/domain"
)

// DefaultAckTemplate is used when neither the organization nor the deployment sets one.
const DefaultAckTemplate = "Hi {name}, we received your message. Ticket #{ticket} has been created and our team will reply shortly."

const (
	defaultAckSubject = "Your support request"
	maxTitleLength    = 120
	maxPreviewLength  = 140
)

// RenderAcknowledgment fills the {name}, {ticket} and {organization} placeholders.
func RenderAcknowledgment(template string, org *domain.Organization, user *domain.User, ticket *domain.Ticket) string {
	return strings.NewReplacer(
		"{name}", user.Name,
		"{ticket}", ticket.Key,
		"{organization}", org.Name,
	).Replace(template)
}

// acknowledgmentSubject answers an email thread, or opens one when the message had no subject.
func acknowledgmentSubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return defaultAckSubject
	}
	if len(subject) >= 3 && strings.EqualFold(subject[:3], "re:") {
		return subject
	}
	return "Re: " + subject
}

func ticketTitle(kind domain.ChannelKind, subject, customerName string) string {
	title := strings.TrimSpace(subject)
	if title == "" {
		title = kind.DisplayName() + " message from " + customerName
	}
	return truncateRunes(title, maxTitleLength)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
