package domain

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChannelKind identifies an external messaging transport.
type ChannelKind string

const (
	ChannelWhatsApp ChannelKind = "whatsapp"
	ChannelEmail    ChannelKind = "email"
)

// Valid reports whether the kind is a supported channel.
func (k ChannelKind) Valid() bool {
	switch k {
	case ChannelWhatsApp, ChannelEmail:
		return true
	}
	return false
}

// DisplayName is used in generated ticket titles.
func (k ChannelKind) DisplayName() string {
	switch k {
	case ChannelWhatsApp:
		return "WhatsApp"
	case ChannelEmail:
		return "Email"
	}
	return string(k)
}

// ChannelIdentity is an address on a given channel.
type ChannelIdentity struct {
	Kind  ChannelKind
	Value string
}

// ErrInvalidIdentity is returned when an identity cannot be normalized.
var ErrInvalidIdentity = errors.New("invalid channel identity")

// NormalizeIdentity returns the canonical lookup form of a channel address.
func NormalizeIdentity(kind ChannelKind, raw string) (string, error) {
	switch kind {
	case ChannelWhatsApp:
		return normalizePhone(raw)
	case ChannelEmail:
		return normalizeEmail(raw)
	}
	return "", fmt.Errorf("%w: unsupported channel %q", ErrInvalidIdentity, kind)
}

// NewChannelIdentity builds a normalized ChannelIdentity from raw input.
func NewChannelIdentity(kind ChannelKind, raw string) (ChannelIdentity, error) {
	value, err := NormalizeIdentity(kind, raw)
	if err != nil {
		return ChannelIdentity{}, err
	}
	return ChannelIdentity{Kind: kind, Value: value}, nil
}

func normalizePhone(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if idx := strings.Index(value, ":"); idx >= 0 {
		value = value[idx+1:]
	}
	var b strings.Builder
	digits := 0
	for i, r := range value {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
		case r == '+' && i == 0:
		case r == ' ', r == '-', r == '.', r == '(', r == ')':
		default:
			return "", fmt.Errorf("%w: unexpected %q in phone number", ErrInvalidIdentity, r)
		}
	}
	if digits < 6 || digits > 15 {
		return "", fmt.Errorf("%w: phone number must have 6-15 digits", ErrInvalidIdentity)
	}
	return "+" + b.String(), nil
}

func normalizeEmail(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(strings.TrimPrefix(value, "mailto:"), "MAILTO:")
	if value == "" {
		return "", fmt.Errorf("%w: empty email address", ErrInvalidIdentity)
	}
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	return strings.ToLower(addr.Address), nil
}

// channelUserNamespace scopes channel-originated user ids.
var channelUserNamespace = uuid.MustParse("5b0e0c1e-7d4f-4c39-9a43-2f8e6f0d9a11")

// ChannelUserID derives the user id for a customer identity inside a tenant.
// value must already be normalized.
func ChannelUserID(orgID string, kind ChannelKind, value string) string {
	key := orgID + "|" + string(kind) + "|" + value
	return uuid.NewSHA1(channelUserNamespace, []byte(key)).String()
}

// InboundMessage is the normalized form of a provider delivery.
type InboundMessage struct {
	Channel          ChannelKind `validate:"required"`
	BusinessIdentity string      `validate:"required"`
	CustomerIdentity string      `validate:"required"`
	CustomerName     string
	Subject          string
	Body             string `validate:"required"`
	CorrelationID    string
	Credential       string
	ReceivedAt       time.Time
}

// OutboundMessage is an acknowledgment addressed back to a customer.
type OutboundMessage struct {
	Channel ChannelKind
	From    string
	To      string
	Subject string
	Body    string
}
