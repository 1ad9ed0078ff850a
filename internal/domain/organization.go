package domain

import "time"

// OrganizationStatus represents tenant lifecycle states.
type OrganizationStatus string

const (
	OrganizationStatusActive    OrganizationStatus = "active"
	OrganizationStatusSuspended OrganizationStatus = "suspended"
)

// WhatsAppSettings holds the messaging-provider account of a tenant.
type WhatsAppSettings struct {
	AccountSID     string
	AuthToken      string
	BusinessNumber string
}

// EmailSettings holds the inbound email configuration of a tenant.
type EmailSettings struct {
	SupportAlias string
	InboundToken string
}

// Organization is a tenant of the helpdesk.
type Organization struct {
	ID          string
	Name        string
	Status      OrganizationStatus
	WhatsApp    WhatsAppSettings
	Email       EmailSettings
	AckTemplate string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Active reports whether the tenant accepts inbound traffic.
func (o *Organization) Active() bool {
	return o.Status == "" || o.Status == OrganizationStatusActive
}

// BusinessIdentity returns the tenant-owned address for a channel.
func (o *Organization) BusinessIdentity(kind ChannelKind) string {
	switch kind {
	case ChannelWhatsApp:
		return o.WhatsApp.BusinessNumber
	case ChannelEmail:
		return o.Email.SupportAlias
	}
	return ""
}

// StoredCredential returns the credential a provider must present for a channel.
func (o *Organization) StoredCredential(kind ChannelKind) string {
	switch kind {
	case ChannelWhatsApp:
		return o.WhatsApp.AccountSID
	case ChannelEmail:
		return o.Email.InboundToken
	}
	return ""
}

// ChannelSettingsUpdate rotates channel credentials and identities. Nil fields are left untouched.
type ChannelSettingsUpdate struct {
	WhatsAppAccountSID     *string
	WhatsAppAuthToken      *string
	WhatsAppBusinessNumber *string
	SupportEmailAlias      *string
	EmailInboundToken      *string
	AckTemplate            *string
}

// Apply copies set fields onto the organization.
func (u ChannelSettingsUpdate) Apply(org *Organization) {
	if u.WhatsAppAccountSID != nil {
		org.WhatsApp.AccountSID = *u.WhatsAppAccountSID
	}
	if u.WhatsAppAuthToken != nil {
		org.WhatsApp.AuthToken = *u.WhatsAppAuthToken
	}
	if u.WhatsAppBusinessNumber != nil {
		org.WhatsApp.BusinessNumber = *u.WhatsAppBusinessNumber
	}
	if u.SupportEmailAlias != nil {
		org.Email.SupportAlias = *u.SupportEmailAlias
	}
	if u.EmailInboundToken != nil {
		org.Email.InboundToken = *u.EmailInboundToken
	}
	if u.AckTemplate != nil {
		org.AckTemplate = *u.AckTemplate
	}
}
