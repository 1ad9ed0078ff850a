package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-intake/internal/domain"
)

// OrganizationRepository resolves tenants and maintains their channel settings.
type OrganizationRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Organization, error)
	// GetByChannelIdentity returns the tenant owning a normalized business identity.
	GetByChannelIdentity(ctx context.Context, kind domain.ChannelKind, identity string) (*domain.Organization, error)
	UpdateChannelSettings(ctx context.Context, id string, update domain.ChannelSettingsUpdate) (*domain.Organization, error)
}

type organizationRepository struct {
	pool *pgxpool.Pool
}

// NewOrganizationRepository returns a Postgres-backed implementation.
func NewOrganizationRepository(pool *pgxpool.Pool) OrganizationRepository {
	return &organizationRepository{pool: pool}
}

const organizationColumns = `id, name, status,
               COALESCE(whatsapp_account_sid, ''), COALESCE(whatsapp_auth_token, ''), COALESCE(whatsapp_business_number, ''),
               COALESCE(support_email_alias, ''), COALESCE(email_inbound_token, ''), COALESCE(ack_template, ''),
               created_at, updated_at`

func (r *organizationRepository) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *organizationRepository) GetByChannelIdentity(ctx context.Context, kind domain.ChannelKind, identity string) (*domain.Organization, error) {
	var column string
	switch kind {
	case domain.ChannelWhatsApp:
		column = "whatsapp_business_number"
	case domain.ChannelEmail:
		column = "support_email_alias"
	default:
		return nil, ErrNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM organizations WHERE %s=$1`, organizationColumns, column)
	return r.fetchSingle(ctx, query, identity)
}

func (r *organizationRepository) UpdateChannelSettings(ctx context.Context, id string, update domain.ChannelSettingsUpdate) (*domain.Organization, error) {
	const query = `
        UPDATE organizations SET
            whatsapp_account_sid     = COALESCE($2, whatsapp_account_sid),
            whatsapp_auth_token      = COALESCE($3, whatsapp_auth_token),
            whatsapp_business_number = CASE WHEN $4::text IS NULL THEN whatsapp_business_number ELSE NULLIF($4, '') END,
            support_email_alias      = CASE WHEN $5::text IS NULL THEN support_email_alias ELSE NULLIF($5, '') END,
            email_inbound_token      = COALESCE($6, email_inbound_token),
            ack_template             = COALESCE($7, ack_template),
            updated_at               = NOW()
        WHERE id=$1
        RETURNING ` + organizationColumns

	org, err := scanOrganization(r.pool.QueryRow(ctx, query,
		id,
		update.WhatsAppAccountSID,
		update.WhatsAppAuthToken,
		update.WhatsAppBusinessNumber,
		update.SupportEmailAlias,
		update.EmailInboundToken,
		update.AckTemplate,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrIdentityTaken
		}
		return nil, mapNoRows(err)
	}
	return org, nil
}

func (r *organizationRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Organization, error) {
	org, err := scanOrganization(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return org, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrganization(row rowScanner) (*domain.Organization, error) {
	var org domain.Organization
	if err := row.Scan(
		&org.ID,
		&org.Name,
		&org.Status,
		&org.WhatsApp.AccountSID,
		&org.WhatsApp.AuthToken,
		&org.WhatsApp.BusinessNumber,
		&org.Email.SupportAlias,
		&org.Email.InboundToken,
		&org.AckTemplate,
		&org.CreatedAt,
		&org.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &org, nil
}
