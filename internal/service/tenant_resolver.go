package service

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/spec-kit/helpdesk-intake/internal/domain"
	"github.com/spec-kit/helpdesk-intake/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-intake/pkg/util/errorutil"
)

// TenantResolver maps the business identity a message was sent to onto the owning organization.
type TenantResolver struct {
	orgs repository.OrganizationRepository
}

// NewTenantResolver constructs the resolver.
func NewTenantResolver(orgs repository.OrganizationRepository) *TenantResolver {
	return &TenantResolver{orgs: orgs}
}

// Resolve returns the active organization owning businessIdentity on the given channel.
func (r *TenantResolver) Resolve(ctx context.Context, kind domain.ChannelKind, businessIdentity string) (*domain.Organization, error) {
	value, err := domain.NormalizeIdentity(kind, businessIdentity)
	if err != nil {
		return nil, apperrors.NewConfigurationError("destination is not a valid channel identity", map[string]any{
			"channel": string(kind),
		})
	}

	org, err := r.orgs.GetByChannelIdentity(ctx, kind, value)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewConfigurationError("no organization owns this destination", map[string]any{
				"channel":  string(kind),
				"identity": value,
			})
		}
		return nil, apperrors.NewInfrastructureError(err)
	}

	if !org.Active() {
		return nil, apperrors.NewConfigurationError("organization is not accepting messages", map[string]any{
			"channel": string(kind),
			"status":  string(org.Status),
		})
	}
	return org, nil
}

// ValidateCredential compares the presented provider credential with the one stored for the channel.
// An organization without a stored credential accepts nothing.
func (r *TenantResolver) ValidateCredential(org *domain.Organization, kind domain.ChannelKind, presented string) bool {
	stored := org.StoredCredential(kind)
	if stored == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}

// Authorize returns an authorization error when the credential does not match.
func (r *TenantResolver) Authorize(org *domain.Organization, kind domain.ChannelKind, presented string) error {
	if !r.ValidateCredential(org, kind, presented) {
		return apperrors.NewAuthorizationError("provider credential does not match organization")
	}
	return nil
}
