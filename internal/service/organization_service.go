package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-intake/internal/domain"
	"github.com/spec-kit/helpdesk-intake/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-intake/pkg/util/errorutil"
)

// OrganizationService administers tenant channel settings.
type OrganizationService struct {
	orgs   repository.OrganizationRepository
	logger *zap.Logger
}

// NewOrganizationService constructs the service.
func NewOrganizationService(orgs repository.OrganizationRepository, logger *zap.Logger) *OrganizationService {
	return &OrganizationService{orgs: orgs, logger: logger}
}

// GetChannels returns the organization whose settings are being managed.
func (s *OrganizationService) GetChannels(ctx context.Context, id string) (*domain.Organization, error) {
	org, err := s.orgs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("organization", map[string]any{"id": id})
		}
		return nil, apperrors.NewInfrastructureError(err)
	}
	return org, nil
}

// UpdateChannels rotates credentials and channel identities.
// Identities are stored normalized; an empty identity detaches the channel.
func (s *OrganizationService) UpdateChannels(ctx context.Context, id string, update domain.ChannelSettingsUpdate) (*domain.Organization, error) {
	if err := normalizeSetting(domain.ChannelWhatsApp, update.WhatsAppBusinessNumber); err != nil {
		return nil, err
	}
	if err := normalizeSetting(domain.ChannelEmail, update.SupportEmailAlias); err != nil {
		return nil, err
	}

	org, err := s.orgs.UpdateChannelSettings(ctx, id, update)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.NewNotFound("organization", map[string]any{"id": id})
	case errors.Is(err, repository.ErrIdentityTaken):
		return nil, apperrors.NewConflict("channel identity already belongs to another organization", nil)
	default:
		return nil, apperrors.NewInfrastructureError(err)
	}

	s.logger.Info("organization channels updated", zap.String("org_id", id))
	return org, nil
}

func normalizeSetting(kind domain.ChannelKind, value *string) error {
	if value == nil || *value == "" {
		return nil
	}
	normalized, err := domain.NormalizeIdentity(kind, *value)
	if err != nil {
		return apperrors.NewValidationError("invalid channel identity", map[string]any{
			"channel": string(kind),
		})
	}
	*value = normalized
	return nil
}
