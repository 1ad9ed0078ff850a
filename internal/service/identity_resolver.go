package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-intake/internal/domain"
	"github.com/spec-kit/helpdesk-intake/internal/observability"
	"github.com/spec-kit/helpdesk-intake/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-intake/pkg/util/errorutil"
)

// IdentityResolver finds or provisions the end-user behind a customer channel identity.
type IdentityResolver struct {
	users         repository.UserRepository
	avatarBaseURL string
	clock         func() time.Time
	logger        *zap.Logger
	metrics       *observability.Metrics
}

// IdentityDependencies bundles collaborators for the identity resolver.
type IdentityDependencies struct {
	UserRepo      repository.UserRepository
	AvatarBaseURL string
	Clock         func() time.Time
	Logger        *zap.Logger
	Metrics       *observability.Metrics
}

// NewIdentityResolver constructs the resolver.
func NewIdentityResolver(deps IdentityDependencies) *IdentityResolver {
	r := &IdentityResolver{
		users:         deps.UserRepo,
		avatarBaseURL: deps.AvatarBaseURL,
		clock:         deps.Clock,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
	}
	if r.clock == nil {
		r.clock = func() time.Time { return time.Now().UTC() }
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// ResolveOrCreate returns the user for customerIdentity inside org, creating a Client user on first contact.
// Repeated and concurrent calls for the same identity yield the same user.
func (r *IdentityResolver) ResolveOrCreate(ctx context.Context, org *domain.Organization, kind domain.ChannelKind, customerIdentity, nameHint string) (*domain.User, error) {
	value, err := domain.NormalizeIdentity(kind, customerIdentity)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid customer identity", map[string]any{
			"channel": string(kind),
		})
	}
	id := domain.ChannelUserID(org.ID, kind, value)

	user, err := r.users.GetByID(ctx, id)
	if err == nil {
		r.metrics.RecordUserResolution(string(kind), "existing")
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInfrastructureError(err)
	}

	user, err = r.users.GetByChannelIdentity(ctx, org.ID, kind, value)
	if err == nil {
		r.metrics.RecordUserResolution(string(kind), "existing")
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInfrastructureError(err)
	}

	candidate := r.newClientUser(id, org.ID, kind, value, nameHint)
	err = r.users.CreateIfAbsent(ctx, candidate)
	switch {
	case err == nil:
		r.metrics.RecordUserResolution(string(kind), "created")
		r.logger.Info("user created from channel contact",
			zap.String("org_id", org.ID),
			zap.String("user_id", candidate.ID),
			zap.String("channel", string(kind)))
		return candidate, nil
	case errors.Is(err, repository.ErrAlreadyExists):
		winner, err := r.users.GetByID(ctx, id)
		if err != nil {
			return nil, apperrors.NewInfrastructureError(err)
		}
		r.metrics.RecordUserResolution(string(kind), "race_lost")
		return winner, nil
	default:
		return nil, apperrors.NewInfrastructureError(err)
	}
}

func (r *IdentityResolver) newClientUser(id, orgID string, kind domain.ChannelKind, value, nameHint string) *domain.User {
	name := strings.TrimSpace(nameHint)
	if name == "" {
		name = value
	}
	now := r.clock()
	user := &domain.User{
		ID:             id,
		OrganizationID: orgID,
		Name:           name,
		Role:           domain.UserRoleClient,
		Status:         domain.UserStatusActive,
		AvatarURL:      r.avatarURL(name),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	switch kind {
	case domain.ChannelWhatsApp:
		user.Phone = value
	case domain.ChannelEmail:
		user.Email = value
	}
	return user
}

func (r *IdentityResolver) avatarURL(name string) string {
	if r.avatarBaseURL == "" {
		return ""
	}
	return r.avatarBaseURL + "?seed=" + url.QueryEscape(name)
}
