package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-intake/internal/domain"
)

// UserRepository defines persistence access for end-users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByChannelIdentity finds a user of the organization by normalized phone or email.
	GetByChannelIdentity(ctx context.Context, orgID string, kind domain.ChannelKind, identity string) (*domain.User, error)
	// CreateIfAbsent inserts the user unless its id exists, in which case ErrAlreadyExists is returned.
	CreateIfAbsent(ctx context.Context, user *domain.User) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, organization_id, name, COALESCE(phone, ''), COALESCE(email, ''), role, status, avatar_url, created_at, updated_at`

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *userRepository) GetByChannelIdentity(ctx context.Context, orgID string, kind domain.ChannelKind, identity string) (*domain.User, error) {
	var query string
	switch kind {
	case domain.ChannelWhatsApp:
		query = `SELECT ` + userColumns + ` FROM users WHERE organization_id=$1 AND phone=$2 ORDER BY created_at ASC, id ASC LIMIT 1`
	case domain.ChannelEmail:
		query = `SELECT ` + userColumns + ` FROM users WHERE organization_id=$1 AND lower(email)=$2 ORDER BY created_at ASC, id ASC LIMIT 1`
	default:
		return nil, ErrNotFound
	}
	return r.fetchSingle(ctx, query, orgID, identity)
}

func (r *userRepository) CreateIfAbsent(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, organization_id, name, phone, email, role, status, avatar_url, created_at, updated_at)
        VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, $10)
        ON CONFLICT (id) DO NOTHING`

	cmd, err := r.pool.Exec(ctx, query,
		user.ID,
		user.OrganizationID,
		user.Name,
		user.Phone,
		user.Email,
		user.Role,
		user.Status,
		user.AvatarURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var user domain.User
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&user.ID,
		&user.OrganizationID,
		&user.Name,
		&user.Phone,
		&user.Email,
		&user.Role,
		&user.Status,
		&user.AvatarURL,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, mapNoRows(err)
	}
	return &user, nil
}
