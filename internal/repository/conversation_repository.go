package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-intake/internal/domain"
)

// ConversationRepository manages ticket conversation entries.
type ConversationRepository interface {
	// Append stores the entry and moves the ticket's updated_at strictly forward.
	// It returns the ticket's new updated_at.
	Append(ctx context.Context, entry *domain.ConversationEntry) (updatedAt time.Time, err error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.ConversationEntry, error)
}

type conversationRepository struct {
	pool *pgxpool.Pool
}

// NewConversationRepository builds repository.
func NewConversationRepository(pool *pgxpool.Pool) ConversationRepository {
	return &conversationRepository{pool: pool}
}

func (r *conversationRepository) Append(ctx context.Context, entry *domain.ConversationEntry) (time.Time, error) {
	const bump = `
        UPDATE tickets SET updated_at = GREATEST($3::timestamptz, updated_at + interval '1 microsecond')
        WHERE organization_id=$1 AND id=$2
        RETURNING updated_at`
	const insert = `
        INSERT INTO conversations (id, ticket_id, organization_id, author_user_id, content, channel, external_id, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7, ''),$8)`

	var updatedAt time.Time
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, bump, entry.OrganizationID, entry.TicketID, entry.CreatedAt).Scan(&updatedAt); err != nil {
			return mapNoRows(err)
		}
		_, err := tx.Exec(ctx, insert,
			entry.ID,
			entry.TicketID,
			entry.OrganizationID,
			entry.AuthorID,
			entry.Content,
			entry.Channel,
			entry.ExternalID,
			entry.CreatedAt,
		)
		return err
	})
	return updatedAt, err
}

func (r *conversationRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.ConversationEntry, error) {
	const query = `
        SELECT id, ticket_id, organization_id, author_user_id, content, channel, COALESCE(external_id, ''), created_at
        FROM conversations WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ConversationEntry
	for rows.Next() {
		var entry domain.ConversationEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.OrganizationID,
			&entry.AuthorID,
			&entry.Content,
			&entry.Channel,
			&entry.ExternalID,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
