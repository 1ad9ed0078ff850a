package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-intake/internal/domain"
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, orgID, id string) (*domain.Ticket, error)
	// ListOpenForUser returns the reporter's open tickets ordered by updated_at DESC, id ASC.
	ListOpenForUser(ctx context.Context, orgID, userID string) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketKeyConstraint = "tickets_org_key_idx"

const ticketColumns = `id, ticket_key, organization_id, title, description, reporter_user_id,
               channel, status, priority, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, ticket_key, organization_id, title, description, reporter_user_id, channel, status, priority, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.Key,
		ticket.OrganizationID,
		ticket.Title,
		ticket.Description,
		ticket.ReporterID,
		ticket.Channel,
		ticket.Status,
		ticket.Priority,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	if isConstraintViolation(err, ticketKeyConstraint) {
		return ErrTicketKeyTaken
	}
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, orgID, id string) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE organization_id=$1 AND id=$2`
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, orgID, id), &ticket); err != nil {
		return nil, mapNoRows(err)
	}
	return &ticket, nil
}

func (r *ticketRepository) ListOpenForUser(ctx context.Context, orgID, userID string) ([]domain.Ticket, error) {
	closed := make([]string, 0, len(domain.ClosedTicketStatuses))
	for _, status := range domain.ClosedTicketStatuses {
		closed = append(closed, string(status))
	}
	const query = `SELECT ` + ticketColumns + `
             FROM tickets
             WHERE organization_id=$1 AND reporter_user_id=$2 AND NOT (status = ANY($3))
             ORDER BY updated_at DESC, id ASC`

	rows, err := r.pool.Query(ctx, query, orgID, userID, closed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTicket(row rowScanner, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.Key,
		&ticket.OrganizationID,
		&ticket.Title,
		&ticket.Description,
		&ticket.ReporterID,
		&ticket.Channel,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
