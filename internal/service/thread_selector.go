package service

import (
	"context"
	"sort"

	"github.com/spec-kit/helpdesk-intake/internal/domain"
	"github.com/spec-kit/helpdesk-intake/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-intake/pkg/util/errorutil"
)

// ThreadSelector picks the open ticket a follow-up message belongs to.
type ThreadSelector struct {
	tickets repository.TicketRepository
}

// NewThreadSelector constructs the selector.
func NewThreadSelector(tickets repository.TicketRepository) *ThreadSelector {
	return &ThreadSelector{tickets: tickets}
}

// FindActiveThread returns the user's most recently updated open ticket, or nil when there is none.
// Ties on updated_at go to the smallest id.
func (s *ThreadSelector) FindActiveThread(ctx context.Context, org *domain.Organization, user *domain.User) (*domain.Ticket, error) {
	tickets, err := s.tickets.ListOpenForUser(ctx, org.ID, user.ID)
	if err != nil {
		return nil, apperrors.NewInfrastructureError(err)
	}

	open := make([]domain.Ticket, 0, len(tickets))
	for _, ticket := range tickets {
		if ticket.Status.IsOpen() {
			open = append(open, ticket)
		}
	}
	if len(open) == 0 {
		return nil, nil
	}

	sort.SliceStable(open, func(i, j int) bool {
		if open[i].UpdatedAt.Equal(open[j].UpdatedAt) {
			return open[i].ID < open[j].ID
		}
		return open[i].UpdatedAt.After(open[j].UpdatedAt)
	})
	selected := open[0]
	return &selected, nil
}
