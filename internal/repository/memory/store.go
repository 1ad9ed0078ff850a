// Package memory provides in-process implementations of the repository interfaces.
// It backs local development when no Postgres DSN is configured, and the test suites.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/helpdesk-intake/internal/domain"
	"github.com/spec-kit/helpdesk-intake/internal/repository"
)

// Store holds all records behind a single lock.
type Store struct {
	mu            sync.RWMutex
	organizations map[string]domain.Organization
	users         map[string]domain.User
	tickets       map[string]domain.Ticket
	conversations []domain.ConversationEntry
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		organizations: make(map[string]domain.Organization),
		users:         make(map[string]domain.User),
		tickets:       make(map[string]domain.Ticket),
	}
}

// PutOrganization inserts or replaces a tenant.
func (s *Store) PutOrganization(org domain.Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.organizations[org.ID] = org
}

// PutTicket inserts or replaces a ticket.
func (s *Store) PutTicket(ticket domain.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[ticket.ID] = ticket
}

// UsersSnapshot returns every user ordered by id.
func (s *Store) UsersSnapshot() []domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TicketsSnapshot returns every ticket ordered by creation.
func (s *Store) TicketsSnapshot() []domain.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ConversationsSnapshot returns every conversation entry in append order.
func (s *Store) ConversationsSnapshot() []domain.ConversationEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ConversationEntry(nil), s.conversations...)
}

// Organizations exposes the store as an OrganizationRepository.
func (s *Store) Organizations() repository.OrganizationRepository { return organizationRepo{s} }

// Users exposes the store as a UserRepository.
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

// Tickets exposes the store as a TicketRepository.
func (s *Store) Tickets() repository.TicketRepository { return ticketRepo{s} }

// Conversations exposes the store as a ConversationRepository.
func (s *Store) Conversations() repository.ConversationRepository { return conversationRepo{s} }

type organizationRepo struct{ s *Store }

func (r organizationRepo) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	org, ok := r.s.organizations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &org, nil
}

func (r organizationRepo) GetByChannelIdentity(ctx context.Context, kind domain.ChannelKind, identity string) (*domain.Organization, error) {
	if identity == "" {
		return nil, repository.ErrNotFound
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, org := range r.s.organizations {
		if org.BusinessIdentity(kind) == identity {
			found := org
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r organizationRepo) UpdateChannelSettings(ctx context.Context, id string, update domain.ChannelSettingsUpdate) (*domain.Organization, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	org, ok := r.s.organizations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	update.Apply(&org)
	for otherID, other := range r.s.organizations {
		if otherID == id {
			continue
		}
		for _, kind := range []domain.ChannelKind{domain.ChannelWhatsApp, domain.ChannelEmail} {
			value := org.BusinessIdentity(kind)
			if value != "" && value == other.BusinessIdentity(kind) {
				return nil, repository.ErrIdentityTaken
			}
		}
	}
	org.UpdatedAt = time.Now().UTC()
	r.s.organizations[id] = org
	return &org, nil
}

type userRepo struct{ s *Store }

func (r userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (r userRepo) GetByChannelIdentity(ctx context.Context, orgID string, kind domain.ChannelKind, identity string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var match *domain.User
	for _, user := range r.s.users {
		if user.OrganizationID != orgID {
			continue
		}
		var value string
		switch kind {
		case domain.ChannelWhatsApp:
			value = user.Phone
		case domain.ChannelEmail:
			value = strings.ToLower(user.Email)
		}
		if value == "" || value != identity {
			continue
		}
		candidate := user
		if match == nil || candidate.CreatedAt.Before(match.CreatedAt) ||
			(candidate.CreatedAt.Equal(match.CreatedAt) && candidate.ID < match.ID) {
			match = &candidate
		}
	}
	if match == nil {
		return nil, repository.ErrNotFound
	}
	return match, nil
}

func (r userRepo) CreateIfAbsent(ctx context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.users[user.ID]; exists {
		return repository.ErrAlreadyExists
	}
	r.s.users[user.ID] = *user
	return nil
}

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.tickets[ticket.ID]; exists {
		return repository.ErrAlreadyExists
	}
	for _, existing := range r.s.tickets {
		if existing.OrganizationID == ticket.OrganizationID && existing.Key == ticket.Key {
			return repository.ErrTicketKeyTaken
		}
	}
	r.s.tickets[ticket.ID] = *ticket
	return nil
}

func (r ticketRepo) GetByID(ctx context.Context, orgID, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ticket, ok := r.s.tickets[id]
	if !ok || ticket.OrganizationID != orgID {
		return nil, repository.ErrNotFound
	}
	return &ticket, nil
}

func (r ticketRepo) ListOpenForUser(ctx context.Context, orgID, userID string) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.Ticket
	for _, ticket := range r.s.tickets {
		if ticket.OrganizationID == orgID && ticket.ReporterID == userID && ticket.Status.IsOpen() {
			result = append(result, ticket)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

type conversationRepo struct{ s *Store }

func (r conversationRepo) Append(ctx context.Context, entry *domain.ConversationEntry) (time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ticket, ok := r.s.tickets[entry.TicketID]
	if !ok || ticket.OrganizationID != entry.OrganizationID {
		return time.Time{}, repository.ErrNotFound
	}
	next := entry.CreatedAt
	if !next.After(ticket.UpdatedAt) {
		next = ticket.UpdatedAt.Add(time.Microsecond)
	}
	ticket.UpdatedAt = next
	r.s.tickets[ticket.ID] = ticket
	r.s.conversations = append(r.s.conversations, *entry)
	return next, nil
}

func (r conversationRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.ConversationEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.ConversationEntry
	for _, entry := range r.s.conversations {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}
