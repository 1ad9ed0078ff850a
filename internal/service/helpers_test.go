package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-intake/internal/domain"
	"github.com/spec-kit/helpdesk-intake/internal/events"
	"github.com/spec-kit/helpdesk-intake/internal/observability"
	"github.com/spec-kit/helpdesk-intake/internal/repository"
	"github.com/spec-kit/helpdesk-intake/internal/repository/memory"
)

var errStoreDown = errors.New("connection refused")

const (
	businessNumber = "+19999999999"
	customerNumber = "+10000000001"
	accountSID     = "AC42"
	supportAlias   = "help@acme.io"
	inboundToken   = "mail-token"
)

func testOrganization() domain.Organization {
	return domain.Organization{
		ID:     "org_42",
		Name:   "Acme",
		Status: domain.OrganizationStatusActive,
		WhatsApp: domain.WhatsAppSettings{
			AccountSID:     accountSID,
			AuthToken:      "auth-token",
			BusinessNumber: businessNumber,
		},
		Email: domain.EmailSettings{
			SupportAlias: supportAlias,
			InboundToken: inboundToken,
		},
	}
}

// stepClock returns strictly increasing timestamps.
type stepClock struct {
	mu   sync.Mutex
	next time.Time
}

func newStepClock() *stepClock {
	return &stepClock{next: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(time.Second)
	return now
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []domain.OutboundMessage
	err    error
	onSend func(domain.OutboundMessage)
}

func (f *fakeSender) SendMessage(ctx context.Context, org *domain.Organization, msg domain.OutboundMessage) error {
	if f.onSend != nil {
		f.onSend(msg)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) Sent() []domain.OutboundMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.OutboundMessage(nil), f.sent...)
}

type memoryGuard struct {
	mu     sync.Mutex
	claims map[string]bool
	err    error
}

func newMemoryGuard() *memoryGuard {
	return &memoryGuard{claims: make(map[string]bool)}
}

func (g *memoryGuard) Claim(ctx context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return false, g.err
	}
	if g.claims[key] {
		return false, nil
	}
	g.claims[key] = true
	return true, nil
}

func (g *memoryGuard) Release(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claims, key)
	return nil
}

func (g *memoryGuard) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.claims[key]
}

type queuedScheduler struct {
	tasks []func(ctx context.Context)
}

func (q *queuedScheduler) Dispatch(task func(ctx context.Context)) bool {
	q.tasks = append(q.tasks, task)
	return true
}

func (q *queuedScheduler) RunAll() {
	for _, task := range q.tasks {
		task(context.Background())
	}
	q.tasks = nil
}

type failingTickets struct {
	repository.TicketRepository
	createErr error
	listErr   error
}

func (f failingTickets) Create(ctx context.Context, ticket *domain.Ticket) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.TicketRepository.Create(ctx, ticket)
}

func (f failingTickets) ListOpenForUser(ctx context.Context, orgID, userID string) ([]domain.Ticket, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.TicketRepository.ListOpenForUser(ctx, orgID, userID)
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) handle(ctx context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordedEvents) Types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	store    *memory.Store
	sender   *fakeSender
	clock    *stepClock
	metrics  *observability.Metrics
	recorded *recordedEvents
	deps     IntakeDependencies
	svc      *IntakeService
}

// newHarness wires the intake service over an in-memory store holding org_42.
// configure may adjust dependencies before the service is built.
func newHarness(t *testing.T, configure ...func(*harness)) *harness {
	t.Helper()
	store := memory.NewStore()
	store.PutOrganization(testOrganization())

	h := &harness{
		store:    store,
		sender:   &fakeSender{},
		clock:    newStepClock(),
		metrics:  observability.NewMetrics(),
		recorded: &recordedEvents{},
	}

	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	dispatcher.Subscribe(events.EventTicketCreated, h.recorded.handle)
	dispatcher.Subscribe(events.EventConversationAppended, h.recorded.handle)

	var seq int
	var seqMu sync.Mutex
	h.deps = IntakeDependencies{
		Tenants: NewTenantResolver(store.Organizations()),
		Identities: NewIdentityResolver(IdentityDependencies{
			UserRepo:      store.Users(),
			AvatarBaseURL: "https://avatars.test/initials",
			Clock:         h.clock.Now,
			Metrics:       h.metrics,
		}),
		Threads:          NewThreadSelector(store.Tickets()),
		TicketRepo:       store.Tickets(),
		ConversationRepo: store.Conversations(),
		Sender:           h.sender,
		Dispatcher:       dispatcher,
		Logger:           zap.NewNop(),
		Metrics:          h.metrics,
		AckTimeout:       time.Second,
		Clock:            h.clock.Now,
		NewID: func() string {
			seqMu.Lock()
			defer seqMu.Unlock()
			seq++
			return fmt.Sprintf("id-%03d", seq)
		},
	}
	for _, fn := range configure {
		fn(h)
	}
	h.svc = NewIntakeService(h.deps)
	return h
}

func whatsappMessage(body string) domain.InboundMessage {
	return domain.InboundMessage{
		Channel:          domain.ChannelWhatsApp,
		BusinessIdentity: businessNumber,
		CustomerIdentity: customerNumber,
		CustomerName:     "Ana",
		Body:             body,
		Credential:       accountSID,
	}
}

func emailMessage(subject, body string) domain.InboundMessage {
	return domain.InboundMessage{
		Channel:          domain.ChannelEmail,
		BusinessIdentity: supportAlias,
		CustomerIdentity: "Ana@Example.com",
		CustomerName:     "Ana Silva",
		Subject:          subject,
		Body:             body,
		Credential:       inboundToken,
	}
}
