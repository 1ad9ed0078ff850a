package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-intake/internal/channel"
	"github.com/spec-kit/helpdesk-intake/internal/domain"
	"github.com/spec-kit/helpdesk-intake/internal/events"
	"github.com/spec-kit/helpdesk-intake/internal/observability"
	"github.com/spec-kit/helpdesk-intake/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-intake/pkg/util/errorutil"
)

const maxTicketKeyAttempts = 3

// IntakeOutcome is the routing decision reported to the provider.
type IntakeOutcome string

const (
	OutcomeNewTicket IntakeOutcome = "new_ticket"
	OutcomeAppended  IntakeOutcome = "appended"
	OutcomeDuplicate IntakeOutcome = "duplicate"
)

// IntakeState tracks how far a message got through the pipeline.
type IntakeState string

const (
	StateReceived         IntakeState = "received"
	StateTenantResolved   IntakeState = "tenant_resolved"
	StateIdentityResolved IntakeState = "identity_resolved"
	StateRouted           IntakeState = "routed"
	StateAcknowledged     IntakeState = "acknowledged"
	StateDuplicate        IntakeState = "duplicate"
)

// IntakeResult describes a processed message.
type IntakeResult struct {
	Outcome        IntakeOutcome
	State          IntakeState
	OrganizationID string
	User           *domain.User
	Ticket         *domain.Ticket
	Entry          *domain.ConversationEntry
	// AckQueued is set when the acknowledgment was handed to the background dispatcher.
	AckQueued bool
}

// DeliveryGuard claims provider correlation ids so a redelivered webhook is processed once.
type DeliveryGuard interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// AckScheduler runs acknowledgment sends in the background.
type AckScheduler interface {
	Dispatch(task func(ctx context.Context)) bool
}

// IntakeService turns inbound channel messages into tickets or conversation entries.
type IntakeService struct {
	tenants       *TenantResolver
	identities    *IdentityResolver
	threads       *ThreadSelector
	tickets       repository.TicketRepository
	conversations repository.ConversationRepository
	sender        channel.Sender
	guard         DeliveryGuard
	scheduler     AckScheduler
	dispatcher    events.Dispatcher
	validate      *validator.Validate
	logger        *zap.Logger
	metrics       *observability.Metrics
	tracer        trace.Tracer
	ackTimeout    time.Duration
	ackTemplate   string
	clock         func() time.Time
	newID         func() string
	newTicketKey  func() string
}

// IntakeDependencies bundles collaborators for the intake service.
type IntakeDependencies struct {
	Tenants          *TenantResolver
	Identities       *IdentityResolver
	Threads          *ThreadSelector
	TicketRepo       repository.TicketRepository
	ConversationRepo repository.ConversationRepository
	Sender           channel.Sender
	// Guard is optional; without it every delivery is processed.
	Guard DeliveryGuard
	// Scheduler is optional; without it acknowledgments are sent inline.
	Scheduler          AckScheduler
	Dispatcher         events.Dispatcher
	Validator          *validator.Validate
	Logger             *zap.Logger
	Metrics            *observability.Metrics
	AckTimeout         time.Duration
	DefaultAckTemplate string
	Clock              func() time.Time
	NewID              func() string
	NewTicketKey       func() string
}

// NewIntakeService constructs the service.
func NewIntakeService(deps IntakeDependencies) *IntakeService {
	s := &IntakeService{
		tenants:       deps.Tenants,
		identities:    deps.Identities,
		threads:       deps.Threads,
		tickets:       deps.TicketRepo,
		conversations: deps.ConversationRepo,
		sender:        deps.Sender,
		guard:         deps.Guard,
		scheduler:     deps.Scheduler,
		dispatcher:    deps.Dispatcher,
		validate:      deps.Validator,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		tracer:        otel.Tracer("helpdesk-intake/intake"),
		ackTimeout:    deps.AckTimeout,
		ackTemplate:   deps.DefaultAckTemplate,
		clock:         deps.Clock,
		newID:         deps.NewID,
		newTicketKey:  deps.NewTicketKey,
	}
	if s.validate == nil {
		s.validate = validator.New()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.ackTimeout <= 0 {
		s.ackTimeout = 10 * time.Second
	}
	if s.ackTemplate == "" {
		s.ackTemplate = DefaultAckTemplate
	}
	if s.clock == nil {
		s.clock = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.newTicketKey == nil {
		s.newTicketKey = generateTicketKey
	}
	return s
}

// Process runs one inbound message through the pipeline.
// Rejections are returned as DomainErrors; nothing is written for them.
func (s *IntakeService) Process(ctx context.Context, msg domain.InboundMessage) (*IntakeResult, error) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, "intake.process", trace.WithAttributes(
		attribute.String("intake.channel", string(msg.Channel)),
		attribute.String("intake.correlation_id", msg.CorrelationID),
	))
	defer span.End()

	result, err := s.process(ctx, span, msg)
	if err != nil {
		domainErr := apperrors.ToDomainError(err)
		s.metrics.RecordRejection(string(msg.Channel), domainErr.Code)
		span.RecordError(err)
		span.SetStatus(codes.Error, domainErr.Code)

		fields := []zap.Field{
			zap.String("channel", string(msg.Channel)),
			zap.String("correlation_id", msg.CorrelationID),
			zap.String("code", domainErr.Code),
			zap.String("reason", domainErr.Reason()),
			zap.Error(err),
		}
		if domainErr.HTTPStatus >= http.StatusInternalServerError {
			s.logger.Error("intake failed", fields...)
		} else {
			s.logger.Warn("intake rejected", fields...)
		}
		return nil, err
	}

	s.metrics.RecordIntake(string(msg.Channel), string(result.Outcome), time.Since(started))
	span.SetAttributes(
		attribute.String("intake.outcome", string(result.Outcome)),
		attribute.String("intake.org_id", result.OrganizationID),
	)

	fields := []zap.Field{
		zap.String("org_id", result.OrganizationID),
		zap.String("channel", string(msg.Channel)),
		zap.String("correlation_id", msg.CorrelationID),
		zap.String("outcome", string(result.Outcome)),
	}
	if result.Ticket != nil {
		fields = append(fields, zap.String("ticket_id", result.Ticket.ID))
	}
	s.logger.Info("intake processed", fields...)
	return result, nil
}

func (s *IntakeService) process(ctx context.Context, span trace.Span, msg domain.InboundMessage) (result *IntakeResult, err error) {
	msg.Body = strings.TrimSpace(msg.Body)
	if err := s.validateMessage(msg); err != nil {
		return nil, err
	}
	span.AddEvent(string(StateReceived))

	org, err := s.tenants.Resolve(ctx, msg.Channel, msg.BusinessIdentity)
	if err != nil {
		return nil, err
	}
	if err := s.tenants.Authorize(org, msg.Channel, msg.Credential); err != nil {
		return nil, err
	}
	span.AddEvent(string(StateTenantResolved))

	if key := deliveryKey(org.ID, msg); key != "" && s.guard != nil {
		claimed, claimErr := s.guard.Claim(ctx, key)
		switch {
		case claimErr != nil:
			s.logger.Warn("delivery guard unavailable; processing without dedupe",
				zap.String("org_id", org.ID),
				zap.Error(claimErr))
		case !claimed:
			return &IntakeResult{Outcome: OutcomeDuplicate, State: StateDuplicate, OrganizationID: org.ID}, nil
		default:
			defer func() {
				if err != nil {
					if releaseErr := s.guard.Release(context.WithoutCancel(ctx), key); releaseErr != nil {
						s.logger.Warn("release delivery claim", zap.String("key", key), zap.Error(releaseErr))
					}
				}
			}()
		}
	}

	user, err := s.identities.ResolveOrCreate(ctx, org, msg.Channel, msg.CustomerIdentity, msg.CustomerName)
	if err != nil {
		return nil, err
	}
	if user.Status == domain.UserStatusDisabled {
		s.logger.Warn("message from disabled user recorded",
			zap.String("org_id", org.ID),
			zap.String("user_id", user.ID))
	}
	span.AddEvent(string(StateIdentityResolved))

	ticket, err := s.threads.FindActiveThread(ctx, org, user)
	if err != nil {
		return nil, err
	}

	result = &IntakeResult{OrganizationID: org.ID, User: user}
	if ticket != nil {
		entry, err := s.appendToThread(ctx, org, user, ticket, msg)
		if err != nil {
			return nil, err
		}
		result.Outcome = OutcomeAppended
		result.State = StateRouted
		result.Ticket = ticket
		result.Entry = entry
		span.AddEvent(string(StateRouted), trace.WithAttributes(attribute.String("intake.ticket_id", ticket.ID)))
		return result, nil
	}

	ticket, err = s.openTicket(ctx, org, user, msg)
	if err != nil {
		return nil, err
	}
	result.Outcome = OutcomeNewTicket
	result.State = StateRouted
	result.Ticket = ticket
	span.AddEvent(string(StateRouted), trace.WithAttributes(attribute.String("intake.ticket_id", ticket.ID)))

	outbound := s.acknowledgment(org, user, ticket, msg)
	if s.scheduler != nil && s.scheduler.Dispatch(func(ctx context.Context) {
		s.sendAcknowledgment(ctx, org, ticket, outbound)
	}) {
		result.AckQueued = true
		return result, nil
	}

	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.ackTimeout)
	defer cancel()
	if s.sendAcknowledgment(ackCtx, org, ticket, outbound) {
		result.State = StateAcknowledged
		span.AddEvent(string(StateAcknowledged))
	}
	return result, nil
}

func (s *IntakeService) validateMessage(msg domain.InboundMessage) error {
	if err := s.validate.Struct(msg); err != nil {
		return channel.ValidationError("inbound message is incomplete", err)
	}
	if !msg.Channel.Valid() {
		return apperrors.NewValidationError("unsupported channel", map[string]any{"channel": string(msg.Channel)})
	}
	return nil
}

func deliveryKey(orgID string, msg domain.InboundMessage) string {
	if msg.CorrelationID == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s:%s", orgID, msg.Channel, msg.CorrelationID)
}

func (s *IntakeService) appendToThread(ctx context.Context, org *domain.Organization, user *domain.User, ticket *domain.Ticket, msg domain.InboundMessage) (*domain.ConversationEntry, error) {
	entry := &domain.ConversationEntry{
		ID:             s.newID(),
		TicketID:       ticket.ID,
		OrganizationID: org.ID,
		AuthorID:       user.ID,
		Content:        msg.Body,
		Channel:        msg.Channel,
		ExternalID:     msg.CorrelationID,
		CreatedAt:      s.clock(),
	}
	updatedAt, err := s.conversations.Append(ctx, entry)
	if err != nil {
		return nil, apperrors.NewInfrastructureError(err)
	}
	ticket.UpdatedAt = updatedAt

	s.publishEvent(ctx, events.Event{
		Type:           events.EventConversationAppended,
		OrganizationID: org.ID,
		TicketID:       ticket.ID,
		Channel:        msg.Channel,
		Payload: events.ConversationAppendedPayload{
			EntryID:       entry.ID,
			AuthorID:      user.ID,
			BodyPreview:   truncateRunes(entry.Content, maxPreviewLength),
			CorrelationID: msg.CorrelationID,
		},
	})
	return entry, nil
}

func (s *IntakeService) openTicket(ctx context.Context, org *domain.Organization, user *domain.User, msg domain.InboundMessage) (*domain.Ticket, error) {
	now := s.clock()
	ticket := &domain.Ticket{
		ID:             s.newID(),
		Key:            s.newTicketKey(),
		OrganizationID: org.ID,
		Title:          ticketTitle(msg.Channel, msg.Subject, user.Name),
		Description:    msg.Body,
		ReporterID:     user.ID,
		Channel:        msg.Channel,
		Status:         domain.TicketStatusNew,
		Priority:       domain.TicketPriorityMedium,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := s.tickets.Create(ctx, ticket)
	for attempt := 1; errors.Is(err, repository.ErrTicketKeyTaken) && attempt < maxTicketKeyAttempts; attempt++ {
		s.logger.Warn("ticket key collision; regenerating",
			zap.String("org_id", org.ID),
			zap.String("ticket_key", ticket.Key))
		ticket.Key = s.newTicketKey()
		err = s.tickets.Create(ctx, ticket)
	}
	if err != nil {
		return nil, apperrors.NewInfrastructureError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:           events.EventTicketCreated,
		OrganizationID: org.ID,
		TicketID:       ticket.ID,
		Channel:        msg.Channel,
		Payload: events.TicketCreatedPayload{
			TicketKey:     ticket.Key,
			ReporterID:    user.ID,
			Title:         ticket.Title,
			Priority:      ticket.Priority,
			CorrelationID: msg.CorrelationID,
		},
	})
	return ticket, nil
}

func (s *IntakeService) acknowledgment(org *domain.Organization, user *domain.User, ticket *domain.Ticket, msg domain.InboundMessage) domain.OutboundMessage {
	template := org.AckTemplate
	if strings.TrimSpace(template) == "" {
		template = s.ackTemplate
	}
	to, err := domain.NormalizeIdentity(msg.Channel, msg.CustomerIdentity)
	if err != nil {
		to = msg.CustomerIdentity
	}
	out := domain.OutboundMessage{
		Channel: msg.Channel,
		From:    org.BusinessIdentity(msg.Channel),
		To:      to,
		Body:    RenderAcknowledgment(template, org, user, ticket),
	}
	if msg.Channel == domain.ChannelEmail {
		out.Subject = acknowledgmentSubject(msg.Subject)
	}
	return out
}

// sendAcknowledgment reports whether the provider accepted the message. Failures are logged, never returned.
func (s *IntakeService) sendAcknowledgment(ctx context.Context, org *domain.Organization, ticket *domain.Ticket, out domain.OutboundMessage) bool {
	ctx, span := s.tracer.Start(ctx, "intake.acknowledge", trace.WithAttributes(
		attribute.String("intake.channel", string(out.Channel)),
		attribute.String("intake.ticket_id", ticket.ID),
	))
	defer span.End()

	if err := s.sender.SendMessage(ctx, org, out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "acknowledgment failed")
		s.metrics.RecordAcknowledgment(string(out.Channel), "failed")
		s.logger.Warn("acknowledgment not delivered",
			zap.String("org_id", org.ID),
			zap.String("ticket_id", ticket.ID),
			zap.String("channel", string(out.Channel)),
			zap.Error(err))
		return false
	}
	s.metrics.RecordAcknowledgment(string(out.Channel), "sent")
	return true
}

func (s *IntakeService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

// generateTicketKey returns "TCK-" and 12 hex digits; keys are unique per organization.
func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}
