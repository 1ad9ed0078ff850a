package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-intake/internal/events"
)

// NotificationService tells staff whether intake opened a ticket or added to one.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventConversationAppended, n.handleConversationAppended)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("staff notification: new ticket",
		zap.String("org_id", event.OrganizationID),
		zap.String("ticket_id", event.TicketID),
		zap.String("channel", string(event.Channel)),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleConversationAppended(ctx context.Context, event events.Event) error {
	n.logger.Info("staff notification: customer replied",
		zap.String("org_id", event.OrganizationID),
		zap.String("ticket_id", event.TicketID),
		zap.String("channel", string(event.Channel)),
		zap.Any("payload", event.Payload))
	return nil
}
