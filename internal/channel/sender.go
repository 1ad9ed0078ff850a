// Package channel holds the outbound side of the channel adapters.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-intake/internal/domain"
)

// ErrNoSender is returned when no sender is registered for a channel.
var ErrNoSender = errors.New("no sender registered for channel")

// Sender delivers an outbound message on behalf of a tenant.
type Sender interface {
	SendMessage(ctx context.Context, org *domain.Organization, msg domain.OutboundMessage) error
}

// Registry routes outbound messages to the sender of their channel.
type Registry struct {
	mu      sync.RWMutex
	senders map[domain.ChannelKind]Sender
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{senders: make(map[domain.ChannelKind]Sender)}
}

// Register binds sender to kind, replacing any previous binding.
func (r *Registry) Register(kind domain.ChannelKind, sender Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[kind] = sender
}

// SendMessage implements Sender.
func (r *Registry) SendMessage(ctx context.Context, org *domain.Organization, msg domain.OutboundMessage) error {
	r.mu.RLock()
	sender, ok := r.senders[msg.Channel]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSender, msg.Channel)
	}
	return sender.SendMessage(ctx, org, msg)
}

// LogSender writes outbound messages to the log instead of a provider.
// It stands in for a channel whose provider is not configured.
type LogSender struct {
	Logger *zap.Logger
}

// SendMessage implements Sender.
func (s LogSender) SendMessage(ctx context.Context, org *domain.Organization, msg domain.OutboundMessage) error {
	s.Logger.Info("outbound message not sent; provider not configured",
		zap.String("org_id", org.ID),
		zap.String("channel", string(msg.Channel)),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}
