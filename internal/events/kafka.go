package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-intake/internal/config"
	"github.com/spec-kit/helpdesk-intake/internal/observability"
)

// MessageWriter is the subset of kafka.Writer used by the sink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink forwards intake events to a topic keyed by organization.
type KafkaSink struct {
	writer  MessageWriter
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewKafkaWriter builds a writer for the configured brokers and topic.
func NewKafkaWriter(cfg config.KafkaConfig) (*kafka.Writer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka writer requires at least one broker")
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.IntakeTopic,
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}, nil
}

// NewKafkaSink wraps writer.
func NewKafkaSink(writer MessageWriter, logger *zap.Logger, metrics *observability.Metrics) *KafkaSink {
	return &KafkaSink{writer: writer, logger: logger, metrics: metrics}
}

// Register subscribes the sink to every intake event.
func (s *KafkaSink) Register(dispatcher Dispatcher) {
	dispatcher.Subscribe(EventTicketCreated, s.Handle)
	dispatcher.Subscribe(EventConversationAppended, s.Handle)
}

// Handle writes one event.
func (s *KafkaSink) Handle(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		s.metrics.RecordEventPublication(string(event.Type), "error")
		return fmt.Errorf("marshal event: %w", err)
	}
	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrganizationID),
		Value: payload,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		s.metrics.RecordEventPublication(string(event.Type), "error")
		return fmt.Errorf("write event: %w", err)
	}
	s.metrics.RecordEventPublication(string(event.Type), "ok")
	s.logger.Debug("event published",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID))
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
