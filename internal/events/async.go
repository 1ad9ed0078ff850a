package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-intake/internal/observability"
)

var (
	// ErrQueueFull is returned when an event is dropped because every worker is behind.
	ErrQueueFull = errors.New("event queue full")
	// ErrDispatcherClosed is returned by Publish after Close.
	ErrDispatcherClosed = errors.New("event dispatcher closed")
)

type queuedEvent struct {
	ctx   context.Context
	event Event
}

// AsyncDispatcher hands events to a bounded queue drained by background workers,
// so slow subscribers never hold up the publisher.
type AsyncDispatcher struct {
	inner   Dispatcher
	queue   chan queuedEvent
	timeout time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsyncDispatcher starts workers that deliver queued events through inner.
// Each delivery runs detached from the publisher's cancellation and is bounded by timeout.
func NewAsyncDispatcher(inner Dispatcher, workers, queueSize int, timeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) *AsyncDispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &AsyncDispatcher{
		inner:   inner,
		queue:   make(chan queuedEvent, queueSize),
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.run()
	}
	return d
}

// Publish enqueues event without waiting for subscribers.
func (d *AsyncDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		d.metrics.RecordEventPublication(string(event.Type), "dropped")
		d.logger.Warn("event dropped; queue full",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID))
		return ErrQueueFull
	}
}

// Subscribe registers handler on the underlying dispatcher.
func (d *AsyncDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.inner.Subscribe(eventType, handler)
}

// Close stops accepting events and waits for queued ones to be delivered or ctx to end.
func (d *AsyncDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *AsyncDispatcher) run() {
	defer d.wg.Done()
	for item := range d.queue {
		ctx, cancel := context.WithTimeout(item.ctx, d.timeout)
		_ = d.inner.Publish(ctx, item.event)
		cancel()
	}
}
