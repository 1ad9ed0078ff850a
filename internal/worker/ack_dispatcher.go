package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AckDispatcher runs acknowledgment sends off the request path with bounded concurrency.
type AckDispatcher struct {
	sem     chan struct{}
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewAckDispatcher builds a dispatcher running at most workers tasks at once, each bounded by timeout.
func NewAckDispatcher(workers int, timeout time.Duration, logger *zap.Logger) *AckDispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &AckDispatcher{
		sem:     make(chan struct{}, workers),
		timeout: timeout,
		logger:  logger,
	}
}

// Dispatch schedules task and reports whether it was accepted.
// Tasks are refused once Wait has been called.
func (d *AckDispatcher) Dispatch(task func(ctx context.Context)) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.sem <- struct{}{}
		defer func() { <-d.sem }()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("acknowledgment task panicked", zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		task(ctx)
	}()
	return true
}

// Wait stops accepting tasks and blocks until in-flight tasks finish or ctx is done.
func (d *AckDispatcher) Wait(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
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
		d.logger.Warn("acknowledgments still in flight at shutdown")
		return ctx.Err()
	}
}
