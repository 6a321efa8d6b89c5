package queue

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"consentd/internal/webhook/metrics"
	"consentd/internal/webhook/models"
)

// Dispatcher consumes events pulled off the queue.
type Dispatcher interface {
	Dispatch(ctx context.Context, event models.Event)
}

const (
	defaultSize    = 256
	defaultWorkers = 4
)

// Option configures the Queue.
type Option func(*Queue)

// WithSize sets the buffer capacity.
func WithSize(size int) Option {
	return func(q *Queue) {
		if size > 0 {
			q.size = size
		}
	}
}

// WithWorkers sets the number of concurrent dispatch workers.
func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithMetrics sets the metrics instance for the queue.
func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) {
		q.metrics = m
	}
}

// Queue decouples consent state transitions from webhook delivery. Producers
// enqueue without blocking; a pool of workers drains the buffer into the
// dispatcher. When the buffer is full events are dropped, not queued
// unboundedly: delivery is best effort and the ledger is the source of truth.
type Queue struct {
	dispatcher Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	size       int
	workers    int

	events    chan models.Event
	group     errgroup.Group
	startOnce sync.Once
	closeOnce sync.Once
}

func New(dispatcher Dispatcher, logger *slog.Logger, opts ...Option) *Queue {
	q := &Queue{
		dispatcher: dispatcher,
		logger:     logger,
		size:       defaultSize,
		workers:    defaultWorkers,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan models.Event, q.size)
	return q
}

// Start launches the worker pool. Workers run until the queue is closed; ctx
// bounds in-flight deliveries, not the queue's lifetime.
func (q *Queue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.group.Go(func() error {
				for event := range q.events {
					q.dispatcher.Dispatch(ctx, event)
					q.observeDepth()
				}
				return nil
			})
		}
	})
}

// Enqueue offers an event to the buffer without blocking. Returns false when
// the buffer is full and the event was dropped.
func (q *Queue) Enqueue(event models.Event) bool {
	select {
	case q.events <- event:
		q.observeDepth()
		return true
	default:
		if q.metrics != nil {
			q.metrics.IncrementDroppedEvents()
		}
		if q.logger != nil {
			q.logger.Warn("webhook queue full, event dropped",
				"event_type", event.Type,
				"fiduciary_id", event.FiduciaryID,
			)
		}
		return false
	}
}

// Close stops accepting events and waits for the workers to drain the buffer.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.events)
		_ = q.group.Wait()
	})
}

func (q *Queue) observeDepth() {
	if q.metrics != nil {
		q.metrics.SetQueueDepth(float64(len(q.events)))
	}
}
