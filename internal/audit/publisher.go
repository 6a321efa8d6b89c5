package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Publisher captures structured audit entries. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store   Store
	entries chan Entry
	wg      sync.WaitGroup
	logger  *slog.Logger
	async   bool
}

// PublisherOption configures the Publisher.
type PublisherOption func(*Publisher)

// WithAsyncBuffer enables async processing with the specified buffer size.
// Entries are queued and persisted in a background goroutine.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.entries = make(chan Entry, size)
			p.async = true
		}
	}
}

// WithPublisherLogger sets a logger for async error reporting.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.processEntries()
	}
	return p
}

// processEntries runs in a goroutine and persists entries from the channel.
func (p *Publisher) processEntries() {
	defer p.wg.Done()
	for entry := range p.entries {
		if err := p.store.Append(context.Background(), entry); err != nil {
			if p.logger != nil {
				p.logger.Error("failed to persist audit entry",
					"error", err,
					"action", entry.Action,
					"actor_id", entry.ActorID,
				)
			}
		}
	}
}

// Close shuts down the async publisher and waits for pending entries to drain.
func (p *Publisher) Close() {
	if p.async && p.entries != nil {
		close(p.entries)
		p.wg.Wait()
	}
}

func (p *Publisher) Emit(ctx context.Context, entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if p.async {
		// Non-blocking send; drop entry if buffer is full to avoid blocking hot path
		select {
		case p.entries <- entry:
			return nil
		default:
			if p.logger != nil {
				p.logger.Warn("audit buffer full, entry dropped",
					"action", entry.Action,
					"actor_id", entry.ActorID,
				)
			}
			return nil
		}
	}
	return p.store.Append(ctx, entry)
}

func (p *Publisher) ListByActor(ctx context.Context, actorID string) ([]Entry, error) {
	return p.store.ListByActor(ctx, actorID)
}

// ListByResource returns the audit trail of a single resource, oldest first.
// Callers are responsible for checking that the actor may see the resource.
func (p *Publisher) ListByResource(ctx context.Context, resourceType, resourceID string) ([]Entry, error) {
	return p.store.ListByResource(ctx, resourceType, resourceID)
}

// AnonymizeActor scrubs the actor reference from all of an actor's entries.
// Called when an account is erased; detail blobs are left intact.
func (p *Publisher) AnonymizeActor(ctx context.Context, actorID string) (int, error) {
	return p.store.AnonymizeActor(ctx, actorID)
}
