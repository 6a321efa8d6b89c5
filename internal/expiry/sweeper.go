package expiry

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Ledger is the slice of the consent service the sweeper drives.
type Ledger interface {
	MarkExpired(ctx context.Context, now time.Time, batch int) (int, error)
}

const (
	// DefaultInterval is how often the sweep runs.
	DefaultInterval = time.Hour
	// DefaultBatch bounds records materialized per sweep so one pass never
	// holds the store for long.
	DefaultBatch = 100
)

// Option configures the Sweeper.
type Option func(*Sweeper)

// WithInterval sets the sweep cadence.
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithBatch sets the per-sweep record cap.
func WithBatch(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.batch = n
		}
	}
}

// Sweeper periodically materializes lazy expiry: consents whose expires_at
// has passed but whose stored status still says granted get flipped, audited,
// and announced. Reads observe expiry without it; the sweep exists so stored
// state, metrics, and webhook consumers converge too.
type Sweeper struct {
	ledger   Ledger
	logger   *slog.Logger
	interval time.Duration
	batch    int

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func NewSweeper(ledger Ledger, logger *slog.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{
		ledger:   ledger,
		logger:   logger,
		interval: DefaultInterval,
		batch:    DefaultBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the background sweep loop. One sweep runs immediately so a
// restart catches up without waiting a full interval.
func (s *Sweeper) Start(ctx context.Context) {
	s.once.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)
		s.done = make(chan struct{})
		go s.run(ctx)
	})
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep drains expired records in batches until a pass comes back short.
func (s *Sweeper) sweep(ctx context.Context) {
	total := 0
	for {
		n, err := s.ledger.MarkExpired(ctx, time.Now(), s.batch)
		if err != nil {
			s.logger.ErrorContext(ctx, "expiry sweep failed", "error", err)
			return
		}
		total += n
		if n < s.batch {
			break
		}
		if ctx.Err() != nil {
			return
		}
	}
	if total > 0 {
		s.logger.InfoContext(ctx, "expiry sweep completed", "expired", total)
	}
}
