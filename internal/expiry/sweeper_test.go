package expiry

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	mu      sync.Mutex
	batches []int // result per call, consumed in order
	calls   int
	sizes   []int
}

func (l *fakeLedger) MarkExpired(_ context.Context, _ time.Time, batch int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	l.sizes = append(l.sizes, batch)
	if len(l.batches) == 0 {
		return 0, nil
	}
	n := l.batches[0]
	l.batches = l.batches[1:]
	return n, nil
}

func (l *fakeLedger) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweeperRunsImmediatelyOnStart(t *testing.T) {
	ledger := &fakeLedger{}
	s := NewSweeper(ledger, testLogger(), WithInterval(time.Hour), WithBatch(25))

	s.Start(context.Background())
	require.Eventually(t, func() bool { return ledger.callCount() >= 1 }, time.Second, time.Millisecond)
	s.Stop()

	assert.Equal(t, 25, ledger.sizes[0])
}

func TestSweeperDrainsFullBatches(t *testing.T) {
	// Two full batches then a short one: the sweep must keep going until
	// the store comes back short.
	ledger := &fakeLedger{batches: []int{10, 10, 3}}
	s := NewSweeper(ledger, testLogger(), WithInterval(time.Hour), WithBatch(10))

	s.Start(context.Background())
	require.Eventually(t, func() bool { return ledger.callCount() >= 3 }, time.Second, time.Millisecond)
	s.Stop()

	assert.Equal(t, 3, ledger.callCount())
}

func TestSweeperTicks(t *testing.T) {
	ledger := &fakeLedger{}
	s := NewSweeper(ledger, testLogger(), WithInterval(5*time.Millisecond))

	s.Start(context.Background())
	require.Eventually(t, func() bool { return ledger.callCount() >= 3 }, time.Second, time.Millisecond)
	s.Stop()
}

func TestSweeperStopWithoutStart(t *testing.T) {
	s := NewSweeper(&fakeLedger{}, testLogger())
	s.Stop() // must not block or panic
}
