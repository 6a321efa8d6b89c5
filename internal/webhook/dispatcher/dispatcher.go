package dispatcher

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"consentd/internal/webhook/metrics"
	"consentd/internal/webhook/models"
	"consentd/internal/webhook/store"
)

// Delivery headers. The signature covers the raw request body, so receivers
// must verify against the bytes as received, before any JSON re-encoding.
const (
	HeaderSignature  = "X-Signature"
	HeaderEvent      = "X-Event"
	HeaderTimestamp  = "X-Timestamp"
	HeaderDeliveryID = "X-Delivery-ID"
)

const (
	// DefaultTimeout bounds a single delivery attempt end to end.
	DefaultTimeout = 10 * time.Second

	maxResponseBodyLen = 1000
	maxErrorLen        = 500
)

// payload is the wire envelope. Field order is fixed so the signed bytes are
// reproducible.
type payload struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// PostResult is the endpoint's response to a single attempt.
type PostResult struct {
	StatusCode int
	Body       string
}

// Poster performs the HTTP POST for one delivery attempt. Swappable so tests
// can exercise retry behavior without a listener.
type Poster interface {
	Post(ctx context.Context, url string, body []byte, header http.Header) (*PostResult, error)
}

// HTTPPoster delivers over net/http.
type HTTPPoster struct {
	client *http.Client
}

func NewHTTPPoster(timeout time.Duration) *HTTPPoster {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPPoster{client: &http.Client{Timeout: timeout}}
}

func (p *HTTPPoster) Post(ctx context.Context, url string, body []byte, header http.Header) (*PostResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build webhook request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Read a bounded prefix; endpoint responses are recorded for operators
	// debugging failed deliveries, not consumed.
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyLen+1))
	return &PostResult{StatusCode: resp.StatusCode, Body: string(b)}, nil
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithBackoff sets the gaps between retry attempts. Total attempts per
// registration is len(gaps)+1.
func WithBackoff(gaps []time.Duration) Option {
	return func(d *Dispatcher) {
		if len(gaps) > 0 {
			d.backoff = gaps
		}
	}
}

// WithMetrics sets the metrics instance for the dispatcher.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// Dispatcher fans events out to matching registrations, signing each request
// with the registration's secret and recording every attempt. Delivery is at
// least once from the receiver's point of view; the delivery ID is stable
// across retries so receivers can deduplicate.
type Dispatcher struct {
	registrations store.RegistrationStore
	deliveries    store.DeliveryLog
	poster        Poster
	logger        *slog.Logger
	metrics       *metrics.Metrics
	backoff       []time.Duration
	now           func() time.Time
}

func New(registrations store.RegistrationStore, deliveries store.DeliveryLog, poster Poster, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registrations: registrations,
		deliveries:    deliveries,
		poster:        poster,
		logger:        logger,
		backoff:       []time.Duration{1 * time.Second, 5 * time.Second},
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch delivers one event to every active registration of the event's
// fiduciary whose subscription matches. Failures are recorded and logged,
// never returned: by the time an event reaches the dispatcher the state
// change it describes has already happened.
func (d *Dispatcher) Dispatch(ctx context.Context, event models.Event) {
	if !event.Type.IsDeliverable() {
		return
	}
	regs, err := d.registrations.ListActive(ctx)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to load webhook registrations",
			"event_type", event.Type,
			"error", err,
		)
		return
	}
	for _, reg := range regs {
		if reg.FiduciaryID != event.FiduciaryID || !reg.Matches(event.Type) {
			continue
		}
		d.deliver(ctx, reg, event)
	}
}

// Test sends a single synchronous test delivery to the registration, with no
// retries, and returns the recorded attempt.
func (d *Dispatcher) Test(ctx context.Context, reg *models.Registration) (*models.DeliveryAttempt, error) {
	event := models.Event{
		Type:        models.EventTest,
		FiduciaryID: reg.FiduciaryID,
		Timestamp:   d.now(),
		Data: map[string]any{
			"test":            true,
			"registration_id": reg.ID.String(),
			"name":            reg.Name,
		},
	}
	body, header, err := d.signedRequest(reg, event, uuid.New())
	if err != nil {
		return nil, err
	}
	attempt := d.attempt(ctx, reg, event, body, header, 1)
	if err := d.deliveries.Append(ctx, attempt); err != nil {
		d.logger.ErrorContext(ctx, "failed to record test delivery", "error", err)
	}
	return attempt, nil
}

// deliver runs the retry chain for a single registration. The chain shares
// one delivery ID and signed body; only the attempt number varies.
func (d *Dispatcher) deliver(ctx context.Context, reg *models.Registration, event models.Event) {
	body, header, err := d.signedRequest(reg, event, uuid.New())
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to build webhook request",
			"registration_id", reg.ID,
			"error", err,
		)
		return
	}

	maxAttempts := len(d.backoff) + 1
	for n := 1; n <= maxAttempts; n++ {
		attempt := d.attempt(ctx, reg, event, body, header, n)
		if err := d.deliveries.Append(ctx, attempt); err != nil {
			d.logger.ErrorContext(ctx, "failed to record delivery attempt",
				"registration_id", reg.ID,
				"error", err,
			)
		}
		if attempt.Status == models.AttemptSuccess {
			return
		}
		d.logger.WarnContext(ctx, "webhook delivery attempt failed",
			"registration_id", reg.ID,
			"event_type", event.Type,
			"attempt", n,
			"error", attempt.Error,
		)
		if n == maxAttempts {
			return
		}
		if d.metrics != nil {
			d.metrics.IncrementRetries()
		}
		if !sleep(ctx, d.backoff[n-1]) {
			return
		}
	}
}

// attempt performs one POST and classifies the outcome. Any 2xx is success.
func (d *Dispatcher) attempt(ctx context.Context, reg *models.Registration, event models.Event, body []byte, header http.Header, n int) *models.DeliveryAttempt {
	attempt := &models.DeliveryAttempt{
		ID:             uuid.New(),
		RegistrationID: reg.ID,
		DeliveryID:     deliveryIDFromHeader(header),
		EventType:      event.Type,
		Attempt:        n,
		CreatedAt:      d.now(),
	}

	start := time.Now()
	result, err := d.poster.Post(ctx, reg.URL, body, header)
	attempt.LatencyMS = time.Since(start).Milliseconds()
	if d.metrics != nil {
		d.metrics.ObserveDeliveryLatency(time.Since(start).Seconds())
	}

	switch {
	case err != nil:
		attempt.Status = models.AttemptFailed
		attempt.Error = truncate(err.Error(), maxErrorLen)
	case result.StatusCode >= 200 && result.StatusCode < 300:
		code := result.StatusCode
		attempt.Status = models.AttemptSuccess
		attempt.ResponseCode = &code
		attempt.ResponseBody = truncate(result.Body, maxResponseBodyLen)
	default:
		code := result.StatusCode
		attempt.Status = models.AttemptFailed
		attempt.ResponseCode = &code
		attempt.ResponseBody = truncate(result.Body, maxResponseBodyLen)
		attempt.Error = truncate(fmt.Sprintf("endpoint returned status %d", code), maxErrorLen)
	}
	if d.metrics != nil {
		d.metrics.IncrementDeliveries(string(attempt.Status))
	}
	return attempt
}

// signedRequest builds the canonical body and headers for a delivery chain.
func (d *Dispatcher) signedRequest(reg *models.Registration, event models.Event, deliveryID uuid.UUID) ([]byte, http.Header, error) {
	body, err := json.Marshal(payload{
		Event:     string(event.Type),
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Data:      event.Data,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("encode webhook payload: %w", err)
	}

	header := http.Header{}
	header.Set(HeaderSignature, Sign(reg.Secret, body))
	header.Set(HeaderEvent, string(event.Type))
	header.Set(HeaderTimestamp, event.Timestamp.UTC().Format(time.RFC3339))
	header.Set(HeaderDeliveryID, deliveryID.String())
	return body, header, nil
}

// Sign computes the hex HMAC-SHA256 of the raw body under the secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether sig matches the body under the secret.
// Comparison is constant time.
func VerifySignature(secret string, body []byte, sig string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(sig))
}

func deliveryIDFromHeader(header http.Header) uuid.UUID {
	id, err := uuid.Parse(header.Get(HeaderDeliveryID))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// sleep waits for the gap or until ctx is done; reports whether the full gap
// elapsed.
func sleep(ctx context.Context, gap time.Duration) bool {
	t := time.NewTimer(gap)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
