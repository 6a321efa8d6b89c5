package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_Sync(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store)

	err := pub.Emit(context.Background(), Entry{
		Action:       ActionConsentGranted,
		ActorType:    "principal",
		ActorID:      "user-1",
		ResourceType: "consent",
		ResourceID:   "c-1",
		Detail:       json.RawMessage(`{"purpose":"marketing"}`),
	})
	require.NoError(t, err)

	entries, err := pub.ListByActor(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotZero(t, entries[0].ID)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store,
		WithAsyncBuffer(16),
		WithPublisherLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	for i := 0; i < 10; i++ {
		require.NoError(t, pub.Emit(context.Background(), Entry{
			Action:  ActionConsentRevoked,
			ActorID: "user-2",
		}))
	}
	pub.Close()

	entries, err := store.ListByActor(context.Background(), "user-2")
	require.NoError(t, err)
	assert.Len(t, entries, 10)
}

func TestAnonymizeActor_ScrubsActorAndOriginOnly(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store)
	ctx := context.Background()

	detail := json.RawMessage(`{"purpose":"analytics"}`)
	require.NoError(t, pub.Emit(ctx, Entry{
		Action:       ActionConsentGranted,
		ActorID:      "user-3",
		ResourceType: "consent",
		ResourceID:   "c-9",
		Detail:       detail,
		IP:           "203.0.113.7",
		UserAgent:    "Chrome on Linux",
	}))
	require.NoError(t, pub.Emit(ctx, Entry{Action: ActionConsentRevoked, ActorID: "someone-else"}))

	n, err := pub.AnonymizeActor(ctx, "user-3")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Entry is rewritten, not removed.
	entries, err := store.ListByResource(ctx, "consent", "c-9")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, AnonymizedActor, entries[0].ActorID)
	assert.Empty(t, entries[0].IP)
	assert.Empty(t, entries[0].UserAgent)
	assert.Equal(t, detail, entries[0].Detail, "detail blob stays intact")

	// Other actors untouched.
	others, err := store.ListByActor(ctx, "someone-else")
	require.NoError(t, err)
	assert.Len(t, others, 1)
}

func TestOriginFromRequest(t *testing.T) {
	req := httptest.NewRequest("POST", "/v1/consents", nil)
	req.RemoteAddr = "198.51.100.4:39281"
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	origin := OriginFromRequest(req)
	assert.Equal(t, "198.51.100.4", origin.IP)
	assert.Contains(t, origin.UserAgent, "Chrome")
	assert.Contains(t, origin.UserAgent, " on ")
}

func TestOriginFromRequest_ForwardedFor(t *testing.T) {
	req := httptest.NewRequest("POST", "/v1/consents", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	origin := OriginFromRequest(req)
	assert.Equal(t, "203.0.113.9", origin.IP)
}
