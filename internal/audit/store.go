package audit

import "context"

// Store persists audit entries.
//
// Error Contract:
// - Append returns nil on success or a wrapped error on failure
// - ListByActor returns an empty slice (not an error) when no entries exist
// - AnonymizeActor returns the number of entries scrubbed
//
// Entries are never deleted: anonymization rewrites the actor reference and
// origin metadata in place, preserving the append-only audit invariant while
// honoring erasure requests.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByActor(ctx context.Context, actorID string) ([]Entry, error)
	ListByResource(ctx context.Context, resourceType, resourceID string) ([]Entry, error)
	AnonymizeActor(ctx context.Context, actorID string) (int, error)
}
