package domain

import "context"

// IdentityStore is the deduplication ledger of announced transaction ids.
type IdentityStore interface {
	// MarkAnnounced atomically inserts id and reports whether it was absent.
	// Exactly one concurrent caller for the same id observes true.
	MarkAnnounced(ctx context.Context, id string) (bool, error)
	// Contains reports whether id has already been announced.
	Contains(ctx context.Context, id string) (bool, error)
}
