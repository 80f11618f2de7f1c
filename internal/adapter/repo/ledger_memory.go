package repo

import (
	"context"
	"strings"
	"sync"

	"vaultbot/internal/domain"
)

// MemoryLedger is a process-local identity store. Its contents are lost on
// restart.
type MemoryLedger struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{ids: make(map[string]struct{})}
}

// MarkAnnounced implements domain.IdentityStore. The test and the insert
// happen under one lock.
func (l *MemoryLedger) MarkAnnounced(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	id = strings.TrimSpace(id)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.ids[id]; ok {
		return false, nil
	}
	l.ids[id] = struct{}{}
	return true, nil
}

// Contains implements domain.IdentityStore.
func (l *MemoryLedger) Contains(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.ids[strings.TrimSpace(id)]
	return ok, nil
}

// Len returns the number of recorded ids.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ids)
}

var _ domain.IdentityStore = (*MemoryLedger)(nil)
