package repo

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"vaultbot/internal/domain"
	"vaultbot/internal/storage"
)

// FileLedger keeps the announced set in memory and journals every insert to a
// file so the set survives restarts.
type FileLedger struct {
	mu    sync.Mutex
	store *storage.FileStore
	key   string
	ids   map[string]struct{}
}

// NewFileLedger replays the journal at key and returns a ready ledger.
func NewFileLedger(ctx context.Context, store *storage.FileStore, key string) (*FileLedger, error) {
	lines, err := store.ReadLines(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("ledger: replay journal: %w", err)
	}
	ids := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		ids[line] = struct{}{}
	}
	return &FileLedger{store: store, key: key, ids: ids}, nil
}

// MarkAnnounced implements domain.IdentityStore. The id only becomes visible
// once the journal append succeeded.
func (l *FileLedger) MarkAnnounced(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.ids[id]; ok {
		return false, nil
	}
	if err := l.store.AppendLine(ctx, l.key, id); err != nil {
		return false, fmt.Errorf("ledger: journal %s: %w", id, err)
	}
	l.ids[id] = struct{}{}
	return true, nil
}

// Contains implements domain.IdentityStore.
func (l *FileLedger) Contains(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.ids[strings.TrimSpace(id)]
	return ok, nil
}

var _ domain.IdentityStore = (*FileLedger)(nil)
