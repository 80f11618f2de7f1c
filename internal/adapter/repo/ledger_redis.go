package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"vaultbot/internal/domain"
)

const defaultRedisPrefix = "vaultbot:announced:"

// RedisLedger stores one key per announced id. SETNX provides the atomic
// test-and-set across processes.
type RedisLedger struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisLedger creates a ledger. A zero ttl keeps ids forever.
func NewRedisLedger(client redis.Cmdable, prefix string, ttl time.Duration) *RedisLedger {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisLedger{client: client, prefix: prefix, ttl: ttl, now: time.Now}
}

// MarkAnnounced implements domain.IdentityStore.
func (l *RedisLedger) MarkAnnounced(ctx context.Context, id string) (bool, error) {
	key := l.key(id)
	inserted, err := l.client.SetNX(ctx, key, l.now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("ledger: setnx %s: %w", key, err)
	}
	return inserted, nil
}

// Contains implements domain.IdentityStore.
func (l *RedisLedger) Contains(ctx context.Context, id string) (bool, error) {
	key := l.key(id)
	n, err := l.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("ledger: exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (l *RedisLedger) key(id string) string {
	return l.prefix + strings.TrimSpace(id)
}

var _ domain.IdentityStore = (*RedisLedger)(nil)
