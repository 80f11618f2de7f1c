package reconcile

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceTracker holds the last aggregate balance fetched by the poller. Only
// the poller writes it; the engine and the status view read it.
type BalanceTracker struct {
	mu         sync.RWMutex
	last       decimal.Decimal
	known      bool
	observedAt time.Time
}

// NewBalanceTracker returns a tracker with no baseline yet.
func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{}
}

// Last returns the last observed balance and whether one exists.
func (t *BalanceTracker) Last() (decimal.Decimal, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last, t.known
}

// ObservedAt returns when the balance was last updated.
func (t *BalanceTracker) ObservedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.observedAt
}

// Observe replaces the balance unconditionally.
func (t *BalanceTracker) Observe(balance decimal.Decimal, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = balance
	t.known = true
	t.observedAt = at
}
