package reconcile

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"vaultbot/internal/domain"
)

// Engine turns candidates into announce/suppress decisions. The identity
// store's test-and-set is the only shared mutation it performs.
type Engine struct {
	store    domain.IdentityStore
	balances *BalanceTracker
}

func NewEngine(store domain.IdentityStore, balances *BalanceTracker) *Engine {
	return &Engine{store: store, balances: balances}
}

// Reconcile decides one candidate. Candidates carrying a transaction id are
// deduplicated through the identity store; balance observations are compared
// with the tracker, where the first observation only sets the baseline. A push
// candidate with no key at all is announced as is.
func (e *Engine) Reconcile(ctx context.Context, c domain.Candidate) (domain.Decision, error) {
	if err := c.Validate(); err != nil {
		return domain.Decision{}, err
	}
	switch {
	case c.HasIdentity():
		return e.reconcileIdentity(ctx, c)
	case c.Source == domain.SourcePush:
		return domain.Decision{Outcome: domain.OutcomeAnnounce, Candidate: c, Amount: c.Amount, Reason: "unkeyed push"}, nil
	default:
		return e.reconcileBalance(c), nil
	}
}

func (e *Engine) reconcileIdentity(ctx context.Context, c domain.Candidate) (domain.Decision, error) {
	inserted, err := e.store.MarkAnnounced(ctx, c.TransactionID)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("reconcile %s: %w", c.TransactionID, err)
	}
	if !inserted {
		return domain.Decision{Outcome: domain.OutcomeSuppress, Candidate: c, Amount: c.Amount, Reason: "duplicate transaction"}, nil
	}
	return domain.Decision{Outcome: domain.OutcomeAnnounce, Candidate: c, Amount: c.Amount}, nil
}

func (e *Engine) reconcileBalance(c domain.Candidate) domain.Decision {
	observed := *c.Balance
	last, known := e.balances.Last()
	if !known {
		return domain.Decision{Outcome: domain.OutcomeSuppress, Candidate: c, Amount: decimal.Zero, Reason: "balance baseline"}
	}
	if !observed.GreaterThan(last) {
		return domain.Decision{Outcome: domain.OutcomeSuppress, Candidate: c, Amount: decimal.Zero, Reason: "balance unchanged"}
	}
	return domain.Decision{Outcome: domain.OutcomeAnnounce, Candidate: c, Amount: observed.Sub(last)}
}

// Seed records id as announced without producing a decision. The poller uses
// it to absorb its lookback window on a non-durable ledger.
func (e *Engine) Seed(ctx context.Context, id string) (bool, error) {
	return e.store.MarkAnnounced(ctx, id)
}

// Balances exposes the tracker the engine compares against.
func (e *Engine) Balances() *BalanceTracker {
	return e.balances
}
