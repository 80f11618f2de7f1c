package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultbot/internal/adapter/repo"
	"vaultbot/internal/domain"
)

func txCandidate(source domain.Source, id, amount string) domain.Candidate {
	return domain.Candidate{
		Source:        source,
		TransactionID: id,
		Amount:        decimal.RequireFromString(amount),
		DonorLabel:    "Ada",
		ObservedAt:    time.Now(),
	}
}

func balanceCandidate(balance string) domain.Candidate {
	b := decimal.RequireFromString(balance)
	return domain.Candidate{Source: domain.SourcePoll, Balance: &b, ObservedAt: time.Now()}
}

func TestEngineIdempotency(t *testing.T) {
	engine := NewEngine(repo.NewMemoryLedger(), NewBalanceTracker())
	ctx := context.Background()

	sources := []domain.Source{domain.SourcePoll, domain.SourcePush, domain.SourcePoll, domain.SourcePush}
	var announced int
	for _, src := range sources {
		d, err := engine.Reconcile(ctx, txCandidate(src, "TX1", "25.00"))
		require.NoError(t, err)
		if d.Announce() {
			announced++
			assert.True(t, d.Amount.Equal(decimal.RequireFromString("25.00")))
		} else {
			assert.Equal(t, domain.OutcomeSuppress, d.Outcome)
		}
	}
	assert.Equal(t, 1, announced)
}

func TestEngineCrossChannelConcurrentDedup(t *testing.T) {
	for i := 0; i < 200; i++ {
		engine := NewEngine(repo.NewMemoryLedger(), NewBalanceTracker())
		ctx := context.Background()

		var wg sync.WaitGroup
		decisions := make([]domain.Decision, 2)
		start := make(chan struct{})
		for idx, src := range []domain.Source{domain.SourcePush, domain.SourcePoll} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				d, err := engine.Reconcile(ctx, txCandidate(src, "TX-shared", "10.00"))
				assert.NoError(t, err)
				decisions[idx] = d
			}()
		}
		close(start)
		wg.Wait()

		announces := 0
		for _, d := range decisions {
			if d.Announce() {
				announces++
			}
		}
		require.Equal(t, 1, announces, "iteration %d", i)
	}
}

func TestEngineLegacyBalanceSequence(t *testing.T) {
	tracker := NewBalanceTracker()
	engine := NewEngine(repo.NewMemoryLedger(), tracker)
	ctx := context.Background()

	var amounts []string
	for _, balance := range []string{"100", "100", "250", "250", "400"} {
		d, err := engine.Reconcile(ctx, balanceCandidate(balance))
		require.NoError(t, err)
		if d.Announce() {
			amounts = append(amounts, d.Amount.String())
		}
		tracker.Observe(decimal.RequireFromString(balance), time.Now())
	}
	assert.Equal(t, []string{"150", "150"}, amounts)

	last, ok := tracker.Last()
	require.True(t, ok)
	assert.True(t, last.Equal(decimal.NewFromInt(400)))
}

func TestEngineLegacyIgnoresDecrease(t *testing.T) {
	tracker := NewBalanceTracker()
	tracker.Observe(decimal.NewFromInt(500), time.Now())
	engine := NewEngine(repo.NewMemoryLedger(), tracker)

	d, err := engine.Reconcile(context.Background(), balanceCandidate("450"))
	require.NoError(t, err)
	assert.False(t, d.Announce())
}

func TestEngineRejectsMalformedCandidate(t *testing.T) {
	ledger := repo.NewMemoryLedger()
	engine := NewEngine(ledger, NewBalanceTracker())

	_, err := engine.Reconcile(context.Background(), domain.Candidate{Source: domain.SourcePush})
	require.ErrorIs(t, err, domain.ErrInvalidCandidate)

	_, err = engine.Reconcile(context.Background(), txCandidate(domain.SourcePoll, "TX-neg", "-3.00"))
	require.ErrorIs(t, err, domain.ErrInvalidCandidate)
	assert.Equal(t, 0, ledger.Len(), "rejected candidates must not touch the ledger")
}

func TestEngineAnnouncesUnkeyedPush(t *testing.T) {
	ledger := repo.NewMemoryLedger()
	engine := NewEngine(ledger, NewBalanceTracker())
	c := domain.Candidate{Source: domain.SourcePush, Amount: decimal.RequireFromString("25.00"), DonorLabel: "Ada"}

	for i := 0; i < 2; i++ {
		d, err := engine.Reconcile(context.Background(), c)
		require.NoError(t, err)
		assert.True(t, d.Announce(), "unkeyed push %d should announce", i)
		assert.True(t, d.Amount.Equal(decimal.RequireFromString("25.00")))
	}
	assert.Equal(t, 0, ledger.Len(), "unkeyed push must not touch the ledger")
}

type failingStore struct{}

func (failingStore) MarkAnnounced(context.Context, string) (bool, error) {
	return false, errors.New("ledger unavailable")
}

func (failingStore) Contains(context.Context, string) (bool, error) {
	return false, errors.New("ledger unavailable")
}

func TestEngineStoreFailure(t *testing.T) {
	engine := NewEngine(failingStore{}, NewBalanceTracker())
	_, err := engine.Reconcile(context.Background(), txCandidate(domain.SourcePoll, "TX1", "1.00"))
	require.Error(t, err)
}

func TestEngineSeedSuppressesLaterCandidate(t *testing.T) {
	engine := NewEngine(repo.NewMemoryLedger(), NewBalanceTracker())
	ctx := context.Background()

	seeded, err := engine.Seed(ctx, "TX-old")
	require.NoError(t, err)
	require.True(t, seeded)

	d, err := engine.Reconcile(ctx, txCandidate(domain.SourcePush, "TX-old", "5.00"))
	require.NoError(t, err)
	assert.False(t, d.Announce())
}
