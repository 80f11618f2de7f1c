package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultbot/internal/adapter/repo"
	"vaultbot/internal/domain"
	"vaultbot/internal/infra"
	"vaultbot/internal/metrics"
	"vaultbot/internal/providers/paypal"
	"vaultbot/internal/reconcile"
)

type scriptedFeed struct {
	mu          sync.Mutex
	balances    []string
	pages       [][]paypal.Transaction
	balanceErr  error
	listErr     error
	listCalls   int
	lastQuery   paypal.TransactionQuery
	balanceCall int
}

func (f *scriptedFeed) Balance(_ context.Context, _ string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return decimal.Zero, f.balanceErr
	}
	idx := f.balanceCall
	if idx >= len(f.balances) {
		idx = len(f.balances) - 1
	}
	f.balanceCall++
	return decimal.RequireFromString(f.balances[idx]), nil
}

func (f *scriptedFeed) ListTransactions(_ context.Context, q paypal.TransactionQuery) ([]paypal.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = q
	if f.listErr != nil {
		return nil, f.listErr
	}
	idx := f.listCalls
	f.listCalls++
	if len(f.pages) == 0 {
		return nil, nil
	}
	if idx >= len(f.pages) {
		idx = len(f.pages) - 1
	}
	return f.pages[idx], nil
}

type recordingAnnouncer struct {
	mu      sync.Mutex
	amounts []string
	ids     []string
}

func (r *recordingAnnouncer) Announce(_ context.Context, d domain.Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.amounts = append(r.amounts, d.Amount.String())
	r.ids = append(r.ids, d.Candidate.TransactionID)
	return nil
}

type harness struct {
	poller    *Poller
	engine    *reconcile.Engine
	pipeline  *reconcile.Pipeline
	announcer *recordingAnnouncer
	metrics   *metrics.Metrics
}

func newHarness(feed Feed, opts Options) harness {
	logger := *infra.DiscardLogger()
	m := metrics.New(prometheus.NewRegistry())
	engine := reconcile.NewEngine(repo.NewMemoryLedger(), reconcile.NewBalanceTracker())
	announcer := &recordingAnnouncer{}
	pipeline := reconcile.NewPipeline(engine, announcer, m, logger)
	if opts.Now == nil {
		fixed := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
		opts.Now = func() time.Time { return fixed }
	}
	return harness{
		poller:    New(feed, pipeline, engine, m, logger, opts),
		engine:    engine,
		pipeline:  pipeline,
		announcer: announcer,
		metrics:   m,
	}
}

func tx(id, amount, status string) paypal.Transaction {
	return paypal.Transaction{ID: id, Amount: decimal.RequireFromString(amount), Currency: "USD", Status: status, GivenName: "Ada"}
}

func TestLegacyBalanceSequence(t *testing.T) {
	feed := &scriptedFeed{balances: []string{"100", "100", "250", "250", "400"}}
	h := newHarness(feed, Options{Detection: infra.DetectBalance})

	for i := 0; i < 5; i++ {
		_, err := h.poller.Tick(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"150", "150"}, h.announcer.amounts)
	last, known := h.engine.Balances().Last()
	require.True(t, known)
	assert.Equal(t, "400", last.String())
	assert.Zero(t, feed.listCalls, "balance mode never searches transactions")
	assert.Equal(t, float64(400), testutil.ToFloat64(h.metrics.LastBalance))
}

func TestNoChangeTicksNeverAnnounce(t *testing.T) {
	for _, mode := range []string{infra.DetectBalance, infra.DetectTransactions} {
		t.Run(mode, func(t *testing.T) {
			feed := &scriptedFeed{balances: []string{"320.50"}}
			h := newHarness(feed, Options{Detection: mode})
			for i := 0; i < 6; i++ {
				_, err := h.poller.Tick(context.Background())
				require.NoError(t, err)
			}
			assert.Empty(t, h.announcer.amounts)
			last, _ := h.engine.Balances().Last()
			assert.Equal(t, "320.5", last.String())
			assert.Equal(t, float64(6), testutil.ToFloat64(h.metrics.PollTicks.WithLabelValues(tickOK)))
		})
	}
}

func TestTransactionsModeAnnouncesEachIDOnce(t *testing.T) {
	page := []paypal.Transaction{
		tx("TX1", "25.00", "S"),
		tx("", "10.00", "S"),
		tx("TX2", "-5.00", "S"),
		tx("TX3", "7.00", "P"),
		{ID: "TX4", Amount: decimal.NewFromInt(3), Currency: "EUR", Status: "S"},
	}
	feed := &scriptedFeed{balances: []string{"1000"}, pages: [][]paypal.Transaction{page}}
	h := newHarness(feed, Options{Lookback: 6 * time.Hour})

	res, err := h.poller.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Announced)
	assert.Equal(t, 4, res.Skipped)

	res, err = h.poller.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Announced)
	assert.Equal(t, 1, res.Suppressed)

	assert.Equal(t, []string{"TX1"}, h.announcer.ids)
	assert.Equal(t, 6*time.Hour, feed.lastQuery.End.Sub(feed.lastQuery.Start))
}

func TestPushThenPollIsSuppressed(t *testing.T) {
	feed := &scriptedFeed{balances: []string{"25"}, pages: [][]paypal.Transaction{{tx("TX1", "25.00", "S")}}}
	h := newHarness(feed, Options{})

	push := domain.Candidate{Source: domain.SourcePush, TransactionID: "TX1", Amount: decimal.NewFromInt(25), DonorLabel: "Ada"}
	_, err := h.pipeline.Process(context.Background(), push)
	require.NoError(t, err)

	res, err := h.poller.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Suppressed)
	assert.Len(t, h.announcer.ids, 1)
}

func TestFailedFetchLeavesTrackerUntouched(t *testing.T) {
	feed := &scriptedFeed{balances: []string{"100"}}
	h := newHarness(feed, Options{Detection: infra.DetectBalance})
	_, err := h.poller.Tick(context.Background())
	require.NoError(t, err)

	feed.balances = []string{"900"}
	feed.listErr = errors.New("search unavailable")
	h.poller.opts.Detection = infra.DetectTransactions
	_, err = h.poller.Tick(context.Background())
	require.Error(t, err)

	last, _ := h.engine.Balances().Last()
	assert.Equal(t, "100", last.String(), "a tick that fails mid-fetch must not move the balance")
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.PollTicks.WithLabelValues(tickFailed)))

	feed.balanceErr = errors.New("unauthorized")
	_, err = h.poller.Tick(context.Background())
	require.Error(t, err)
	assert.Empty(t, h.announcer.amounts)
}

func TestSeedFirstTick(t *testing.T) {
	feed := &scriptedFeed{
		balances: []string{"50"},
		pages: [][]paypal.Transaction{
			{tx("OLD1", "20", "S"), tx("OLD2", "30", "S")},
			{tx("OLD1", "20", "S"), tx("OLD2", "30", "S"), tx("NEW1", "5", "S")},
		},
	}
	h := newHarness(feed, Options{SeedFirstTick: true})

	res, err := h.poller.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Seeded)
	assert.Empty(t, h.announcer.ids)

	res, err = h.poller.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Announced)
	assert.Equal(t, []string{"NEW1"}, h.announcer.ids)
}

func TestSeedWaitsForFirstSuccessfulTick(t *testing.T) {
	feed := &scriptedFeed{balances: []string{"50"}, balanceErr: errors.New("down"), pages: [][]paypal.Transaction{{tx("OLD1", "20", "S")}}}
	h := newHarness(feed, Options{SeedFirstTick: true})

	_, err := h.poller.Tick(context.Background())
	require.Error(t, err)

	feed.balanceErr = nil
	res, err := h.poller.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Seeded)
	assert.Empty(t, h.announcer.ids)
}

func TestRunTicksUntilCancelled(t *testing.T) {
	feed := &scriptedFeed{balances: []string{"10"}}
	h := newHarness(feed, Options{Interval: 5 * time.Millisecond, Detection: infra.DetectBalance})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.poller.Run(ctx) }()

	require.Eventually(t, func() bool {
		feed.mu.Lock()
		defer feed.mu.Unlock()
		return feed.balanceCall >= 3
	}, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
}

func TestRunStopsDuringInitialDelay(t *testing.T) {
	feed := &scriptedFeed{balances: []string{"10"}}
	h := newHarness(feed, Options{InitialDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, h.poller.Run(ctx))
	assert.Zero(t, feed.balanceCall)
}

func TestCandidatesFallsBackToNowAndLabel(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	initiated := now.Add(-time.Hour)
	txs := []paypal.Transaction{
		{ID: "A", Amount: decimal.NewFromInt(1), Status: "S", Email: "ada@example.com"},
		{ID: "B", Amount: decimal.NewFromInt(2), Status: "S", InitiatedAt: initiated, Currency: "usd"},
	}
	out, skipped := Candidates(txs, "USD", now)
	require.Len(t, out, 2)
	assert.Zero(t, skipped)
	assert.Equal(t, now, out[0].ObservedAt)
	assert.Equal(t, "ada@example.com", out[0].DonorLabel)
	assert.Equal(t, initiated, out[1].ObservedAt)
	assert.Equal(t, "USD", out[1].Currency)
	assert.Equal(t, domain.SourcePoll, out[1].Source)
}
