package poller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"vaultbot/internal/domain"
	"vaultbot/internal/infra"
	"vaultbot/internal/metrics"
	"vaultbot/internal/providers/paypal"
	"vaultbot/internal/reconcile"
)

const (
	tickOK     = "ok"
	tickFailed = "failed"
)

// Feed is the processor reporting surface the poller reads.
type Feed interface {
	Balance(ctx context.Context, currency string) (decimal.Decimal, error)
	ListTransactions(ctx context.Context, query paypal.TransactionQuery) ([]paypal.Transaction, error)
}

// Options configures the schedule and detection path.
type Options struct {
	Interval      time.Duration
	InitialDelay  time.Duration
	Lookback      time.Duration
	Timeout       time.Duration
	Detection     string
	Currency      string
	SeedFirstTick bool
	Now           func() time.Time
}

// Result summarizes one tick.
type Result struct {
	Balance    decimal.Decimal
	Candidates int
	Announced  int
	Suppressed int
	Seeded     int
	Skipped    int
	Dropped    int
}

// Poller is the scheduled pull adapter. Each tick fetches the balance and,
// in transactions mode, the recent transaction page; only when every fetch
// succeeds does it submit candidates and move the balance tracker.
type Poller struct {
	feed      Feed
	processor reconcile.Processor
	engine    *reconcile.Engine
	metrics   *metrics.Metrics
	logger    infra.Logger
	opts      Options

	mu     sync.Mutex
	seeded bool
}

func New(feed Feed, processor reconcile.Processor, engine *reconcile.Engine, m *metrics.Metrics, logger infra.Logger, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 24 * time.Hour
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Detection == "" {
		opts.Detection = infra.DetectTransactions
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if m == nil {
		m = metrics.Noop()
	}
	return &Poller{feed: feed, processor: processor, engine: engine, metrics: m, logger: logger, opts: opts}
}

// Run ticks after the initial delay and then on every interval until ctx ends.
// Tick failures are logged and the schedule continues.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info().
		Dur("interval", p.opts.Interval).
		Dur("initial_delay", p.opts.InitialDelay).
		Str("detection", p.opts.Detection).
		Msg("poller: started")

	delay := time.NewTimer(p.opts.InitialDelay)
	defer delay.Stop()
	select {
	case <-ctx.Done():
		p.logger.Info().Msg("poller: stopped")
		return nil
	case <-delay.C:
	}

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()
	for {
		p.runTick(ctx)
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("poller: stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Poller) runTick(ctx context.Context) {
	res, err := p.Tick(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}
		p.logger.Warn().Err(err).Msg("poller: tick failed")
		return
	}
	p.logger.Debug().
		Str("balance", res.Balance.StringFixed(2)).
		Int("candidates", res.Candidates).
		Int("announced", res.Announced).
		Int("seeded", res.Seeded).
		Int("skipped", res.Skipped).
		Msg("poller: tick complete")
}

// Tick performs one poll cycle. A non-nil error means nothing was submitted
// and the tracker was left untouched.
func (p *Poller) Tick(ctx context.Context) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.opts.Now()
	balance, txs, err := p.fetch(ctx, now)
	if err != nil {
		p.metrics.ObservePollTick(tickFailed)
		return Result{}, err
	}

	// Fetches are done; what follows must not be cut short by shutdown.
	work, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.Timeout)
	defer cancel()

	res := Result{Balance: balance}
	if p.opts.Detection == infra.DetectBalance {
		p.process(work, domain.Candidate{Source: domain.SourcePoll, Balance: &balance, Currency: p.opts.Currency, ObservedAt: now}, &res)
	} else {
		candidates, skipped := Candidates(txs, p.opts.Currency, now)
		res.Skipped = skipped
		if p.opts.SeedFirstTick && !p.seeded {
			for _, c := range candidates {
				if _, err := p.engine.Seed(work, c.TransactionID); err != nil {
					p.logger.Warn().Err(err).Str("transaction_id", c.TransactionID).Msg("poller: seed failed")
					res.Dropped++
					continue
				}
				res.Seeded++
			}
			p.logger.Info().Int("seeded", res.Seeded).Msg("poller: lookback window seeded without announcing")
		} else {
			for _, c := range candidates {
				p.process(work, c, &res)
			}
		}
	}

	p.engine.Balances().Observe(balance, now)
	p.metrics.SetBalance(balance)
	p.metrics.ObservePollTick(tickOK)
	p.seeded = true
	return res, nil
}

func (p *Poller) fetch(ctx context.Context, now time.Time) (decimal.Decimal, []paypal.Transaction, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	balance, err := p.feed.Balance(fetchCtx, p.opts.Currency)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("fetch balance: %w", err)
	}
	if p.opts.Detection == infra.DetectBalance {
		return balance, nil, nil
	}
	txs, err := p.feed.ListTransactions(fetchCtx, paypal.TransactionQuery{Start: now.Add(-p.opts.Lookback), End: now})
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("fetch transactions: %w", err)
	}
	return balance, txs, nil
}

func (p *Poller) process(ctx context.Context, c domain.Candidate, res *Result) {
	res.Candidates++
	decision, err := p.processor.Process(ctx, c)
	switch {
	case err != nil:
		res.Dropped++
	case decision.Announce():
		res.Announced++
	default:
		res.Suppressed++
	}
}

// Candidates turns a transaction page into poll candidates. Entries without an
// id, with a non-positive amount, a non-success status or another currency are
// skipped and counted.
func Candidates(txs []paypal.Transaction, currency string, now time.Time) ([]domain.Candidate, int) {
	out := make([]domain.Candidate, 0, len(txs))
	skipped := 0
	for _, tx := range txs {
		if tx.ID == "" || !tx.Amount.IsPositive() || !tx.Completed() {
			skipped++
			continue
		}
		if tx.Currency != "" && currency != "" && !strings.EqualFold(tx.Currency, currency) {
			skipped++
			continue
		}
		observed := tx.InitiatedAt
		if observed.IsZero() {
			observed = now
		}
		out = append(out, domain.Candidate{
			Source:        domain.SourcePoll,
			TransactionID: tx.ID,
			Amount:        tx.Amount,
			Currency:      strings.ToUpper(tx.Currency),
			DonorLabel:    tx.PayerLabel(),
			ObservedAt:    observed,
		})
	}
	return out, skipped
}
