package reconcile

import (
	"context"

	"vaultbot/internal/domain"
	"vaultbot/internal/infra"
	"vaultbot/internal/metrics"
)

// Announcer delivers an announce decision to the chat.
type Announcer interface {
	Announce(ctx context.Context, d domain.Decision) error
}

// Processor reconciles and, when warranted, announces one candidate.
type Processor interface {
	Process(ctx context.Context, c domain.Candidate) (domain.Decision, error)
}

// Pipeline runs engine then announcer. Delivery failures are logged and never
// undo the identity commit: a lost announcement is preferred over a repeated
// one.
type Pipeline struct {
	engine    *Engine
	announcer Announcer
	metrics   *metrics.Metrics
	logger    infra.Logger
}

func NewPipeline(engine *Engine, announcer Announcer, m *metrics.Metrics, logger infra.Logger) *Pipeline {
	if m == nil {
		m = metrics.Noop()
	}
	return &Pipeline{engine: engine, announcer: announcer, metrics: m, logger: logger}
}

// Process implements Processor. The returned error is non-nil only when no
// decision could be made.
func (p *Pipeline) Process(ctx context.Context, c domain.Candidate) (domain.Decision, error) {
	source := string(c.Source)
	p.metrics.ObserveCandidate(source)

	decision, err := p.engine.Reconcile(ctx, c)
	if err != nil {
		p.metrics.ObserveReconcileError(source)
		p.logger.Error().Err(err).
			Str("source", source).
			Str("transaction_id", c.TransactionID).
			Msg("reconcile failed, candidate dropped")
		return domain.Decision{}, err
	}
	p.metrics.ObserveDecision(source, string(decision.Outcome))

	event := p.logger.Info().
		Str("source", source).
		Str("transaction_id", c.TransactionID).
		Str("outcome", string(decision.Outcome)).
		Str("amount", decision.Amount.StringFixed(2))
	if decision.Reason != "" {
		event = event.Str("reason", decision.Reason)
	}
	event.Msg("donation reconciled")

	if !decision.Announce() {
		return decision, nil
	}
	if err := p.announcer.Announce(ctx, decision); err != nil {
		p.metrics.ObserveAnnounceFailure()
		p.logger.Error().Err(err).
			Str("source", source).
			Str("transaction_id", c.TransactionID).
			Msg("announcement delivery failed")
	}
	return decision, nil
}

var _ Processor = (*Pipeline)(nil)
