package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// Metrics holds the Prometheus collectors of the reconciliation pipeline.
type Metrics struct {
	Candidates       *prometheus.CounterVec
	Decisions        *prometheus.CounterVec
	ReconcileErrors  *prometheus.CounterVec
	PollTicks        *prometheus.CounterVec
	AnnounceFailures prometheus.Counter
	LastBalance      prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Candidates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultbot_candidates_total",
			Help: "Donation candidates received, by feed.",
		}, []string{"source"}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultbot_decisions_total",
			Help: "Reconciliation decisions, by feed and outcome.",
		}, []string{"source", "outcome"}),
		ReconcileErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultbot_reconcile_errors_total",
			Help: "Candidates dropped because reconciliation failed.",
		}, []string{"source"}),
		PollTicks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultbot_poll_ticks_total",
			Help: "Poll ticks, by result.",
		}, []string{"result"}),
		AnnounceFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "vaultbot_announce_failures_total",
			Help: "Announcements the chat transport rejected.",
		}),
		LastBalance: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vaultbot_last_known_balance",
			Help: "Most recent balance fetched from the payment processor.",
		}),
	}
}

// Noop returns collectors registered on a throwaway registry.
func Noop() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) ObserveCandidate(source string) {
	m.Candidates.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveDecision(source, outcome string) {
	m.Decisions.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) ObserveReconcileError(source string) {
	m.ReconcileErrors.WithLabelValues(source).Inc()
}

func (m *Metrics) ObservePollTick(result string) {
	m.PollTicks.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveAnnounceFailure() {
	m.AnnounceFailures.Inc()
}

func (m *Metrics) SetBalance(balance decimal.Decimal) {
	m.LastBalance.Set(balance.InexactFloat64())
}
