// ABOUTME: Prometheus instruments for the outreach engine
// ABOUTME: Implements engine.Recorder with counters and a run duration histogram
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const Namespace = "sdr"

// Prometheus records engine events as Prometheus metrics.
type Prometheus struct {
	sends         *prometheus.CounterVec
	gateDecisions *prometheus.CounterVec
	bounces       prometheus.Counter
	reverts       prometheus.Counter
	runDuration   *prometheus.HistogramVec
	lastRun       *prometheus.GaugeVec
}

// New registers the engine metrics with reg, or the default registerer when reg is nil.
func New(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Prometheus{
		sends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "outreach_candidates_total",
				Help:      "Candidates processed by the dispatch loop, by outcome",
			},
			[]string{"outcome"},
		),
		gateDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "gate_decisions_total",
				Help:      "Settings gate evaluations, by decision",
			},
			[]string{"decision"},
		),
		bounces: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "bounces_recorded_total",
				Help:      "Hard-bounced addresses reconciled",
			},
		),
		reverts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "leads_reverted_total",
				Help:      "Leads reverted to enriched after their only delivery bounced",
			},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of engine invocations",
				Buckets:   []float64{1, 10, 60, 300, 900, 1800, 3600, 7200},
			},
			[]string{"kind"},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last invocation of each kind finished",
			},
			[]string{"kind"},
		),
	}

	reg.MustRegister(
		m.sends,
		m.gateDecisions,
		m.bounces,
		m.reverts,
		m.runDuration,
		m.lastRun,
	)

	return m
}

func (m *Prometheus) SendOutcome(outcome string) {
	m.sends.WithLabelValues(outcome).Inc()
}

func (m *Prometheus) GateDecision(reason string) {
	m.gateDecisions.WithLabelValues(reason).Inc()
}

func (m *Prometheus) BounceRecorded() {
	m.bounces.Inc()
}

func (m *Prometheus) LeadReverted() {
	m.reverts.Inc()
}

func (m *Prometheus) RunFinished(kind string, elapsed time.Duration) {
	m.runDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	m.lastRun.WithLabelValues(kind).SetToCurrentTime()
}
