package metering

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	Decisions      *prometheus.CounterVec
	MeetingsClosed *prometheus.CounterVec
	BillingEvents  *prometheus.CounterVec
	AICostUSD      prometheus.Counter
	StoreErrors    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg leaves
// them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metering_decisions_total",
				Help: "Policy decisions by check and outcome code",
			},
			[]string{"check", "code"},
		),
		MeetingsClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metering_meetings_closed_total",
				Help: "Closed meetings by end reason",
			},
			[]string{"reason"},
		),
		BillingEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metering_billing_events_total",
				Help: "Billing events by name and outcome",
			},
			[]string{"event", "outcome"},
		),
		AICostUSD: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "metering_ai_cost_usd_total",
				Help: "Recorded AI spend in USD",
			},
		),
		StoreErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metering_store_errors_total",
				Help: "Failed engine operations by operation and retryability",
			},
			[]string{"operation", "retryable"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.Decisions, m.MeetingsClosed, m.BillingEvents, m.AICostUSD, m.StoreErrors)
	}
	return m
}

func (m *Metrics) decision(check, code string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(check, code).Inc()
}

func (m *Metrics) meetingClosed(reason string) {
	if m == nil {
		return
	}
	m.MeetingsClosed.WithLabelValues(reason).Inc()
}

func (m *Metrics) billingEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.BillingEvents.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) aiCost(usd float64) {
	if m == nil || usd <= 0 {
		return
	}
	m.AICostUSD.Add(usd)
}

func (m *Metrics) failure(operation string, err error) {
	if m == nil || err == nil {
		return
	}
	retryable := "false"
	if IsRetryable(err) {
		retryable = "true"
	}
	m.StoreErrors.WithLabelValues(operation, retryable).Inc()
}
