// Package telemetry holds the prometheus collectors and tracer used across the
// digest pipeline.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const namespace = "newsdigest"

var (
	// ProviderRequests counts article provider calls by outcome (ok, empty, error).
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Article provider requests by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	// ProviderFallbacks counts calls that fell through to the secondary provider.
	ProviderFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fallbacks_total",
			Help:      "Article fetches answered by the secondary provider",
		},
	)

	// Extractions counts content extraction attempts.
	Extractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Content extraction attempts by outcome",
		},
		[]string{"outcome"},
	)

	// SummarizerCalls counts summarization service calls.
	SummarizerCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summarizer_calls_total",
			Help:      "Summarization client calls by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	// TurnDuration measures chat turn latency by the action taken.
	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Duration of chat turns in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"action"},
	)

	// ActiveSessions reports the number of conversations held by the session store.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Conversations currently held in the session store",
		},
	)
)

// Extraction outcomes.
const (
	OutcomeAccepted    = "accepted"
	OutcomeFetchFailed = "fetch_failed"
	OutcomeTooThin     = "too_thin"
)

// RecordProvider records one provider call.
func RecordProvider(provider, outcome string) {
	ProviderRequests.WithLabelValues(provider, outcome).Inc()
}

// RecordExtraction records one extraction attempt.
func RecordExtraction(outcome string) {
	Extractions.WithLabelValues(outcome).Inc()
}

// RecordSummarizer records one summarization client call.
func RecordSummarizer(endpoint, outcome string) {
	SummarizerCalls.WithLabelValues(endpoint, outcome).Inc()
}

// Tracer returns a tracer from the global provider. No exporter is installed by
// default, so spans are dropped unless the process configures one.
func Tracer(name string) trace.Tracer {
	return otel.Tracer("newsdigest/" + name)
}
