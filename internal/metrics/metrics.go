// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UtterancesTotal counts finished pipeline passes by outcome
	// (reprompt, confirm, speak, fail, error).
	UtterancesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saathi_utterances_total",
		Help: "Utterances processed by outcome",
	}, []string{"outcome"})

	IntentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saathi_intents_total",
		Help: "Classified intents above the confidence threshold",
	}, []string{"intent"})

	PipelineLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "saathi_pipeline_latency_seconds",
		Help:    "Time from final transcript to a terminal state",
		Buckets: prometheus.DefBuckets,
	})

	CaptureErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saathi_capture_errors_total",
		Help: "Speech capture failures by kind",
	}, []string{"kind"})

	TranslationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saathi_translations_total",
		Help: "Translation attempts by result (ok, cached, degraded)",
	}, []string{"result"})

	DispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saathi_dispatch_total",
		Help: "Dispatcher calls by result",
	}, []string{"result"})

	StateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saathi_state_transitions_total",
		Help: "Assistant state entries",
	}, []string{"state"})

	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "saathi_circuit_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
	}, []string{"name"})
)
