// Package metrics provides Prometheus instrumentation for the triage
// engine. It exposes gauges for queue depth and cost, counters for routed
// and analyzed submissions, and histograms for moderation-call latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// QueueLength tracks the current number of items in the batch accumulator.
	QueueLength = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "triage_queue_length",
		Help: "Current number of items waiting in the batch accumulator",
	})

	// QueueEstimatedTokens tracks the estimated token cost of the queue.
	QueueEstimatedTokens = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "triage_queue_estimated_tokens",
		Help: "Estimated moderation-model token cost of the queued items",
	})

	// SubmissionsTotal counts routed submissions, labeled by path:
	// "immediate", "batched", "cached", or "empty".
	SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_submissions_total",
		Help: "Total number of submissions routed by the triage engine",
	}, []string{"path"})

	// ResultsTotal counts emitted analysis results, labeled by analysis
	// method ("immediate_ai", "batch_ai", "obvious_flag_fallback") and by
	// whether the result was flagged ("true"/"false").
	ResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_results_total",
		Help: "Total number of analysis results emitted",
	}, []string{"method", "flagged"})

	// FlushesTotal counts batch flushes by outcome: "analyzed" or "failed".
	FlushesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_flushes_total",
		Help: "Total number of batch flushes",
	}, []string{"outcome"})

	// FlushBatchSize records how many items each flush drained.
	FlushBatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "triage_flush_batch_size",
		Help:    "Number of items per drained batch",
		Buckets: []float64{1, 2, 5, 10, 20, 35, 50, 75, 100},
	})

	// ModerationLatency records external moderation call latency in seconds,
	// labeled by call kind ("single" or "batch").
	ModerationLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "triage_moderation_latency_seconds",
		Help:    "External moderation model call latency in seconds",
		Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30},
	}, []string{"kind"})

	// FallbacksTotal counts obvious-flag fallback verdicts, i.e. immediate
	// external calls that failed and degraded to the rule engine's judgment.
	FallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "triage_obvious_fallbacks_total",
		Help: "Immediate-path failures recovered via the rule-engine fallback",
	})

	// CollaboratorErrorsTotal counts persistence/alert failures, labeled by
	// collaborator ("persist" or "alert").
	CollaboratorErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_collaborator_errors_total",
		Help: "Failures dispatching results to persistence or alerting",
	}, []string{"collaborator"})
)

func init() {
	prometheus.MustRegister(
		QueueLength,
		QueueEstimatedTokens,
		SubmissionsTotal,
		ResultsTotal,
		FlushesTotal,
		FlushBatchSize,
		ModerationLatency,
		FallbacksTotal,
		CollaboratorErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
