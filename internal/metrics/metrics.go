// Package metrics exposes Prometheus instruments for the evaluation pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cv_screener"

// Recorder records model calls, queue outcomes and pipeline runs.
type Recorder struct {
	registry *prometheus.Registry

	llmAttempts  *prometheus.CounterVec
	llmLatency   *prometheus.HistogramVec
	llmTokens    *prometheus.CounterVec
	llmCost      *prometheus.CounterVec
	queueResults *prometheus.CounterVec
	pipelineRuns *prometheus.HistogramVec
}

// New registers all instruments on a dedicated registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		llmAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "attempts_total",
			Help:      "Model call attempts by stage and outcome kind.",
		}, []string{"stage", "outcome"}),
		llmLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of single model call attempts.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"stage"}),
		llmTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Tokens consumed by successful model calls.",
		}, []string{"stage", "direction"}),
		llmCost: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "estimated_cost_usd_total",
			Help:      "Estimated spend of successful model calls.",
		}, []string{"stage"}),
		queueResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "deliveries_total",
			Help:      "Queue deliveries by outcome (completed, retry, exhausted).",
		}, []string{"outcome"}),
		pipelineRuns: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "End-to-end evaluation pipeline duration.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"status"}),
	}
}

// RecordAttempt implements services.CallRecorder.
func (r *Recorder) RecordAttempt(stage string, attempt int, outcome string, duration time.Duration) {
	r.llmAttempts.WithLabelValues(stage, outcome).Inc()
	r.llmLatency.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordUsage implements services.CallRecorder.
func (r *Recorder) RecordUsage(stage string, promptTokens, completionTokens int, cost float64) {
	r.llmTokens.WithLabelValues(stage, "prompt").Add(float64(promptTokens))
	r.llmTokens.WithLabelValues(stage, "completion").Add(float64(completionTokens))
	r.llmCost.WithLabelValues(stage).Add(cost)
}

// RecordDelivery counts a queue delivery outcome.
func (r *Recorder) RecordDelivery(outcome string) {
	r.queueResults.WithLabelValues(outcome).Inc()
}

// ObservePipeline records one orchestrator run.
func (r *Recorder) ObservePipeline(status string, duration time.Duration) {
	r.pipelineRuns.WithLabelValues(status).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
