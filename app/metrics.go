package app

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "syntaxvoice"

var (
	// transcriptionsTotal counts /transcribe outcomes.
	transcriptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transcriptions_total",
			Help:      "Transcription requests by outcome",
		},
		[]string{"outcome"},
	)

	// upstreamDuration times calls to the speech and generation providers.
	upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "upstream_duration_seconds",
			Help:      "Duration of transcription and generation calls in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"call", "status"}, // call: transcribe, generate
	)

	// quotaConsumedTotal counts metered units recorded against free-tier users.
	quotaConsumedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "quota_consumed_total",
			Help:      "Free-tier transcriptions recorded",
		},
	)

	// quotaRolloversTotal counts period resets.
	quotaRolloversTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "quota_rollovers_total",
			Help:      "Monthly usage periods reset",
		},
	)

	// webhookEventsTotal counts processed Stripe webhook events.
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "billing_webhook_events_total",
			Help:      "Stripe webhook events by type and status",
		},
		[]string{"type", "status"},
	)

	allMetrics = []prometheus.Collector{
		transcriptionsTotal,
		upstreamDuration,
		quotaConsumedTotal,
		quotaRolloversTotal,
		webhookEventsTotal,
	}
)

const (
	outcomeCompleted           = "completed"
	outcomeQuotaExceeded       = "quota_exceeded"
	outcomeTranscriptionFailed = "transcription_failed"
	outcomeProjectNotFound     = "project_not_found"
	outcomeGenerationFailed    = "generation_failed"
	outcomeStreamAborted       = "stream_aborted"
)

func recordTranscription(outcome string) {
	transcriptionsTotal.WithLabelValues(outcome).Inc()
}

func recordUpstream(call string, err error, seconds float64) {
	status := "success"
	if err != nil {
		status = "error"
	}
	upstreamDuration.WithLabelValues(call, status).Observe(seconds)
}

// newMetricsRegistry returns a registry holding the service and runtime collectors.
func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(allMetrics...)
	return reg
}

func metricsHandler(reg *prometheus.Registry) gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
}
