// Package metrics provides Prometheus metrics for the billing pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	ClaimsGenerated         prometheus.Counter
	ClaimsSubmitted         prometheus.Counter
	ClaimsSubmitFailed      prometheus.Counter
	ValidationFailures      *prometheus.CounterVec
	GenerationDuration      prometheus.Histogram
	UploadDuration          prometheus.Histogram
	EligibilityChecks       *prometheus.CounterVec
	KafkaMessagesProduced   prometheus.Counter
	KafkaMessagesConsumed   prometheus.Counter
	OutboxPending           prometheus.Gauge
	CircuitBreakerState     *prometheus.GaugeVec
}

// New creates and registers all metrics
func New() *Metrics {
	m := &Metrics{
		ClaimsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "claims_generated_total",
			Help: "Total 837P claim files generated",
		}),
		ClaimsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "claims_submitted_total",
			Help: "Total claim files delivered to the clearinghouse",
		}),
		ClaimsSubmitFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "claims_submit_failed_total",
			Help: "Total claim submissions that failed delivery",
		}),
		ValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "claim_validation_failures_total",
			Help: "Claim generation rejections by missing field",
		}, []string{"field"}),
		GenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "edi_generation_duration_seconds",
			Help:    "837P generation duration",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1},
		}),
		UploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sftp_upload_duration_seconds",
			Help:    "Clearinghouse SFTP upload duration",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		EligibilityChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eligibility_checks_total",
			Help: "Eligibility checks by path (realtime or 270 file)",
		}, []string{"path", "outcome"}),
		KafkaMessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_produced_total",
			Help: "Total Kafka messages produced",
		}),
		KafkaMessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_consumed_total",
			Help: "Total Kafka messages consumed",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending outbox entries",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	prometheus.MustRegister(
		m.ClaimsGenerated,
		m.ClaimsSubmitted,
		m.ClaimsSubmitFailed,
		m.ValidationFailures,
		m.GenerationDuration,
		m.UploadDuration,
		m.EligibilityChecks,
		m.KafkaMessagesProduced,
		m.KafkaMessagesConsumed,
		m.OutboxPending,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
