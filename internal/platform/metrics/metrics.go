package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the issuer node.
type Metrics struct {
	CredentialsIssued  *prometheus.CounterVec
	CredentialsRevoked *prometheus.CounterVec
	IssuanceFailures   *prometheus.CounterVec
	ChainPublishSecs   prometheus.Histogram
	SchemaFetchSecs    prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CredentialsIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signet_credentials_issued_total",
			Help: "Credentials issued, labeled by issuer network.",
		}, []string{"network"}),
		CredentialsRevoked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signet_credentials_revoked_total",
			Help: "Credentials revoked, labeled by issuer network.",
		}, []string{"network"}),
		IssuanceFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signet_issuance_failures_total",
			Help: "Failed issuance attempts, labeled by error code.",
		}, []string{"code"}),
		ChainPublishSecs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "signet_chain_publish_duration_seconds",
			Help:    "Submit-to-confirmation latency of state transactions.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		SchemaFetchSecs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "signet_schema_fetch_duration_seconds",
			Help:    "Latency of schema document fetches.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
