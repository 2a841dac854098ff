package feed

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricFeedRequests           = "feed_requests_total"
	MetricFeedStageDuration      = "feed_stage_duration_seconds"
	MetricFeedCandidates         = "feed_stage_candidates"
	MetricExternalSourceFailures = "feed_external_source_failures_total"
)

// Pipeline stage labels.
const (
	StageSourcing  = "sourcing"
	StageFiltering = "filtering"
	StageScoring   = "scoring"
	StageDiversity = "diversity"
	StageHydration = "hydration"
)

// Metrics contains Prometheus metrics for the ranking pipeline.
// All operations are thread-safe. A nil *Metrics disables collection.
type Metrics struct {
	requests               *prometheus.CounterVec
	stageDuration          *prometheus.HistogramVec
	stageCandidates        *prometheus.HistogramVec
	externalSourceFailures prometheus.Counter
}

// NewMetrics creates all pipeline collectors. The metrics are not
// registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricFeedRequests,
				Help: "Total number of feed ranking requests by mode",
			},
			[]string{"mode"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricFeedStageDuration,
				Help:    "Duration of each ranking pipeline stage in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"stage"},
		),
		stageCandidates: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricFeedCandidates,
				Help:    "Candidate count surviving each pipeline stage",
				Buckets: []float64{0, 10, 25, 50, 100, 200, 400},
			},
			[]string{"stage"},
		),
		externalSourceFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricExternalSourceFailures,
				Help: "Total number of external content source fetches that degraded to empty",
			},
		),
	}
}

// Register registers all collectors with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.requests,
		m.stageDuration,
		m.stageCandidates,
		m.externalSourceFailures,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) observeRequest(mode string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(mode).Inc()
}

func (m *Metrics) observeStage(stage string, start time.Time, candidates int) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	m.stageCandidates.WithLabelValues(stage).Observe(float64(candidates))
}

func (m *Metrics) observeExternalFailure() {
	if m == nil {
		return
	}
	m.externalSourceFailures.Inc()
}
