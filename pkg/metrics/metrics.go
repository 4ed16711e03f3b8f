// Package metrics owns the prometheus collectors for knowledge retrieval and
// the support dialogue. A nil *Recorder is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Retrieval outcomes.
const (
	OutcomeMatch   = "match"
	OutcomeNoMatch = "no_match"
	OutcomeError   = "error"
)

// Build results.
const (
	BuildBuilt   = "built"
	BuildSkipped = "skipped"
	BuildFailed  = "failed"
)

// Recorder groups the collectors registered against a single registry.
type Recorder struct {
	retrievals       *prometheus.CounterVec
	retrievalSeconds prometheus.Histogram
	matchesReturned  prometheus.Histogram
	builds           *prometheus.CounterVec
	entries          prometheus.Gauge
	replies          *prometheus.CounterVec
}

// New registers all collectors against reg. Tests pass a fresh
// prometheus.NewRegistry so registrations never collide.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		retrievals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "banksupport",
			Subsystem: "knowledge",
			Name:      "retrievals_total",
			Help:      "Retrieval gate calls partitioned by outcome.",
		}, []string{"outcome"}),
		retrievalSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "banksupport",
			Subsystem: "knowledge",
			Name:      "retrieval_duration_seconds",
			Help:      "Embed, search and filter latency of a retrieval.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		matchesReturned: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "banksupport",
			Subsystem: "knowledge",
			Name:      "matches_returned",
			Help:      "Number of matches surviving the similarity threshold.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10},
		}),
		builds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "banksupport",
			Subsystem: "knowledge",
			Name:      "builds_total",
			Help:      "Knowledge store builds partitioned by result.",
		}, []string{"result"}),
		entries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "banksupport",
			Subsystem: "knowledge",
			Name:      "entries",
			Help:      "Entries published in the knowledge store.",
		}),
		replies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "banksupport",
			Subsystem: "support",
			Name:      "replies_total",
			Help:      "Dialogue replies partitioned by kind.",
		}, []string{"kind"}),
	}
}

// ObserveRetrieval records one gate call.
func (r *Recorder) ObserveRetrieval(outcome string, elapsed time.Duration, matches int) {
	if r == nil {
		return
	}
	r.retrievals.WithLabelValues(outcome).Inc()
	r.retrievalSeconds.Observe(elapsed.Seconds())
	if outcome != OutcomeError {
		r.matchesReturned.Observe(float64(matches))
	}
}

// ObserveBuild records a build attempt; entries is only applied on success.
func (r *Recorder) ObserveBuild(result string, entries int) {
	if r == nil {
		return
	}
	r.builds.WithLabelValues(result).Inc()
	if result == BuildBuilt || result == BuildSkipped {
		r.entries.Set(float64(entries))
	}
}

// ObserveReply records a dialogue reply kind.
func (r *Recorder) ObserveReply(kind string) {
	if r == nil {
		return
	}
	r.replies.WithLabelValues(kind).Inc()
}
