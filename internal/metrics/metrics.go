// Package metrics exposes Prometheus collectors for sync runs
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "artistsync"

// Metrics groups the collectors updated by the sync pipeline. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	songs        *prometheus.CounterVec
	ladderStages *prometheus.CounterVec
	retries      *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	batches      prometheus.Counter
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		songs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "songs_total",
			Help:      "Songs processed, by outcome and failure kind.",
		}, []string{"status", "kind"}),
		ladderStages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ladder_stage_total",
			Help:      "Query ladder stages attempted, by stage and outcome.",
		}, []string{"stage", "outcome"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retried external operations.",
		}, []string{"operation"}),
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of pipeline steps.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"step"}),
		batches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Artist sync batches run.",
		}),
	}
}

func (m *Metrics) SongProcessed(status, kind string) {
	if m == nil {
		return
	}
	m.songs.WithLabelValues(status, kind).Inc()
}

func (m *Metrics) LadderStage(stage, outcome string) {
	if m == nil {
		return
	}
	m.ladderStages.WithLabelValues(stage, outcome).Inc()
}

func (m *Metrics) Retry(operation string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(operation).Inc()
}

func (m *Metrics) ObserveStep(step string, seconds float64) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Observe(seconds)
}

func (m *Metrics) BatchStarted() {
	if m == nil {
		return
	}
	m.batches.Inc()
}
