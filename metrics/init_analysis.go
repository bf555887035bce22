package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initAnalysisMetrics() {
	r.AnalysesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "rbd_analyses_total",
			Help: "Total number of reliability analyses",
		},
		[]string{"status"}, // ok, no_path, missing_terminal, unknown_component, too_large, timeout, cancelled, error
	)

	r.AnalysisDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rbd_analysis_duration_seconds",
			Help:    "Duration of whole analyses in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)

	r.StageDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rbd_stage_duration_seconds",
			Help:    "Duration of each analysis stage in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"stage"}, // paths, cutsets, calculate
	)

	r.PathsFound = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rbd_paths_found",
			Help:    "Number of success paths per analysis",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	r.MinimalCutSets = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rbd_minimal_cut_sets",
			Help:    "Number of minimal cut sets per analysis",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		},
	)

	r.UnreliabilityClamped = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "rbd_unreliability_clamped_total",
			Help: "Analyses whose unreliability was clamped into [0, 1]",
		},
	)
}
