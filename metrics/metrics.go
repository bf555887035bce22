package metrics

import (
	"time"

	"github.com/meikuraledutech/rbd"
)

var _ rbd.Recorder = (*Registry)(nil)

// RecordAnalysis records a finished analysis by status
func (r *Registry) RecordAnalysis(status string, duration time.Duration) {
	r.AnalysesTotal.WithLabelValues(status).Inc()
	r.AnalysisDuration.Observe(duration.Seconds())
}

// RecordStage records the duration of one analysis stage
func (r *Registry) RecordStage(stage string, duration time.Duration) {
	r.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordCutSets records the path and minimal cut set counts of an analysis
func (r *Registry) RecordCutSets(paths, cutSets int) {
	r.PathsFound.Observe(float64(paths))
	r.MinimalCutSets.Observe(float64(cutSets))
}

// RecordClamp counts an unreliability clamped into [0, 1]
func (r *Registry) RecordClamp() {
	r.UnreliabilityClamped.Inc()
}

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
