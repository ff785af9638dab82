package engine

import "github.com/luxfi/modality/metrics"

// runnerMetrics are the counters and gauges a Runner updates as it advances
// rounds, certifies blocks, and commits or skips anchors.
type runnerMetrics struct {
	roundsAdvanced   metrics.Counter
	certsFormed      metrics.Counter
	anchorsCommitted metrics.Counter
	anchorsSkipped   metrics.Counter
	currentRound     metrics.Gauge
}

func newRunnerMetrics(reg metrics.Registry) *runnerMetrics {
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	return &runnerMetrics{
		roundsAdvanced:   reg.NewCounter("rounds_advanced"),
		certsFormed:      reg.NewCounter("certificates_formed"),
		anchorsCommitted: reg.NewCounter("anchors_committed"),
		anchorsSkipped:   reg.NewCounter("anchors_skipped"),
		currentRound:     reg.NewGauge("current_round"),
	}
}
