// Copyright (C) 2020-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"github.com/luxfi/metric"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Registerer is an interface for registering prometheus metrics.
type Registerer interface {
	prometheus.Registerer
}

// Registry is an interface for a prometheus registry.
type Registry interface {
	prometheus.Registerer
	prometheus.Gatherer
}

// NewRegistry creates a new prometheus registry.
func NewRegistry() Registry {
	return prometheus.NewRegistry()
}

// MultiGatherer gathers metrics from multiple named sources into one
// response, matching metric.MultiGatherer so this package's registry can be
// handed to anything in the pack expecting that shape.
type MultiGatherer interface {
	metric.Gatherer

	// Register adds a new gatherer to this multi-gatherer.
	Register(string, metric.Gatherer) error
}

// multiGatherer implements MultiGatherer.
type multiGatherer struct {
	gatherers map[string]metric.Gatherer
}

// NewMultiGatherer creates a new multi-gatherer.
func NewMultiGatherer() MultiGatherer {
	return &multiGatherer{
		gatherers: make(map[string]metric.Gatherer),
	}
}

// Register adds a new gatherer.
func (mg *multiGatherer) Register(name string, gatherer metric.Gatherer) error {
	mg.gatherers[name] = gatherer
	return nil
}

// Gather implements metric.Gatherer.
func (mg *multiGatherer) Gather() ([]*dto.MetricFamily, error) {
	var result []*dto.MetricFamily
	for _, g := range mg.gatherers {
		families, err := g.Gather()
		if err != nil {
			return nil, err
		}
		result = append(result, families...)
	}
	return result, nil
}

// Metrics is the HTTP-exposed view of the Consensus Runner's counters,
// registered alongside the round/cert/anchor gauges package `metrics`
// already tracks internally; this is the subset worth exposing over
// Prometheus scrape rather than just the in-process Registry.
type Metrics interface {
	// RoundsAdvanced counts rounds this validator has advanced past.
	RoundsAdvanced() prometheus.Counter
	// CertificatesFormed counts certificates this validator has produced.
	CertificatesFormed() prometheus.Counter
	// AnchorsCommitted counts anchors this validator has committed.
	AnchorsCommitted() prometheus.Counter
	// AnchorsSkipped counts anchors this validator decided not to commit.
	AnchorsSkipped() prometheus.Counter
}

// NewMetrics creates a new Metrics instance registered under namespace.
func NewMetrics(namespace string, registerer prometheus.Registerer) (Metrics, error) {
	m := &consensusMetrics{
		roundsAdvanced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_advanced",
			Help:      "Number of rounds this validator has advanced past",
		}),
		certificatesFormed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificates_formed",
			Help:      "Number of certificates this validator has produced",
		}),
		anchorsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anchors_committed",
			Help:      "Number of anchors this validator has committed",
		}),
		anchorsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anchors_skipped",
			Help:      "Number of anchors this validator decided not to commit",
		}),
	}

	for _, c := range []prometheus.Counter{m.roundsAdvanced, m.certificatesFormed, m.anchorsCommitted, m.anchorsSkipped} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

type consensusMetrics struct {
	roundsAdvanced     prometheus.Counter
	certificatesFormed prometheus.Counter
	anchorsCommitted   prometheus.Counter
	anchorsSkipped     prometheus.Counter
}

func (m *consensusMetrics) RoundsAdvanced() prometheus.Counter     { return m.roundsAdvanced }
func (m *consensusMetrics) CertificatesFormed() prometheus.Counter { return m.certificatesFormed }
func (m *consensusMetrics) AnchorsCommitted() prometheus.Counter   { return m.anchorsCommitted }
func (m *consensusMetrics) AnchorsSkipped() prometheus.Counter     { return m.anchorsSkipped }
