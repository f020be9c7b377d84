// Package metrics exposes Prometheus metrics for the assignment engine
// and the SLA sweeper.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds only this application's metrics, not the Go defaults.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// AssignmentsResolvedTotal counts resolver outcomes by result.
var AssignmentsResolvedTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "caseline",
	Subsystem: "resolver",
	Name:      "assignments_total",
	Help:      "Auto-assignment attempts by outcome",
}, []string{"outcome"})

// AssignmentScore observes the winning candidate's weighted score.
var AssignmentScore = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "caseline",
	Subsystem: "resolver",
	Name:      "winning_score",
	Help:      "Weighted score of the selected candidate",
	Buckets:   []float64{50, 60, 70, 75, 80, 85, 90, 95, 100},
})

// SweepDurationSeconds tracks time per sweep pass.
var SweepDurationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "caseline",
	Subsystem: "sweeper",
	Name:      "duration_seconds",
	Help:      "Time taken by one SLA sweep pass",
	Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
})

// SweepProcessed tracks how many open assignments each pass examined.
var SweepProcessed = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "caseline",
	Subsystem: "sweeper",
	Name:      "assignments_processed",
	Help:      "Open assignments examined per sweep pass",
	Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
})

// SweepTransitionsTotal counts SLA transitions applied by the sweeper.
var SweepTransitionsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "caseline",
	Subsystem: "sweeper",
	Name:      "transitions_total",
	Help:      "SLA status transitions applied, by target status",
}, []string{"to"})

// EscalationsTotal counts escalation events created.
var EscalationsTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "caseline",
	Subsystem: "sweeper",
	Name:      "escalations_total",
	Help:      "Escalation events created",
})

// SweepFailuresTotal counts failed sweep passes.
var SweepFailuresTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "caseline",
	Subsystem: "sweeper",
	Name:      "failures_total",
	Help:      "Sweep passes that failed and were left for the next tick",
})
