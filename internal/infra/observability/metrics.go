// Package observability holds the tracker's Prometheus metrics.
//
// Metrics are registered on the default registry via promauto and served by
// the API server at /metrics when enabled.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for OperationsTotal.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// ─── Operation Metrics ──────────────────────────────────────────────────────

// OperationsTotal counts engine operations by kind and outcome.
var OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "studytrack",
	Subsystem: "engine",
	Name:      "operations_total",
	Help:      "Total tracker operations by kind and outcome.",
}, []string{"op", "outcome"})

// OperationDuration tracks how long each operation holds the ledger lock,
// excluding time spent waiting for it.
var OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "studytrack",
	Subsystem: "engine",
	Name:      "operation_duration_seconds",
	Help:      "Time tracker operations hold the ledger lock, in seconds.",
	Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
}, []string{"op"})

// ─── Artifact Metrics ───────────────────────────────────────────────────────

// ArtifactMovesTotal counts artifact relocations by destination.
var ArtifactMovesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "studytrack",
	Subsystem: "artifacts",
	Name:      "moves_total",
	Help:      "Total artifact files moved, by destination area.",
}, []string{"direction"})

// DivergentArtifacts is the latest count of ledger/filesystem disagreements.
var DivergentArtifacts = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "studytrack",
	Subsystem: "artifacts",
	Name:      "divergent",
	Help:      "Artifacts whose location disagrees with the ledger (last reconcile).",
})

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

// LedgerWriteErrors counts failed ledger saves.
var LedgerWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "studytrack",
	Subsystem: "ledger",
	Name:      "write_errors_total",
	Help:      "Total failed ledger writes.",
})

// LedgerCorrupt counts loads that found an unparseable ledger.
var LedgerCorrupt = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "studytrack",
	Subsystem: "ledger",
	Name:      "corrupt_total",
	Help:      "Total ledger loads that found a corrupt document.",
})

// CompletedUnits is the number of completed units after the last write.
var CompletedUnits = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "studytrack",
	Subsystem: "ledger",
	Name:      "completed_units",
	Help:      "Number of completed units in the ledger.",
})

// Prizes is the number of prizes after the last write.
var Prizes = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "studytrack",
	Subsystem: "ledger",
	Name:      "prizes",
	Help:      "Number of prizes in the ledger.",
})

// ─── Helpers ────────────────────────────────────────────────────────────────

// ObserveOperation starts timing op. Call the returned func with the outcome.
func ObserveOperation(op string) func(outcome string) {
	start := time.Now()
	return func(outcome string) {
		OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		OperationsTotal.WithLabelValues(op, outcome).Inc()
	}
}

// RecordLedgerSize updates the ledger gauges.
func RecordLedgerSize(completed, prizes int) {
	CompletedUnits.Set(float64(completed))
	Prizes.Set(float64(prizes))
}
