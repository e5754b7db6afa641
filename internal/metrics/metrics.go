// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the ingestion pipeline.
//
// It exposes a narrow Backend interface (counters and durations) behind a
// global, pluggable backend that defaults to a no-op, so instrumentation is
// always safe to call. Concrete systems (Prometheus Pushgateway, DogStatsD)
// live in sub-packages.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// Metric names emitted by this package.
const (
	DatasetTotal    = "ingest_dataset_total"
	DatasetDuration = "ingest_dataset_duration_seconds"
	RowsTotal       = "ingest_rows_total"
	PhaseTotal      = "pipeline_phase_total"
	PhaseDuration   = "pipeline_phase_duration_seconds"
)

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Reset reinstalls the no-op backend.
func Reset() { backend = nopBackend{} }

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordDataset counts one dataset load and its duration, labeled with the
// outcome kind (succeeded, skipped_missing_file, failed).
func RecordDataset(dataset, outcome string, d time.Duration) {
	lbls := Labels{
		"dataset": dataset,
		"outcome": outcome,
	}
	backend.IncCounter(DatasetTotal, 1, lbls)
	backend.ObserveHistogram(DatasetDuration, d.Seconds(), lbls)
}

// RecordRows increments a row-level counter for the given dataset and kind.
//
// Kinds used by the loader:
//   - "loaded"
//   - "nullified_dates"
//   - "nullified_numbers"
func RecordRows(dataset, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{
		"dataset": dataset,
		"kind":    kind,
	})
}

// RecordPhase measures one orchestrated phase attempt (ingest, transform).
func RecordPhase(phase string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"phase":  phase,
		"status": status,
	}
	backend.IncCounter(PhaseTotal, 1, lbls)
	backend.ObserveHistogram(PhaseDuration, d.Seconds(), lbls)
}
