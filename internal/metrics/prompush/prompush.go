// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// A batch job has no scrape endpoint, so collected metrics are pushed to a
// Pushgateway on Flush, grouped under the configured job name.
package prompush

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"ecomstaging/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	datasetCounter  *prometheus.CounterVec // ingest_dataset_total
	datasetDuration *prometheus.SummaryVec // ingest_dataset_duration_seconds
	rowCounter      *prometheus.CounterVec // ingest_rows_total
	phaseCounter    *prometheus.CounterVec // pipeline_phase_total
	phaseDuration   *prometheus.SummaryVec // pipeline_phase_duration_seconds
}

var objectives = map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name; defaults to "ecomstaging".
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, errors.New("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "ecomstaging"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		datasetCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.DatasetTotal,
			Help: "Dataset loads, partitioned by dataset and outcome.",
		}, []string{"dataset", "outcome"}),
		datasetDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.DatasetDuration,
			Help:       "Duration of dataset loads in seconds.",
			Objectives: objectives,
		}, []string{"dataset", "outcome"}),
		rowCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Row-level counts per dataset and kind (loaded, nullified_dates, nullified_numbers).",
		}, []string{"dataset", "kind"}),
		phaseCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.PhaseTotal,
			Help: "Pipeline phase attempts, partitioned by phase and status.",
		}, []string{"phase", "status"}),
		phaseDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.PhaseDuration,
			Help:       "Duration of pipeline phase attempts in seconds.",
			Objectives: objectives,
		}, []string{"phase", "status"}),
	}

	for _, c := range []prometheus.Collector{b.datasetCounter, b.datasetDuration, b.rowCounter, b.phaseCounter, b.phaseDuration} {
		if err := b.reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "prompush: register collector")
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.DatasetTotal:
		b.datasetCounter.WithLabelValues(labels["dataset"], labels["outcome"]).Add(delta)
	case metrics.RowsTotal:
		b.rowCounter.WithLabelValues(labels["dataset"], labels["kind"]).Add(delta)
	case metrics.PhaseTotal:
		b.phaseCounter.WithLabelValues(labels["phase"], labels["status"]).Add(delta)
	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case metrics.DatasetDuration:
		b.datasetDuration.WithLabelValues(labels["dataset"], labels["outcome"]).Observe(value)
	case metrics.PhaseDuration:
		b.phaseDuration.WithLabelValues(labels["phase"], labels["status"]).Observe(value)
	}
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
