// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// pull-style scraping does not fit a batch loader that exits when the
// snapshot is done, so collected metrics are pushed to a Pushgateway at
// the end of the run instead of being exposed on an HTTP endpoint. All
// Prometheus-specific dependencies live here; the rest of the project
// depends only on metrics.Backend.
package prompush

import (
	"fmt"

	"scorecard/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stageCounter  *prometheus.CounterVec // "load_stage_total"
	stageDuration *prometheus.SummaryVec // "load_stage_duration_seconds"
	rowCounter    *prometheus.CounterVec // "load_rows_total"
	batchCounter  prometheus.Counter     // "load_batches_total"
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (often the snapshot being loaded).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "scorecard"
	}

	reg := prometheus.NewRegistry()

	// job is the Pushgateway grouping key, so the collectors only carry
	// the per-series labels.
	stageCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "load_stage_total",
			Help: "Total number of load stage executions, partitioned by stage and status.",
		},
		[]string{"stage", "status"},
	)
	stageDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "load_stage_duration_seconds",
			Help:       "Duration of load stages in seconds, partitioned by stage and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"stage", "status"},
	)

	// ROW metrics: table plus kind (inserted, updated, dropped, ...).
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "load_rows_total",
			Help: "Row-level counts per table and kind (inserted, updated, dropped, etc.).",
		},
		[]string{"table", "kind"},
	)

	// BATCH metrics: simple counter per job (job is grouping label via Pushgateway).
	batchCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "load_batches_total",
			Help: "Total number of write batches flushed for this load.",
		},
	)

	if err := reg.Register(stageCounter); err != nil {
		return nil, fmt.Errorf("prompush: register stage counter: %w", err)
	}
	if err := reg.Register(stageDuration); err != nil {
		return nil, fmt.Errorf("prompush: register stage summary: %w", err)
	}
	if err := reg.Register(rowCounter); err != nil {
		return nil, fmt.Errorf("prompush: register row counter: %w", err)
	}
	if err := reg.Register(batchCounter); err != nil {
		return nil, fmt.Errorf("prompush: register batch counter: %w", err)
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		stageCounter:  stageCounter,
		stageDuration: stageDuration,
		rowCounter:    rowCounter,
		batchCounter:  batchCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "load_stage_total":
		if b.stageCounter == nil {
			return
		}
		stage := labels["stage"]
		status := labels["status"]
		b.stageCounter.WithLabelValues(stage, status).Add(delta)

	case "load_rows_total":
		if b.rowCounter == nil {
			return
		}
		table := labels["table"]
		kind := labels["kind"]
		b.rowCounter.WithLabelValues(table, kind).Add(delta)

	case "load_batches_total":
		if b.batchCounter == nil {
			return
		}
		b.batchCounter.Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != "load_stage_duration_seconds" || b.stageDuration == nil {
		return
	}
	stage := labels["stage"]
	status := labels["status"]
	b.stageDuration.WithLabelValues(stage, status).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
