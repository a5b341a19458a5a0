// Package datadog emits loader metrics over DogStatsD.
//
// It adapts metrics.Backend to the official statsd client, mapping
// metric labels onto Datadog tags. Everything Datadog-specific stays in
// this package; the loader only ever sees metrics.Backend.
package datadog

import (
	"fmt"

	"scorecard/internal/metrics"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// Config configures the DogStatsD connection.
type Config struct {
	// Addr is the agent address, e.g. "127.0.0.1:8125" or
	// "unix:///var/run/datadog/dsd.socket". Required.
	Addr string

	// Namespace prefixes every metric name, e.g. "scorecard.".
	Namespace string

	// GlobalTags are attached to every metric, e.g.
	// []string{"env:prod", "service:scorecard"}.
	GlobalTags []string
}

// Backend sends counters and histograms to a DogStatsD agent. Install
// it with metrics.SetBackend; stage and row counts then flow to Datadog
// instead of the nop default.
type Backend struct {
	client *statsd.Client
}

// NewBackend opens a statsd client against cfg.Addr. An empty Addr is
// an error rather than a silent nop.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("datadog: Addr is required")
	}

	var opts []statsd.Option
	if cfg.Namespace != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Namespace))
	}
	if len(cfg.GlobalTags) > 0 {
		opts = append(opts, statsd.WithTags(cfg.GlobalTags))
	}

	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("datadog: create client: %w", err)
	}

	return &Backend{client: c}, nil
}

// IncCounter implements metrics.Backend using a Count metric, with
// labels rendered as "key:value" tags.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	// Count takes an int64; fractional deltas truncate.
	b.client.Count(name, int64(delta), labelsToTags(labels), 1)
}

// ObserveHistogram implements metrics.Backend using a Histogram metric.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	b.client.Histogram(name, value, labelsToTags(labels), 1)
}

// Flush closes the client, which drains anything still buffered. Meant
// for process shutdown.
func (b *Backend) Flush() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

func labelsToTags(lbls metrics.Labels) []string {
	if len(lbls) == 0 {
		return nil
	}
	out := make([]string, 0, len(lbls))
	for k, v := range lbls {
		out = append(out, fmt.Sprintf("%s:%s", k, v))
	}
	return out
}
