package datadog

import (
	"sort"
	"testing"

	"scorecard/internal/metrics"
)

func TestNewBackend_RequiresAddr(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend(Config{}); err == nil {
		t.Fatal("NewBackend(empty Addr) error = nil, want error")
	}
}

func TestNewBackend_UDP(t *testing.T) {
	t.Parallel()

	// UDP is connectionless, so no agent needs to be listening.
	b, err := NewBackend(Config{
		Addr:      "127.0.0.1:8125",
		Namespace: "scorecard.",
	})
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	if b.client == nil {
		t.Fatal("NewBackend() client = nil")
	}

	b.IncCounter("load_rows_total", 3, metrics.Labels{"table": "students", "kind": "inserted"})
	b.ObserveHistogram("load_stage_duration_seconds", 0.25, metrics.Labels{"stage": "facts"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

func TestBackend_NilClientIsSafe(t *testing.T) {
	t.Parallel()

	var b Backend
	b.IncCounter("load_batches_total", 1, nil)
	b.ObserveHistogram("load_stage_duration_seconds", 1.5, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

func TestLabelsToTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   metrics.Labels
		want []string
	}{
		{"nil", nil, nil},
		{"empty", metrics.Labels{}, nil},
		{"one", metrics.Labels{"table": "financials"}, []string{"table:financials"}},
		{"two", metrics.Labels{"table": "students", "kind": "failed"},
			[]string{"kind:failed", "table:students"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := labelsToTags(tt.in)
			sort.Strings(got)
			if len(got) != len(tt.want) {
				t.Fatalf("labelsToTags(%v) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("labelsToTags(%v) = %v, want %v", tt.in, got, tt.want)
				}
			}
		})
	}
}
