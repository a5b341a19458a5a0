// Package faillog appends row-level load failures to a persistent log file
// for offline triage. The log is append-only: the pipeline never reads,
// truncates, or rotates it. One multi-line record is written per failed row
// with timestamp, source file, row position, the mapped values, and the
// failure description.
package faillog

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Log is an append-only failure log plus in-memory reason tallies for the
// end-of-run summary.
type Log struct {
	mu      sync.Mutex
	f       *os.File
	count   int
	reasons map[string]int
	now     func() time.Time // test seam
}

// Open opens (or creates) the failure log at path in append mode.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("faillog: open %s: %w", path, err)
	}
	return &Log{f: f, reasons: make(map[string]int), now: time.Now}, nil
}

// Add appends one failure record. source is the snapshot file being loaded,
// table the destination, pos the row's position within its batch (1-based),
// row the mapped values, and cause the failure.
func (l *Log) Add(source, table string, pos int, row []any, cause error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.count++
	l.reasons[table]++

	fmt.Fprintf(l.f, "Timestamp: %s\n", l.now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(l.f, "Row %d failed in %s (table %s)\n", pos, source, table)
	fmt.Fprintf(l.f, "ERROR: %v\n", cause)
	fmt.Fprintf(l.f, "Row data: %v\n\n", row)
}

// Count returns the number of records written so far.
func (l *Log) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// ByTable returns a copy of the per-table failure tallies.
func (l *Log) ByTable() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int, len(l.reasons))
	for k, v := range l.reasons {
		out[k] = v
	}
	return out
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
