// Package storage contains the store-agnostic contracts of the loader: the
// Repository interface, a registry of concrete backends, SQL statement
// construction, and the batch writer with row-level failure isolation.
//
// Concrete backends (postgres, sqlite, mssql) live in subpackages and
// register themselves at init time; importing storage/all wires them all in.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"scorecard/internal/resolve"
)

// Class buckets a write error for recovery purposes.
type Class int

const (
	// ClassRow marks data-quality failures isolated to a single row
	// (constraint violation, type mismatch). Recoverable via row fallback.
	ClassRow Class = iota
	// ClassStructural marks failures of the statement or the connection
	// itself. Fatal for the run; no fallback is attempted.
	ClassStructural
)

// Rows is a tabular read result.
type Rows struct {
	Columns []string
	Values  [][]any
}

// Repository is the minimal store surface the pipeline depends on. One
// repository equals one connection (or pool) used sequentially; the pipeline
// never opens a second.
type Repository interface {
	// Keys returns the full set of values in table.column in one bulk query.
	Keys(ctx context.Context, table, column string) (resolve.KeySet, error)

	// PeriodKeys returns the values of table.column restricted to one
	// reporting period, for insert-only fact pre-filtering.
	PeriodKeys(ctx context.Context, table, column, periodColumn string, period int) (resolve.KeySet, error)

	// ExecBatch executes stmt once per row inside a single transaction and
	// reports the total affected-row count. Any failure rolls the whole
	// batch back.
	ExecBatch(ctx context.Context, stmt string, rows [][]any) (int64, error)

	// ExecRow executes stmt for one row in its own transaction scope.
	ExecRow(ctx context.Context, stmt string, row []any) error

	// Query runs a read-only parameterized query and returns the result
	// table. This is the surface consumed by external read collaborators.
	Query(ctx context.Context, q string, args ...any) (*Rows, error)

	// Classify buckets an error returned by ExecBatch/ExecRow.
	Classify(err error) Class

	// Placeholder renders the dialect's parameter marker for 1-based n.
	Placeholder(n int) string

	// Limit renders the dialect's row-cap clause for a query that already
	// carries an ORDER BY.
	Limit(n int) string

	// Close releases the underlying connection or pool.
	Close()
}

// Config selects and configures a backend. The DSN is sourced from config or
// environment at the boundary; it is never embedded in code.
type Config struct {
	Kind string
	DSN  string
}

// Factory constructs a Repository from a Config.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for a backend kind. Called
// from backend packages' init functions.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New opens a Repository of the configured kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unsupported kind %q (registered: %v)", cfg.Kind, ListKinds())
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered backend kinds, sorted.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// StructuralError wraps a fatal store failure: malformed statement, schema
// mismatch, connectivity loss. Callers abort the run when they see one.
type StructuralError struct {
	Op  string
	Err error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("structural store failure in %s: %v", e.Op, e.Err)
}

func (e *StructuralError) Unwrap() error { return e.Err }
