// Package sqlite implements the storage.Repository on database/sql with the
// modernc.org/sqlite driver. Batches run inside one transaction with a
// prepared statement; SQLite has no dedicated bulk API, but a transaction
// keeps throughput acceptable for snapshot-sized loads.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "modernc.org/sqlite"

	"scorecard/internal/resolve"
	"scorecard/internal/storage"
)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg.DSN)
	})
}

// Repository is a SQLite-backed storage.Repository.
type Repository struct {
	db *sql.DB
}

// NewRepository opens the SQLite database named by dsn, e.g. "scorecard.db"
// or "file:scorecard.db?cache=shared".
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")

	return &Repository{db: db}, nil
}

// Keys fetches every value of table.column in one query.
func (r *Repository) Keys(ctx context.Context, table, column string) (resolve.KeySet, error) {
	q := fmt.Sprintf("SELECT %s FROM %s", column, table)
	return r.keyQuery(ctx, q)
}

// PeriodKeys fetches the values of table.column for one reporting period.
func (r *Repository) PeriodKeys(ctx context.Context, table, column, periodColumn string, period int) (resolve.KeySet, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", column, table, periodColumn)
	return r.keyQuery(ctx, q, period)
}

func (r *Repository) keyQuery(ctx context.Context, q string, args ...any) (resolve.KeySet, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: key query: %w", err)
	}
	defer rows.Close()

	keys := resolve.KeySet{}
	for rows.Next() {
		var k int64
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("sqlite: key scan: %w", err)
		}
		keys[k] = struct{}{}
	}
	return keys, rows.Err()
}

// ExecBatch executes stmt for every row inside one transaction with a
// prepared statement; any failure rolls back the whole batch.
func (r *Repository) ExecBatch(ctx context.Context, stmt string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin: %w", err)
	}
	ps, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: prepare: %w", err)
	}
	defer ps.Close()

	var total int64
	for _, row := range rows {
		res, err := ps.ExecContext(ctx, row...)
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return total, nil
}

// ExecRow runs stmt for one row as a single auto-committed statement.
func (r *Repository) ExecRow(ctx context.Context, stmt string, row []any) error {
	_, err := r.db.ExecContext(ctx, stmt, row...)
	return err
}

// Query runs a read-only query and materializes the result table.
func (r *Repository) Query(ctx context.Context, q string, args ...any) (*storage.Rows, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := &storage.Rows{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out.Values = append(out.Values, vals)
	}
	return out, rows.Err()
}

// Classify buckets a write error. SQLITE_CONSTRAINT (19) and SQLITE_MISMATCH
// (20), including their extended codes, are single-row data-quality
// failures; everything else is structural.
func (r *Repository) Classify(err error) storage.Class {
	var se *sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case 19, 20:
			return storage.ClassRow
		}
	}
	return storage.ClassStructural
}

// Placeholder renders ?.
func (r *Repository) Placeholder(int) string { return "?" }

// Limit renders the row-cap clause.
func (r *Repository) Limit(n int) string { return fmt.Sprintf("LIMIT %d", n) }

// Close closes the database handle.
func (r *Repository) Close() { _ = r.db.Close() }
