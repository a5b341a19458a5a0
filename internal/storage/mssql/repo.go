// Package mssql implements the storage.Repository on database/sql with the
// microsoft/go-mssqldb driver.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	mssql "github.com/microsoft/go-mssqldb"

	"scorecard/internal/resolve"
	"scorecard/internal/storage"
)

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg.DSN)
	})
}

// rowErrorNumbers are SQL Server error numbers that indicate a data-quality
// problem confined to a single row rather than a broken statement:
// 515 NULL insert, 547 constraint conflict, 2601/2627 duplicate key,
// 8152/2628 string truncation, 245 conversion failure.
var rowErrorNumbers = map[int32]struct{}{
	245: {}, 515: {}, 547: {}, 2601: {}, 2627: {}, 2628: {}, 8152: {},
}

// Repository is an MSSQL-backed storage.Repository.
type Repository struct {
	db *sql.DB
}

// NewRepository opens a SQL Server connection for the given DSN.
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("mssql: DSN must not be empty")
	}
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("mssql: open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mssql: ping: %w", err)
	}
	return &Repository{db: db}, nil
}

// Keys fetches every value of table.column in one query.
func (r *Repository) Keys(ctx context.Context, table, column string) (resolve.KeySet, error) {
	q := fmt.Sprintf("SELECT %s FROM %s", column, table)
	return r.keyQuery(ctx, q)
}

// PeriodKeys fetches the values of table.column for one reporting period.
func (r *Repository) PeriodKeys(ctx context.Context, table, column, periodColumn string, period int) (resolve.KeySet, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = @p1", column, table, periodColumn)
	return r.keyQuery(ctx, q, period)
}

func (r *Repository) keyQuery(ctx context.Context, q string, args ...any) (resolve.KeySet, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("mssql: key query: %w", err)
	}
	defer rows.Close()

	keys := resolve.KeySet{}
	for rows.Next() {
		var k int64
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("mssql: key scan: %w", err)
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
		return 0, fmt.Errorf("mssql: begin: %w", err)
	}
	ps, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("mssql: prepare: %w", err)
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
		return 0, fmt.Errorf("mssql: commit: %w", err)
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

// Classify buckets a write error by SQL Server error number; unknown numbers
// and non-driver errors are structural.
func (r *Repository) Classify(err error) storage.Class {
	var me mssql.Error
	if errors.As(err, &me) {
		if _, ok := rowErrorNumbers[me.Number]; ok {
			return storage.ClassRow
		}
	}
	return storage.ClassStructural
}

// Placeholder renders @pN.
func (r *Repository) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

// Limit renders the T-SQL row cap; LIMIT is not T-SQL, and OFFSET-FETCH
// requires the ORDER BY every capped query here carries.
func (r *Repository) Limit(n int) string {
	return fmt.Sprintf("OFFSET 0 ROWS FETCH NEXT %d ROWS ONLY", n)
}

// Close closes the database handle.
func (r *Repository) Close() { _ = r.db.Close() }
