// Package postgres implements the storage.Repository on pgx v5. Batch writes
// go through one pipelined pgx.Batch inside an explicit transaction; the
// per-row fallback path uses single auto-committed statements.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"scorecard/internal/resolve"
	"scorecard/internal/storage"
)

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg.DSN)
	})
}

// Repository is a Postgres-backed storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository opens a pgx pool for the given DSN and verifies connectivity.
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repository{pool: pool}, nil
}

// Keys fetches every value of table.column in one query.
func (r *Repository) Keys(ctx context.Context, table, column string) (resolve.KeySet, error) {
	q := fmt.Sprintf("SELECT %s FROM %s", pgIdent(column), pgIdent(table))
	return r.keyQuery(ctx, q)
}

// PeriodKeys fetches the values of table.column for one reporting period.
func (r *Repository) PeriodKeys(ctx context.Context, table, column, periodColumn string, period int) (resolve.KeySet, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", pgIdent(column), pgIdent(table), pgIdent(periodColumn))
	return r.keyQuery(ctx, q, period)
}

func (r *Repository) keyQuery(ctx context.Context, q string, args ...any) (resolve.KeySet, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: key query: %w", err)
	}
	defer rows.Close()

	keys := resolve.KeySet{}
	for rows.Next() {
		var k int64
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("postgres: key scan: %w", err)
		}
		keys[k] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: key rows: %w", err)
	}
	return keys, nil
}

// ExecBatch pipelines stmt for every row inside one transaction. Any failure
// rolls back the whole batch.
func (r *Repository) ExecBatch(ctx context.Context, stmt string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	b := &pgx.Batch{}
	for _, row := range rows {
		b.Queue(stmt, row...)
	}

	var total int64
	br := tx.SendBatch(ctx, b)
	for range rows {
		ct, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return 0, err
		}
		total += ct.RowsAffected()
	}
	if err := br.Close(); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit: %w", err)
	}
	return total, nil
}

// ExecRow runs stmt for one row as a single auto-committed statement, so a
// failure here cannot roll back previously committed rows.
func (r *Repository) ExecRow(ctx context.Context, stmt string, row []any) error {
	_, err := r.pool.Exec(ctx, stmt, row...)
	return err
}

// Query runs a read-only query and materializes the result table.
func (r *Repository) Query(ctx context.Context, q string, args ...any) (*storage.Rows, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := &storage.Rows{}
	for _, fd := range rows.FieldDescriptions() {
		out.Columns = append(out.Columns, fd.Name)
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		out.Values = append(out.Values, vals)
	}
	return out, rows.Err()
}

// Classify buckets a write error. SQLSTATE classes 22 (data exception) and
// 23 (integrity constraint violation) are single-row data-quality failures;
// everything else, including non-Postgres errors such as a dropped
// connection, is structural.
func (r *Repository) Classify(err error) storage.Class {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "22", "23":
			return storage.ClassRow
		}
	}
	return storage.ClassStructural
}

// Placeholder renders $n.
func (r *Repository) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

// Limit renders the row-cap clause.
func (r *Repository) Limit(n int) string { return fmt.Sprintf("LIMIT %d", n) }

// Close releases the pool.
func (r *Repository) Close() { r.pool.Close() }

// pgIdent quotes a single identifier.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
