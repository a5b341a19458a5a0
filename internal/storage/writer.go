package storage

import (
	"context"

	"scorecard/internal/faillog"
)

// Result summarizes one batch write.
type Result struct {
	Written int64 // rows committed (bulk or fallback)
	Failed  int   // rows that failed in the fallback path and were logged
}

// Writer executes batch writes with partial-failure isolation. The bulk path
// runs the whole parameter list in one transaction; if that fails with a
// data-quality error, the writer does not trust the bulk error to identify
// the offending row and re-executes the same list row by row, each row in
// its own transaction. Rows that fail in the fallback are appended to the
// failure log with full context and skipped; the rest continue. Structural
// failures abort immediately with a *StructuralError.
type Writer struct {
	Repo   Repository
	Log    *faillog.Log
	Source string // snapshot file identifier for failure records
}

// Write runs stmt over rows. table names the destination for logging only.
// base is the number of rows of the same parameter list already handled by
// earlier Write calls, so failure records carry the row's position in the
// whole list rather than within one chunk.
func (w *Writer) Write(ctx context.Context, table, stmt string, rows [][]any, base int) (Result, error) {
	if len(rows) == 0 {
		return Result{}, nil
	}

	n, err := w.Repo.ExecBatch(ctx, stmt, rows)
	if err == nil {
		return Result{Written: n}, nil
	}
	if w.Repo.Classify(err) == ClassStructural {
		return Result{}, &StructuralError{Op: "batch " + table, Err: err}
	}

	// Data-quality failure somewhere in the batch; isolate it row by row.
	var res Result
	for i, row := range rows {
		if err := w.Repo.ExecRow(ctx, stmt, row); err != nil {
			if w.Repo.Classify(err) == ClassStructural {
				return res, &StructuralError{Op: "row " + table, Err: err}
			}
			if w.Log != nil {
				w.Log.Add(w.Source, table, base+i+1, row, err)
			}
			res.Failed++
			continue
		}
		res.Written++
	}
	return res, nil
}
