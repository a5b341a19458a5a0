// Package pipeline sequences one snapshot load: parse, clean and map,
// resolve against the store, write. Directory snapshots refresh the
// institutions dimension; metrics snapshots fan out to the three fact
// tables, each committed independently.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"scorecard/internal/clean"
	"scorecard/internal/config"
	"scorecard/internal/faillog"
	"scorecard/internal/metrics"
	csvp "scorecard/internal/parser/csv"
	"scorecard/internal/period"
	"scorecard/internal/resolve"
	"scorecard/internal/schema"
	"scorecard/internal/storage"
	"scorecard/pkg/records"
)

// Summary counts the outcome of one destination table in one run.
type Summary struct {
	Table           string
	Inserted        int64 // rows committed by INSERT
	Updated         int64 // dimension rows committed by UPDATE
	Skipped         int   // rows rejected for a missing key
	Dropped         int   // fact rows referencing an unknown institution
	Deduped         int   // duplicate keys collapsed within the snapshot
	SkippedExisting int   // fact rows already present for the period
	Failed          int   // rows that failed the row fallback and were logged
}

func (s Summary) String() string {
	return fmt.Sprintf(
		"%s: inserted=%d updated=%d skipped=%d dropped=%d deduped=%d skipped_existing=%d failed=%d",
		s.Table, s.Inserted, s.Updated, s.Skipped, s.Dropped, s.Deduped, s.SkippedExisting, s.Failed,
	)
}

// Pipeline is one configured loader over one open repository. It is not
// safe for concurrent use; a run owns its connection.
type Pipeline struct {
	cfg  config.Config
	repo storage.Repository
	flog *faillog.Log
}

// New wires a pipeline from explicit collaborators. Nothing is read from
// globals; the caller owns the repository and failure log lifecycles.
func New(cfg config.Config, repo storage.Repository, flog *faillog.Log) *Pipeline {
	return &Pipeline{cfg: cfg, repo: repo, flog: flog}
}

// Run loads one snapshot file. It returns the per-table summaries for
// every table that was attempted, even when the run aborts; tables already
// committed before a structural failure stay committed.
//
// A metrics snapshot whose filename carries no period aborts before any
// write. Directory snapshots need no period.
func (p *Pipeline) Run(ctx context.Context, path string) ([]Summary, error) {
	source := filepath.Base(path)
	kind := period.Classify(path)

	year := 0
	if kind == period.Metrics {
		y, err := period.FromFilename(path)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", source, err)
		}
		year = y
	}

	start := time.Now()
	recs, skippedLines, err := p.parse(path)
	metrics.RecordStage(p.cfg.Job, "parse", err, time.Since(start))
	if err != nil {
		return nil, err
	}
	if skippedLines > 0 {
		log.Printf("parse: %s: skipped %d malformed lines", source, skippedLines)
	}
	log.Printf("parse: %s: %d records, kind=%s", source, len(recs), kind)

	if kind == period.Directory {
		sum, err := p.loadDimension(ctx, source, recs)
		return []Summary{sum}, err
	}
	return p.loadFacts(ctx, source, recs, year)
}

func (p *Pipeline) parse(path string) ([]records.Record, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	comma := ','
	if p.cfg.Parser.Comma != "" {
		comma = []rune(p.cfg.Parser.Comma)[0]
	}
	par := csvp.NewParser(csvp.Options{Comma: comma, Latin1: p.cfg.Parser.Latin1})
	return par.Parse(f)
}

// loadDimension refreshes the institutions table: known keys become
// UPDATEs, unknown keys become INSERTs.
func (p *Pipeline) loadDimension(ctx context.Context, source string, recs []records.Record) (Summary, error) {
	t := schema.Institutions
	sum := Summary{Table: t.Name}
	keyIdx := t.KeyIndex()

	start := time.Now()
	err := func() error {
		rows, skipped := mapRows(recs, t, 0)
		sum.Skipped = skipped

		rows, dups := resolve.DedupeByKey(rows, keyIdx)
		sum.Deduped = dups

		known, err := p.repo.Keys(ctx, t.Name, t.KeyColumn)
		if err != nil {
			return &storage.StructuralError{Op: "keys " + t.Name, Err: err}
		}

		inserts, updates := resolve.Partition(rows, keyIdx, known)
		w := &storage.Writer{Repo: p.repo, Log: p.flog, Source: source}

		if err := p.writeBatches(ctx, w, t.Name, storage.InsertStatement(p.repo.Placeholder, t), inserts, &sum.Inserted, &sum.Failed); err != nil {
			return err
		}
		return p.writeBatches(ctx, w, t.Name, storage.UpdateStatement(p.repo.Placeholder, t), updates, &sum.Updated, &sum.Failed)
	}()
	metrics.RecordStage(p.cfg.Job, t.Name, err, time.Since(start))

	p.publish(sum)
	log.Printf("load: %s", sum)
	return sum, err
}

// loadFacts fans one metrics snapshot out to the three fact tables. Each
// table is resolved and committed on its own; a structural failure stops
// the run but never rolls back a sibling already committed.
func (p *Pipeline) loadFacts(ctx context.Context, source string, recs []records.Record, year int) ([]Summary, error) {
	dim := schema.Institutions
	known, err := p.repo.Keys(ctx, dim.Name, dim.KeyColumn)
	if err != nil {
		return nil, &storage.StructuralError{Op: "keys " + dim.Name, Err: err}
	}

	var sums []Summary
	if sum, ran, err := p.refreshAccreditation(ctx, source, recs, known); ran {
		sums = append(sums, sum)
		p.publish(sum)
		log.Printf("load: %s", sum)
		if err != nil {
			return sums, err
		}
	}
	for _, t := range schema.FactTables() {
		sum, err := p.loadFact(ctx, source, recs, t, year, known)
		sums = append(sums, sum)
		p.publish(sum)
		log.Printf("load: %s", sum)
		if err != nil {
			return sums, err
		}
	}
	return sums, nil
}

// refreshAccreditation re-asserts the one dimension attribute the
// directory files never carry: the accrediting agency ships only in the
// metrics snapshots, so each fact load batch-updates it on the known
// institutions before any fact is written. ran is false when the snapshot
// has no ACCREDAGENCY column; the dimension is then left alone.
func (p *Pipeline) refreshAccreditation(ctx context.Context, source string, recs []records.Record, known resolve.KeySet) (Summary, bool, error) {
	t := schema.Institutions
	sum := Summary{Table: t.Name}
	if len(recs) == 0 {
		return sum, false, nil
	}
	if _, ok := recs[0][accredColumn]; !ok {
		return sum, false, nil
	}

	start := time.Now()
	err := func() error {
		rows := make([][]any, 0, len(recs))
		for _, rec := range recs {
			key := clean.Value(rec["UNITID"], clean.Numeric)
			if key == nil {
				sum.Skipped++
				continue
			}
			rows = append(rows, []any{clean.Value(rec[accredColumn], clean.Text), key})
		}

		// Parameter order is (agency, key), so the key sits last as in
		// every other UPDATE-by-key batch.
		rows, dups := resolve.DedupeByKey(rows, 1)
		sum.Deduped = dups
		rows, dropped := resolve.FilterKnown(rows, 1, known)
		sum.Dropped = dropped

		ph := p.repo.Placeholder
		stmt := fmt.Sprintf("UPDATE %s SET accredagency = %s WHERE %s = %s",
			t.Name, ph(1), t.KeyColumn, ph(2))
		w := &storage.Writer{Repo: p.repo, Log: p.flog, Source: source}
		return p.writeBatches(ctx, w, t.Name, stmt, rows, &sum.Updated, &sum.Failed)
	}()
	metrics.RecordStage(p.cfg.Job, "accreditation", err, time.Since(start))
	return sum, true, err
}

// accredColumn is the canonical source header of the accrediting agency.
const accredColumn = "ACCREDAGENCY"

// loadFact writes one fact table for one period. Facts are insert-only:
// rows whose (institution, period) pair already exists are skipped up
// front, so re-running a snapshot is a no-op.
func (p *Pipeline) loadFact(ctx context.Context, source string, recs []records.Record, t schema.Table, year int, known resolve.KeySet) (Summary, error) {
	sum := Summary{Table: t.Name}
	keyIdx := t.KeyIndex()

	start := time.Now()
	err := func() error {
		rows, skipped := mapRows(recs, t, year)
		sum.Skipped = skipped

		rows, dups := resolve.DedupeByKey(rows, keyIdx, periodIndex(t))
		sum.Deduped = dups

		rows, dropped := resolve.FilterKnown(rows, keyIdx, known)
		sum.Dropped = dropped

		existing, err := p.repo.PeriodKeys(ctx, t.Name, t.KeyColumn, t.PeriodColumn, year)
		if err != nil {
			return &storage.StructuralError{Op: "period keys " + t.Name, Err: err}
		}
		rows, already := resolve.FilterAbsent(rows, keyIdx, existing)
		sum.SkippedExisting = already

		w := &storage.Writer{Repo: p.repo, Log: p.flog, Source: source}
		return p.writeBatches(ctx, w, t.Name, storage.InsertStatement(p.repo.Placeholder, t), rows, &sum.Inserted, &sum.Failed)
	}()
	metrics.RecordStage(p.cfg.Job, t.Name, err, time.Since(start))
	return sum, err
}

// writeBatches chunks rows by the configured batch size so the transaction
// boundary stays the batch boundary. Partial results from an aborted chunk
// still count.
func (p *Pipeline) writeBatches(ctx context.Context, w *storage.Writer, table, stmt string, rows [][]any, written *int64, failed *int) error {
	size := p.cfg.BatchSize
	if size <= 0 {
		size = len(rows)
	}
	offset := 0
	for offset < len(rows) {
		n := size
		if n > len(rows)-offset {
			n = len(rows) - offset
		}
		res, err := w.Write(ctx, table, stmt, rows[offset:offset+n], offset)
		*written += res.Written
		*failed += res.Failed
		if err != nil {
			return err
		}
		metrics.RecordBatches(p.cfg.Job, 1)
		offset += n
	}
	return nil
}

func (p *Pipeline) publish(sum Summary) {
	metrics.RecordRows(p.cfg.Job, sum.Table, "inserted", sum.Inserted)
	metrics.RecordRows(p.cfg.Job, sum.Table, "updated", sum.Updated)
	metrics.RecordRows(p.cfg.Job, sum.Table, "skipped", int64(sum.Skipped))
	metrics.RecordRows(p.cfg.Job, sum.Table, "dropped", int64(sum.Dropped))
	metrics.RecordRows(p.cfg.Job, sum.Table, "deduped", int64(sum.Deduped))
	metrics.RecordRows(p.cfg.Job, sum.Table, "skipped_existing", int64(sum.SkippedExisting))
	metrics.RecordRows(p.cfg.Job, sum.Table, "failed", int64(sum.Failed))
}

// mapRows cleans and maps every record into t's column order. Records
// without a usable primary key are counted and excluded; nothing else
// rejects a record at this stage.
func mapRows(recs []records.Record, t schema.Table, year int) ([][]any, int) {
	rows := make([][]any, 0, len(recs))
	skipped := 0
	for _, rec := range recs {
		row, err := schema.MapRow(rec, t, year)
		if err != nil {
			skipped++
			continue
		}
		rows = append(rows, row)
	}
	return rows, skipped
}

// periodIndex locates t's period column for composite dedupe keys.
func periodIndex(t schema.Table) int {
	for i, c := range t.Columns {
		if c.Name == t.PeriodColumn {
			return i
		}
	}
	return -1
}
