// Package resolve partitions mapped rows against a snapshot of known entity
// keys: dimension batches split into insert vs update sets, fact batches are
// filtered to rows whose foreign key is already a dimension row.
//
// The known-keys snapshot comes from one bulk query per batch (the storage
// layer's Keys/PeriodKeys), never from per-row probes.
package resolve

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// KeySet is a membership snapshot of entity keys.
type KeySet map[int64]struct{}

// Has reports membership of k.
func (s KeySet) Has(k int64) bool {
	_, ok := s[k]
	return ok
}

// keyOf extracts the int64 entity key at idx. Mapped rows always carry the
// key as int64 (the mapper rejects keyless rows), so a mismatch here is a
// programming error surfaced as a non-match.
func keyOf(row []any, idx int) (int64, bool) {
	if idx < 0 || idx >= len(row) {
		return 0, false
	}
	k, ok := row[idx].(int64)
	return k, ok
}

// Partition splits a dimension batch into insert rows (key unknown) and
// update rows (key known). Every input row lands in exactly one output set.
// Update rows are reshaped so the key becomes the final positional argument,
// matching an UPDATE ... WHERE key = ? parameter order; insert rows keep
// key-first schema order.
func Partition(rows [][]any, keyIdx int, known KeySet) (inserts, updates [][]any) {
	for _, row := range rows {
		k, ok := keyOf(row, keyIdx)
		if ok && known.Has(k) {
			updates = append(updates, moveKeyLast(row, keyIdx))
			continue
		}
		inserts = append(inserts, row)
	}
	return inserts, updates
}

// FilterKnown keeps only fact rows whose foreign key is in known, returning
// the kept rows and the count of dropped orphans. Orphans are expected and
// benign: a fact referencing an undefined entity is not actionable data.
func FilterKnown(rows [][]any, keyIdx int, known KeySet) (kept [][]any, dropped int) {
	kept = rows[:0]
	for _, row := range rows {
		if k, ok := keyOf(row, keyIdx); ok && known.Has(k) {
			kept = append(kept, row)
			continue
		}
		dropped++
	}
	return kept, dropped
}

// FilterAbsent is the complement of FilterKnown: it keeps only rows whose
// key is NOT in existing, returning the kept rows and the count skipped.
// Fact tables are insert-only; rows already present for the period are
// skipped so a re-run of the same snapshot writes nothing.
func FilterAbsent(rows [][]any, keyIdx int, existing KeySet) (kept [][]any, skipped int) {
	kept = rows[:0]
	for _, row := range rows {
		if k, ok := keyOf(row, keyIdx); ok && existing.Has(k) {
			skipped++
			continue
		}
		kept = append(kept, row)
	}
	return kept, skipped
}

// DedupeByKey collapses rows that share the same composite key, keeping the
// last occurrence (later file rows win, as with repeated directory entries).
// Key identity is an xxh3 hash over the stringified key columns; nil key
// parts hash as a fixed marker so (nil, 2021) and (0, 2021) stay distinct.
// Relative order of the winners is preserved. Returns the winners and the
// number of duplicates removed.
func DedupeByKey(rows [][]any, keyIdx ...int) ([][]any, int) {
	if len(rows) == 0 || len(keyIdx) == 0 {
		return rows, 0
	}

	hash := func(row []any) uint64 {
		var b []byte
		for _, ix := range keyIdx {
			if ix < 0 || ix >= len(row) || row[ix] == nil {
				b = append(b, "\x00nil"...)
			} else {
				b = fmt.Appendf(b, "%v", row[ix])
			}
			b = append(b, 0x1f)
		}
		return xxh3.Hash(b)
	}

	last := make(map[uint64]int, len(rows))
	for i, row := range rows {
		last[hash(row)] = i
	}
	if len(last) == len(rows) {
		return rows, 0
	}

	out := rows[:0]
	for i, row := range rows {
		if last[hash(row)] == i {
			out = append(out, row)
		}
	}
	return out, len(rows) - len(out)
}

// moveKeyLast returns a copy of row with the key column moved to the end and
// the remaining columns left in schema order.
func moveKeyLast(row []any, keyIdx int) []any {
	out := make([]any, 0, len(row))
	for i, v := range row {
		if i == keyIdx {
			continue
		}
		out = append(out, v)
	}
	return append(out, row[keyIdx])
}
