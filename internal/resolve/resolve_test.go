package resolve

import (
	"reflect"
	"testing"
)

func row(vals ...any) []any { return vals }

// TestPartition_ExhaustiveDisjoint verifies every dimension row lands in
// exactly one of {insert, update}.
func TestPartition_ExhaustiveDisjoint(t *testing.T) {
	t.Parallel()

	rows := [][]any{
		row(int64(100), "A"),
		row(int64(200), "B"),
		row(int64(300), "C"),
	}
	known := KeySet{200: {}}

	inserts, updates := Partition(rows, 0, known)
	if len(inserts)+len(updates) != len(rows) {
		t.Fatalf("partition not exhaustive: %d + %d != %d", len(inserts), len(updates), len(rows))
	}
	if len(inserts) != 2 || len(updates) != 1 {
		t.Fatalf("inserts=%d updates=%d; want 2/1", len(inserts), len(updates))
	}
}

// TestPartition_UpdateReshape verifies update rows carry the key as the
// final positional argument while insert rows keep key-first order.
func TestPartition_UpdateReshape(t *testing.T) {
	t.Parallel()

	rows := [][]any{row(int64(200), "New Name", "PA")}
	inserts, updates := Partition(rows, 0, KeySet{200: {}})
	if len(inserts) != 0 {
		t.Fatalf("unexpected inserts: %#v", inserts)
	}
	want := []any{"New Name", "PA", int64(200)}
	if !reflect.DeepEqual(updates[0], want) {
		t.Fatalf("update row = %#v; want %#v", updates[0], want)
	}
}

// TestFilterKnown_Subset verifies the output's foreign keys are always a
// subset of the supplied key set, and orphans are counted not errored.
func TestFilterKnown_Subset(t *testing.T) {
	t.Parallel()

	known := KeySet{100: {}, 200: {}}
	rows := [][]any{
		row(int64(100), int64(2021), 0.5),
		row(int64(999), int64(2021), 0.9),
		row(int64(200), int64(2021), 0.7),
	}
	kept, dropped := FilterKnown(rows, 0, known)
	if dropped != 1 {
		t.Fatalf("dropped = %d; want 1", dropped)
	}
	for _, r := range kept {
		if !known.Has(r[0].(int64)) {
			t.Fatalf("kept row with unknown key: %#v", r)
		}
	}
	if len(kept) != 2 {
		t.Fatalf("kept %d rows; want 2", len(kept))
	}
}

func TestFilterAbsent_SkipsExisting(t *testing.T) {
	t.Parallel()

	existing := KeySet{100: {}}
	rows := [][]any{
		row(int64(100), int64(2021), 0.5),
		row(int64(200), int64(2021), 0.7),
	}
	kept, skipped := FilterAbsent(rows, 0, existing)
	if skipped != 1 {
		t.Fatalf("skipped = %d; want 1", skipped)
	}
	if len(kept) != 1 || kept[0][0].(int64) != 200 {
		t.Fatalf("kept = %#v; want only key 200", kept)
	}

	// Empty existing set keeps everything.
	rows = [][]any{row(int64(100), int64(2021), 0.5)}
	kept, skipped = FilterAbsent(rows, 0, KeySet{})
	if skipped != 0 || len(kept) != 1 {
		t.Fatalf("kept %d skipped %d; want 1, 0", len(kept), skipped)
	}
}

// TestDedupeByKey_KeepLast verifies the later occurrence wins when a key
// repeats and that distinct keys survive untouched.
func TestDedupeByKey_KeepLast(t *testing.T) {
	t.Parallel()

	rows := [][]any{
		row(int64(100), "old"),
		row(int64(200), "only"),
		row(int64(100), "new"),
	}
	out, removed := DedupeByKey(rows, 0)
	if removed != 1 {
		t.Fatalf("removed = %d; want 1", removed)
	}
	want := [][]any{row(int64(200), "only"), row(int64(100), "new")}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("out = %#v; want %#v", out, want)
	}
}

// TestDedupeByKey_CompositeKey verifies (entity, period) identity: same
// entity in different periods is not a duplicate.
func TestDedupeByKey_CompositeKey(t *testing.T) {
	t.Parallel()

	rows := [][]any{
		row(int64(100), int64(2020), "a"),
		row(int64(100), int64(2021), "b"),
		row(int64(100), int64(2021), "c"),
	}
	out, removed := DedupeByKey(rows, 0, 1)
	if removed != 1 || len(out) != 2 {
		t.Fatalf("removed=%d len=%d; want 1/2", removed, len(out))
	}
	if out[1][2] != "c" {
		t.Fatalf("keep-last violated: %#v", out)
	}
}

func TestDedupeByKey_NoKeys(t *testing.T) {
	t.Parallel()

	rows := [][]any{row(int64(1)), row(int64(1))}
	out, removed := DedupeByKey(rows)
	if removed != 0 || len(out) != 2 {
		t.Fatalf("no key columns must be a no-op, got removed=%d len=%d", removed, len(out))
	}
}
