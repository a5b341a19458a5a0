package faillog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAdd_WritesRecord(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "error_log.txt")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	l.now = func() time.Time { return time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC) }

	l.Add("metrics_2021.csv", "students", 7, []any{int64(100), int64(2021), nil}, errors.New("duplicate key"))
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(b)
	for _, want := range []string{
		"Timestamp: 2026-08-29 10:00:00",
		"Row 7 failed in metrics_2021.csv (table students)",
		"ERROR: duplicate key",
		"Row data: [100 2021 <nil>]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q in:\n%s", want, out)
		}
	}
}

// TestOpen_Appends verifies reopening the log never truncates earlier
// records.
func TestOpen_Appends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "error_log.txt")
	for i := 0; i < 2; i++ {
		l, err := Open(path)
		if err != nil {
			t.Fatalf("Open #%d: %v", i, err)
		}
		l.Add("directory_2022.csv", "institutions", i+1, []any{int64(i)}, errors.New("boom"))
		if err := l.Close(); err != nil {
			t.Fatalf("Close #%d: %v", i, err)
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got := strings.Count(string(b), "ERROR: boom"); got != 2 {
		t.Fatalf("found %d records; want 2", got)
	}
}

func TestCounts(t *testing.T) {
	t.Parallel()

	l, err := Open(filepath.Join(t.TempDir(), "error_log.txt"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	l.Add("f.csv", "students", 1, nil, errors.New("x"))
	l.Add("f.csv", "students", 2, nil, errors.New("y"))
	l.Add("f.csv", "financials", 3, nil, errors.New("z"))

	if l.Count() != 3 {
		t.Fatalf("Count = %d; want 3", l.Count())
	}
	by := l.ByTable()
	if by["students"] != 2 || by["financials"] != 1 {
		t.Fatalf("ByTable = %v", by)
	}
}
