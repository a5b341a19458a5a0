package query

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"scorecard/internal/resolve"
	"scorecard/internal/storage"
)

// fakeRepo records Query calls and returns a canned result.
type fakeRepo struct {
	gotQuery string
	gotArgs  []any
	result   *storage.Rows
	err      error
}

func (f *fakeRepo) Keys(ctx context.Context, table, column string) (resolve.KeySet, error) {
	return nil, nil
}

func (f *fakeRepo) PeriodKeys(ctx context.Context, table, column, periodColumn string, period int) (resolve.KeySet, error) {
	return nil, nil
}

func (f *fakeRepo) ExecBatch(ctx context.Context, stmt string, rows [][]any) (int64, error) {
	return 0, nil
}

func (f *fakeRepo) ExecRow(ctx context.Context, stmt string, row []any) error { return nil }

func (f *fakeRepo) Query(ctx context.Context, q string, args ...any) (*storage.Rows, error) {
	f.gotQuery = q
	f.gotArgs = args
	return f.result, f.err
}

func (f *fakeRepo) Classify(err error) storage.Class { return storage.ClassStructural }
func (f *fakeRepo) Placeholder(n int) string         { return "?" }
func (f *fakeRepo) Limit(n int) string               { return fmt.Sprintf("LIMIT %d", n) }
func (f *fakeRepo) Close()                           {}

// tsqlRepo renders the row cap the way the mssql repository does.
type tsqlRepo struct{ fakeRepo }

func (f *tsqlRepo) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }
func (f *tsqlRepo) Limit(n int) string {
	return fmt.Sprintf("OFFSET 0 ROWS FETCH NEXT %d ROWS ONLY", n)
}

func TestMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		question  string
		wantName  string
		wantLimit int
		wantOK    bool
	}{
		{"show me the most expensive tuition", "highest_tuition", 10, true},
		{"top 25 highest tuition schools", "highest_tuition", 25, true},
		{"cheapest tuition", "lowest_tuition", 10, true},
		{"worst 5 loan default rates", "worst_repayment", 5, true},
		{"best repayment", "best_repayment", 10, true},
		{"biggest schools", "largest_enrollment", 10, true},
		{"hardest to get into", "most_selective", 10, true},
		{"highest act scores", "highest_act", 10, true},
		{"professor pay", "highest_faculty_salary", 10, true},
		{"what is the meaning of life", "", 0, false},
		// "tuition" alone satisfies only one group.
		{"tuition", "", 0, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.question, func(t *testing.T) {
			t.Parallel()

			d, limit, ok := Match(tt.question)
			if ok != tt.wantOK {
				t.Fatalf("Match(%q) ok = %v, want %v", tt.question, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if d.Name != tt.wantName {
				t.Fatalf("Match(%q) def = %q, want %q", tt.question, d.Name, tt.wantName)
			}
			if limit != tt.wantLimit {
				t.Fatalf("Match(%q) limit = %d, want %d", tt.question, limit, tt.wantLimit)
			}
		})
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	d, _, ok := Match("highest tuition")
	if !ok {
		t.Fatal("expected a match")
	}

	sql := d.Render(repo, 25)
	if strings.Contains(sql, "{period}") || strings.Contains(sql, "{limit}") {
		t.Fatalf("Render left tokens behind: %s", sql)
	}
	if !strings.Contains(sql, "f.year = ?") {
		t.Fatalf("Render did not use the dialect placeholder: %s", sql)
	}
	if !strings.Contains(sql, "LIMIT 25") {
		t.Fatalf("Render did not inline the limit: %s", sql)
	}

	// Non-positive limits fall back to the default.
	sql = d.Render(repo, 0)
	if !strings.Contains(sql, "LIMIT 10") {
		t.Fatalf("Render(0) limit = %s, want LIMIT 10", sql)
	}
}

func TestRender_TSQLRowCap(t *testing.T) {
	t.Parallel()

	repo := &tsqlRepo{}
	d, _, ok := Match("highest tuition")
	if !ok {
		t.Fatal("expected a match")
	}

	sql := d.Render(repo, 25)
	if strings.Contains(sql, "LIMIT") {
		t.Fatalf("Render emitted LIMIT for a T-SQL dialect: %s", sql)
	}
	if !strings.Contains(sql, "OFFSET 0 ROWS FETCH NEXT 25 ROWS ONLY") {
		t.Fatalf("Render did not use the dialect row cap: %s", sql)
	}
	if !strings.Contains(sql, "f.year = @p1") {
		t.Fatalf("Render did not use the dialect placeholder: %s", sql)
	}
}

func TestExec_BindsPeriod(t *testing.T) {
	t.Parallel()

	want := &storage.Rows{Columns: []string{"name"}, Values: [][]any{{"A"}}}
	repo := &fakeRepo{result: want}

	rows, err := Exec(context.Background(), repo, "SELECT name FROM institutions WHERE ? = ?", 2022)
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if rows != want {
		t.Fatalf("Exec() rows = %v, want canned result", rows)
	}
	if len(repo.gotArgs) != 1 || repo.gotArgs[0] != int64(2022) {
		t.Fatalf("Exec() bound args = %v, want [2022]", repo.gotArgs)
	}
}

func TestAsk(t *testing.T) {
	t.Parallel()

	want := &storage.Rows{Columns: []string{"name", "state"}}
	repo := &fakeRepo{result: want}

	title, rows, ok, err := Ask(context.Background(), repo, "top 3 most selective colleges", 2021)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !ok {
		t.Fatal("Ask() ok = false, want true")
	}
	if title != "Most Selective Institutions" {
		t.Fatalf("Ask() title = %q", title)
	}
	if rows != want {
		t.Fatalf("Ask() rows = %v, want canned result", rows)
	}
	if !strings.Contains(repo.gotQuery, "LIMIT 3") {
		t.Fatalf("Ask() query = %s, want LIMIT 3", repo.gotQuery)
	}

	// Unmatched questions report ok=false without touching the store.
	repo2 := &fakeRepo{}
	_, _, ok, err = Ask(context.Background(), repo2, "hello there", 2021)
	if err != nil || ok {
		t.Fatalf("Ask(unmatched) = ok %v err %v, want false nil", ok, err)
	}
	if repo2.gotQuery != "" {
		t.Fatalf("Ask(unmatched) ran query %q", repo2.gotQuery)
	}
}
