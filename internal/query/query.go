// Package query is the read-only surface consumed by reporting tools on
// top of a loaded store. The loader itself never calls it; it exists so
// downstream consumers depend on one parameterized entry point instead of
// opening their own connections.
package query

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"scorecard/internal/storage"
)

// DefaultLimit caps result sets when a question does not ask for a
// specific count.
const DefaultLimit = 10

// Def is one named, pre-written query. Keywords is a list of groups; a
// question matches when every group contributes at least one keyword.
// SQL carries two tokens: {period} becomes the dialect's first parameter
// marker and {limit} becomes the dialect's row-cap clause.
type Def struct {
	Name     string
	Title    string
	Keywords [][]string
	SQL      string
}

// Defs is the fixed lookup table, checked in order; the first match wins.
// The templates only touch the loaded tables; Render fills in the
// per-dialect pieces, so they work on every supported backend.
var Defs = []Def{
	{
		Name:     "highest_tuition",
		Title:    "Highest Tuition Institutions",
		Keywords: [][]string{{"highest", "most expensive", "top"}, {"tuition"}},
		SQL: `SELECT i.name, i.state, i.city, f.tuitionfee_out, f.tuitionfee_in
FROM institutions i
INNER JOIN financials f ON i.institution_id = f.institution_id
WHERE f.year = {period} AND f.tuitionfee_out IS NOT NULL
ORDER BY f.tuitionfee_out DESC
{limit}`,
	},
	{
		Name:     "lowest_tuition",
		Title:    "Lowest Tuition Institutions",
		Keywords: [][]string{{"lowest", "cheapest", "least expensive", "bottom"}, {"tuition"}},
		SQL: `SELECT i.name, i.state, i.city, f.tuitionfee_out, f.tuitionfee_in
FROM institutions i
INNER JOIN financials f ON i.institution_id = f.institution_id
WHERE f.year = {period} AND f.tuitionfee_out IS NOT NULL
ORDER BY f.tuitionfee_out ASC
{limit}`,
	},
	{
		Name:     "best_repayment",
		Title:    "Best Loan Repayment Performance",
		Keywords: [][]string{{"best", "lowest"}, {"default", "repayment", "loan"}},
		SQL: `SELECT i.name, i.state, i.city, s.cdr3, s.num_students
FROM institutions i
INNER JOIN students s ON i.institution_id = s.institution_id
WHERE s.year = {period} AND s.cdr3 IS NOT NULL
ORDER BY s.cdr3 ASC
{limit}`,
	},
	{
		Name:     "worst_repayment",
		Title:    "Worst Loan Repayment Performance",
		Keywords: [][]string{{"worst", "highest"}, {"default", "repayment", "loan"}},
		SQL: `SELECT i.name, i.state, i.city, s.cdr3, s.num_students
FROM institutions i
INNER JOIN students s ON i.institution_id = s.institution_id
WHERE s.year = {period} AND s.cdr3 IS NOT NULL
ORDER BY s.cdr3 DESC
{limit}`,
	},
	{
		Name:     "largest_enrollment",
		Title:    "Largest Institutions by Enrollment",
		Keywords: [][]string{{"largest", "biggest", "most students"}},
		SQL: `SELECT i.name, i.state, i.city, s.num_students, s.adm_rate
FROM institutions i
INNER JOIN students s ON i.institution_id = s.institution_id
WHERE s.year = {period} AND s.num_students IS NOT NULL
ORDER BY s.num_students DESC
{limit}`,
	},
	{
		Name:     "least_selective",
		Title:    "Highest Admission Rates",
		Keywords: [][]string{{"easiest", "highest admission", "easy to get"}},
		SQL: `SELECT i.name, i.state, i.city, s.adm_rate, s.num_students
FROM institutions i
INNER JOIN students s ON i.institution_id = s.institution_id
WHERE s.year = {period} AND s.adm_rate IS NOT NULL
ORDER BY s.adm_rate DESC
{limit}`,
	},
	{
		Name:     "most_selective",
		Title:    "Most Selective Institutions",
		Keywords: [][]string{{"selective", "hardest", "lowest admission", "hard to get"}},
		SQL: `SELECT i.name, i.state, i.city, s.adm_rate, s.num_students
FROM institutions i
INNER JOIN students s ON i.institution_id = s.institution_id
WHERE s.year = {period} AND s.adm_rate IS NOT NULL
ORDER BY s.adm_rate ASC
{limit}`,
	},
	{
		Name:     "highest_act",
		Title:    "Highest Median ACT Scores",
		Keywords: [][]string{{"act"}, {"highest", "top", "best"}},
		SQL: `SELECT i.name, i.state, i.city, s.act, s.adm_rate
FROM institutions i
INNER JOIN students s ON i.institution_id = s.institution_id
WHERE s.year = {period} AND s.act IS NOT NULL
ORDER BY s.act DESC
{limit}`,
	},
	{
		Name:     "highest_faculty_salary",
		Title:    "Highest Average Faculty Salaries",
		Keywords: [][]string{{"faculty", "professor"}, {"salary", "pay", "highest"}},
		SQL: `SELECT i.name, i.state, i.city, f.avgfacsal, f.tuitfte
FROM institutions i
INNER JOIN financials f ON i.institution_id = f.institution_id
WHERE f.year = {period} AND f.avgfacsal IS NOT NULL
ORDER BY f.avgfacsal DESC
{limit}`,
	},
}

var topNRe = regexp.MustCompile(`(?:top|best|worst) (\d+)`)

// Match finds the first definition whose keyword groups are all satisfied
// by the lowercased question, along with the requested row cap ("top 25"
// style phrases override DefaultLimit).
func Match(question string) (Def, int, bool) {
	q := strings.ToLower(question)

	limit := DefaultLimit
	if m := topNRe.FindStringSubmatch(q); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			limit = n
		}
	}

	for _, d := range Defs {
		if d.matches(q) {
			return d, limit, true
		}
	}
	return Def{}, 0, false
}

func (d Def) matches(q string) bool {
	for _, group := range d.Keywords {
		hit := false
		for _, kw := range group {
			if strings.Contains(q, kw) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// Render fills the template tokens for the repository's dialect. The
// period stays a bound parameter; the row cap is rendered by the
// repository so each backend gets its own clause.
func (d Def) Render(repo storage.Repository, limit int) string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := strings.ReplaceAll(d.SQL, "{period}", repo.Placeholder(1))
	return strings.ReplaceAll(q, "{limit}", repo.Limit(limit))
}

// Exec runs a parameterized read against the store, binding period as the
// single query parameter.
func Exec(ctx context.Context, repo storage.Repository, sql string, period int) (*storage.Rows, error) {
	rows, err := repo.Query(ctx, sql, int64(period))
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return rows, nil
}

// Ask resolves a free-form question against the definition table and runs
// the matched query. ok is false when no definition matches; the question
// is then left to the caller.
func Ask(ctx context.Context, repo storage.Repository, question string, period int) (title string, rows *storage.Rows, ok bool, err error) {
	d, limit, ok := Match(question)
	if !ok {
		return "", nil, false, nil
	}
	rows, err = Exec(ctx, repo, d.Render(repo, limit), period)
	if err != nil {
		return "", nil, true, err
	}
	return d.Title, rows, true, nil
}
