// Package schema fixes the destination table layouts and maps cleaned source
// records into ordered parameter tuples.
//
// Each destination column names the canonical (upper-case) source header it
// is fed from. The mapper walks the table's column order, cleans each source
// value for the declared kind, and substitutes nil for anything missing, so
// a mapped row always lines up positionally with the table's INSERT
// statement. Fact tables carry the reporting period as their second column;
// the period is synthesized by the mapper, not read from the file.
package schema

import (
	"errors"
	"strings"

	"scorecard/internal/clean"
	"scorecard/pkg/records"
)

// ErrMissingKey marks a row whose primary key cleaned to absence. The row is
// excluded from its batch; the run continues.
var ErrMissingKey = errors.New("row has no primary key after cleaning")

// Column is one destination column and the source header feeding it.
type Column struct {
	Name   string // destination column name
	Source string // canonical upper-case source header; "" when synthesized
	Kind   clean.Kind
}

// Table is an ordered destination schema. The entity key is always the first
// column; fact tables also name a period column.
type Table struct {
	Name         string
	KeyColumn    string
	PeriodColumn string // empty for the dimension table
	Columns      []Column
}

// ColumnNames returns the destination column names in schema order.
func (t Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// KeyIndex returns the position of the entity key within a mapped row.
func (t Table) KeyIndex() int {
	for i, c := range t.Columns {
		if c.Name == t.KeyColumn {
			return i
		}
	}
	return 0
}

// IsFact reports whether the table is period-keyed.
func (t Table) IsFact() bool { return t.PeriodColumn != "" }

// Institutions is the entity dimension. Attributes are overwritten on each
// directory refresh; rows are never deleted.
var Institutions = Table{
	Name:      "institutions",
	KeyColumn: "institution_id",
	Columns: []Column{
		{Name: "institution_id", Source: "UNITID", Kind: clean.Numeric},
		{Name: "name", Source: "INSTNM", Kind: clean.Text},
		{Name: "accredagency", Source: "ACCREDAGENCY", Kind: clean.Text},
		{Name: "control", Source: "CONTROL", Kind: clean.Numeric},
		{Name: "ccbasic", Source: "C21BASIC", Kind: clean.Numeric},
		{Name: "region", Source: "OBEREG", Kind: clean.Numeric},
		{Name: "csba", Source: "CBSA", Kind: clean.Text},
		{Name: "cba", Source: "CSA", Kind: clean.Text},
		{Name: "county_fips", Source: "COUNTYCD", Kind: clean.Text},
		{Name: "city", Source: "CITY", Kind: clean.Text},
		{Name: "state", Source: "STABBR", Kind: clean.Text},
		{Name: "address", Source: "ADDR", Kind: clean.Text},
		{Name: "zip", Source: "ZIP", Kind: clean.Text},
		{Name: "latitude", Source: "LATITUDE", Kind: clean.Numeric},
		{Name: "longitude", Source: "LONGITUD", Kind: clean.Numeric},
	},
}

// Students holds enrollment and admissions metrics per (entity, period).
var Students = Table{
	Name:         "students",
	KeyColumn:    "institution_id",
	PeriodColumn: "year",
	Columns: []Column{
		{Name: "institution_id", Source: "UNITID", Kind: clean.Numeric},
		{Name: "year"},
		{Name: "adm_rate", Source: "ADM_RATE", Kind: clean.Numeric},
		{Name: "num_students", Source: "UGDS", Kind: clean.Numeric},
		{Name: "act", Source: "ACTCMMID", Kind: clean.Numeric},
		{Name: "cdr2", Source: "CDR2", Kind: clean.Numeric},
		{Name: "cdr3", Source: "CDR3", Kind: clean.Numeric},
		{Name: "first_gen", Source: "FIRSTGEN", Kind: clean.Numeric},
		{Name: "avg_family_income", Source: "FAMINC", Kind: clean.Numeric},
	},
}

// Financials holds tuition and salary metrics per (entity, period).
var Financials = Table{
	Name:         "financials",
	KeyColumn:    "institution_id",
	PeriodColumn: "year",
	Columns: []Column{
		{Name: "institution_id", Source: "UNITID", Kind: clean.Numeric},
		{Name: "year"},
		{Name: "tuitionfee_in", Source: "TUITIONFEE_IN", Kind: clean.Numeric},
		{Name: "tuitionfee_out", Source: "TUITIONFEE_OUT", Kind: clean.Numeric},
		{Name: "tuitionfee_prog", Source: "TUITIONFEE_PROG", Kind: clean.Numeric},
		{Name: "tuitfte", Source: "TUITFTE", Kind: clean.Numeric},
		{Name: "avgfacsal", Source: "AVGFACSAL", Kind: clean.Numeric},
	},
}

// Academics holds degree and staffing metrics per (entity, period).
var Academics = Table{
	Name:         "academics",
	KeyColumn:    "institution_id",
	PeriodColumn: "year",
	Columns: []Column{
		{Name: "institution_id", Source: "UNITID", Kind: clean.Numeric},
		{Name: "year"},
		{Name: "preddeg", Source: "PREDDEG", Kind: clean.Numeric},
		{Name: "highdeg", Source: "HIGHDEG", Kind: clean.Numeric},
		{Name: "stufacr", Source: "STUFACR", Kind: clean.Numeric},
	},
}

// FactTables lists the three fact kinds loaded from a metrics snapshot.
func FactTables() []Table { return []Table{Students, Financials, Academics} }

// MapRow projects a parsed record into the table's column order. Source
// lookup is by canonical upper-case header; missing or unmapped columns map
// to nil. A nil key after cleaning returns ErrMissingKey and no row.
func MapRow(rec records.Record, t Table, period int) ([]any, error) {
	row := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		if t.PeriodColumn != "" && c.Name == t.PeriodColumn {
			row[i] = int64(period)
			continue
		}
		raw, ok := rec[strings.ToUpper(c.Source)]
		if !ok {
			row[i] = nil
			continue
		}
		row[i] = clean.Value(raw, c.Kind)
	}
	if row[t.KeyIndex()] == nil {
		return nil, ErrMissingKey
	}
	return row, nil
}
