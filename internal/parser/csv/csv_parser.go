// Package csv parses snapshot CSV files into records keyed by canonical
// upper-case header names. It streams through encoding/csv without buffering
// the whole file, tolerates ragged rows (soft-skip with a count), and can
// decode the Latin-1 encoding the federal snapshot files ship in.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"scorecard/pkg/records"
)

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\ufeff"

// skipLogLimit caps per-row skip logging so a badly mangled file cannot
// flood the console; skips beyond the limit are still counted.
const skipLogLimit = 400

// Options configures the parser. The zero value reads comma-separated UTF-8
// input with surrounding whitespace trimmed.
type Options struct {
	// Comma is the field delimiter; ',' when zero.
	Comma rune

	// Latin1 decodes the input from ISO 8859-1 before parsing.
	Latin1 bool
}

// Parser parses CSV input according to Options. A Parser is reusable across
// inputs but not concurrency-safe.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// Parse consumes CSV records from r and returns the parsed rows plus the
// count of rows skipped for parse errors or width mismatches. The first line
// is the header; header names are trimmed, BOM-stripped and upper-cased so
// record keys match the canonical source-column names of the table schemas.
// Empty cells become nil.
func (p *Parser) Parse(r io.Reader) ([]records.Record, int, error) {
	if p.opt.Latin1 {
		r = transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	}

	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	cr.ReuseRecord = true
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1 // width enforced below, per header

	hdr, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read csv header: %w", err)
	}
	headers := canonicalHeaders(hdr)

	var out []records.Record
	var skipped int
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if skipped < skipLogLimit {
				log.Printf("skipping row %d: %v", line, err)
			}
			skipped++
			continue
		}
		if len(row) != len(headers) {
			if skipped < skipLogLimit {
				log.Printf("skipping row %d: %d fields, header has %d", line, len(row), len(headers))
			}
			skipped++
			continue
		}

		rec := make(records.Record, len(headers))
		for i, val := range row {
			val = strings.TrimSpace(val)
			if val == "" {
				rec[headers[i]] = nil
				continue
			}
			rec[headers[i]] = val
		}
		out = append(out, rec)
	}
	return out, skipped, nil
}

// canonicalHeaders trims, BOM-strips and upper-cases header cells.
func canonicalHeaders(h []string) []string {
	res := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		res[i] = strings.ToUpper(c)
	}
	return res
}
