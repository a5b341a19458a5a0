package storage

import (
	"fmt"
	"strings"

	"scorecard/internal/schema"
)

// Placeholders renders n dialect parameter markers joined by ", ".
func Placeholders(ph func(int) string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = ph(i + 1)
	}
	return strings.Join(parts, ", ")
}

// InsertStatement builds the INSERT for a table in schema column order,
// parameters aligned to mapped rows (key first).
func InsertStatement(ph func(int) string, t schema.Table) string {
	cols := t.ColumnNames()
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		t.Name, strings.Join(cols, ", "), Placeholders(ph, len(cols)),
	)
}

// UpdateStatement builds the UPDATE-by-key for a dimension table. The SET
// list covers every non-key column in schema order and the key is the final
// parameter, matching the reshaped update rows produced by resolve.Partition.
func UpdateStatement(ph func(int) string, t schema.Table) string {
	var sets []string
	n := 0
	for _, c := range t.Columns {
		if c.Name == t.KeyColumn {
			continue
		}
		n++
		sets = append(sets, fmt.Sprintf("%s = %s", c.Name, ph(n)))
	}
	return fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = %s",
		t.Name, strings.Join(sets, ", "), t.KeyColumn, ph(n+1),
	)
}
