// Package records defines the generic record shape passed between the parser
// and the row mapper: a map of canonical column name to raw (or cleaned)
// value. nil means "value absent".
package records

// Record is one parsed snapshot row keyed by canonical column name.
type Record map[string]any
