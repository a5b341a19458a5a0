package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path is a dotted path into the
// config (e.g. "storage.kind"); Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements error so an Issue can be returned on its own.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// knownKinds are the backends shipped in storage/all. Validation warns
// rather than errors on unknown kinds so binaries with extra registered
// backends still pass.
var knownKinds = map[string]struct{}{"postgres": {}, "sqlite": {}, "mssql": {}}

// Validate performs static checks over a Config and returns the issues
// found. Callers decide whether warnings block.
func Validate(c Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(c.Storage.Kind) == "" {
		issues = append(issues, Issue{SeverityError, "storage.kind", "storage kind must not be empty"})
	} else if _, ok := knownKinds[c.Storage.Kind]; !ok {
		issues = append(issues, Issue{SeverityWarning, "storage.kind",
			fmt.Sprintf("%q is not a built-in backend", c.Storage.Kind)})
	}
	if strings.TrimSpace(c.Storage.DSN) == "" {
		issues = append(issues, Issue{SeverityError, "storage.dsn",
			"DSN must be set in the config file or via DATABASE_URL"})
	}
	if len(c.Parser.Comma) > 1 {
		issues = append(issues, Issue{SeverityError, "parser.comma", "delimiter must be a single character"})
	}
	if c.BatchSize <= 0 {
		issues = append(issues, Issue{SeverityError, "batch_size", "batch size must be positive"})
	} else if c.BatchSize > 50000 {
		issues = append(issues, Issue{SeverityWarning, "batch_size",
			"very large batches make the row fallback path expensive"})
	}
	return issues
}

// HasError reports whether any issue is severity error.
func HasError(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}
