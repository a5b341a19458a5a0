// Package period derives the reporting period and snapshot kind from a
// snapshot file's name.
//
// The loaders rely on the upstream naming convention: metrics files end with
// a four-digit year separated by underscores (scorecard_2022.csv,
// metrics_2021.csv), and directory files start with "directory" or the IPEDS
// "hd" prefix (directory_2022.csv, hd2022.csv).
package period

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNoPeriod is returned when a filename carries no four-digit period
// segment. Loading a metrics file without an inferable period is fatal.
var ErrNoPeriod = errors.New("no four-digit period in filename")

// SnapshotKind distinguishes directory snapshots (dimension refresh) from
// metrics snapshots (fact loads).
type SnapshotKind int

const (
	Metrics SnapshotKind = iota
	Directory
)

func (k SnapshotKind) String() string {
	if k == Directory {
		return "directory"
	}
	return "metrics"
}

// FromFilename extracts the four-digit period from the file name: the stem
// (base name without extension) is split on "_" and the last purely numeric
// four-digit segment wins.
func FromFilename(path string) (int, error) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parts := strings.Split(stem, "_")
	for i := len(parts) - 1; i >= 0; i-- {
		p := parts[i]
		if len(p) == 4 && isDigits(p) {
			y, err := strconv.Atoi(p)
			if err != nil {
				return 0, fmt.Errorf("period segment %q: %w", p, err)
			}
			return y, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", filepath.Base(path), ErrNoPeriod)
}

// Classify determines the snapshot kind from the filename stem prefix.
func Classify(path string) SnapshotKind {
	stem := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if strings.HasPrefix(stem, "directory") || strings.HasPrefix(stem, "hd") {
		return Directory
	}
	return Metrics
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
