// Package snapshots discovers snapshot files for batch loading. The
// upstream publishers ship one directory file plus one metrics file per
// year in a single folder; loading them in the right order (directory
// first, then metrics by ascending period) keeps the referential filter
// meaningful.
package snapshots

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"scorecard/internal/period"
)

// Discover lists the CSV snapshots directly under dir and orders them for
// loading: directory snapshots first, then metrics snapshots by ascending
// period. Metrics files without an extractable period sort last so the
// run surfaces the naming error after everything loadable is done.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}

	sort.SliceStable(paths, func(i, j int) bool {
		return lessLoadOrder(paths[i], paths[j])
	})
	return paths, nil
}

func lessLoadOrder(a, b string) bool {
	ka, kb := period.Classify(a), period.Classify(b)
	if ka != kb {
		return ka == period.Directory
	}
	return rank(a) < rank(b)
}

// rank is the period for ordering purposes; unextractable periods sort
// after every real year.
func rank(path string) int {
	y, err := period.FromFilename(path)
	if err != nil {
		return 1 << 30
	}
	return y
}

// ReadList reads a manifest file of snapshot paths, one per line. Empty
// lines and lines starting with '#' are skipped; order is preserved.
// Relative paths are resolved against the manifest's own directory.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot list: %w", err)
	}
	defer f.Close()

	base := filepath.Dir(path)
	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read snapshot list: %w", err)
	}
	return out, nil
}
