// Package health classifies the log files of the newest date directory by
// how recently the fridge software wrote to them.
package health

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"drmonitor/internal/logdir"
)

const RefreshRate = 30 * time.Second

const (
	warnAfter  = 10 * time.Minute
	staleAfter = time.Hour
)

type Kind int

const (
	Missing Kind = iota
	Active
	Warn
	Stale
)

type Row struct {
	Name   string
	Kind   Kind
	Reason string
}

// Compute returns one row per log file in the newest date directory of
// parent, sorted by name. The string explains an empty result.
func Compute(parent string, now time.Time) ([]Row, string) {
	parent = strings.TrimSpace(parent)
	if parent == "" {
		return nil, "Log directory is not configured."
	}
	info, statErr := os.Stat(parent)
	if statErr != nil {
		return nil, "Log directory is not accessible: " + statErr.Error()
	}
	if !info.IsDir() {
		return nil, "Log path is not a directory."
	}

	dirs, err := logdir.DateDirs(parent)
	if err != nil {
		return nil, "Failed to scan logs: " + err.Error()
	}
	if len(dirs) == 0 {
		return nil, "No date directories yet."
	}
	newest := dirs[len(dirs)-1]
	entries, err := os.ReadDir(newest.Path)
	if err != nil {
		return nil, "Failed to scan " + newest.Name + ": " + err.Error()
	}

	rows := make([]Row, 0, len(entries))
	for _, entry := range entries {
		name, ok := logdir.SplitLogName(entry.Name(), newest.Name)
		if !ok || !entry.Type().IsRegular() {
			continue
		}
		row := Row{Name: name, Kind: Missing, Reason: "Log file is not readable."}
		if stat, err := os.Stat(filepath.Join(newest.Path, entry.Name())); err == nil {
			row = classify(name, now.Sub(stat.ModTime()))
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	if len(rows) == 0 {
		return rows, "No log files in " + newest.Name + "."
	}
	return rows, ""
}

func classify(name string, age time.Duration) Row {
	age = max(age, 0).Round(time.Second)
	switch {
	case age <= warnAfter:
		return Row{Name: name, Kind: Active, Reason: fmt.Sprintf("updated %s ago", age)}
	case age <= staleAfter:
		return Row{Name: name, Kind: Warn, Reason: fmt.Sprintf("no updates for %s", age)}
	default:
		return Row{Name: name, Kind: Stale, Reason: fmt.Sprintf("no updates for %s", age)}
	}
}
