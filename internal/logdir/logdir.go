// Package logdir knows the on-disk layout written by the fridge control
// software: one directory per day named yy-mm-dd, each holding one
// "<channel> <yy-mm-dd>.log" file per channel.
package logdir

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	DateLayout = "06-01-02"
	LogExt     = ".log"
)

var dateDirPattern = regexp.MustCompile(`^\d\d-\d\d-\d\d$`)

type DateDir struct {
	Name string
	Path string
	Date time.Time
}

func IsDateDirName(name string) bool {
	return dateDirPattern.MatchString(name)
}

// DateDirs lists the immediate date-labeled subdirectories of parent in
// chronological order. Names that match the pattern but are not a real
// calendar date sort after the valid ones, by name.
func DateDirs(parent string) ([]DateDir, error) {
	entries, err := os.ReadDir(parent)
	if err != nil {
		return nil, err
	}
	dirs := make([]DateDir, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || !IsDateDirName(entry.Name()) {
			continue
		}
		date, _ := time.ParseInLocation(DateLayout, entry.Name(), time.UTC)
		dirs = append(dirs, DateDir{
			Name: entry.Name(),
			Path: filepath.Join(parent, entry.Name()),
			Date: date,
		})
	}
	sort.SliceStable(dirs, func(i, j int) bool {
		if dirs[i].Date.Equal(dirs[j].Date) {
			return dirs[i].Name < dirs[j].Name
		}
		if dirs[i].Date.IsZero() != dirs[j].Date.IsZero() {
			return !dirs[i].Date.IsZero()
		}
		return dirs[i].Date.Before(dirs[j].Date)
	})
	return dirs, nil
}

func CountDateDirs(parent string) (int, error) {
	dirs, err := DateDirs(parent)
	if err != nil {
		return 0, err
	}
	return len(dirs), nil
}

// SplitLogName returns the channel name of a file inside the date directory
// dirName. Only names ending in "<dirName>.log" are accepted:
// "CH9 T 23-04-28.log" in 23-04-28 is channel "CH9 T".
func SplitLogName(fileName string, dirName string) (string, bool) {
	suffix := dirName + LogExt
	if !strings.HasSuffix(fileName, suffix) {
		return "", false
	}
	channel := strings.TrimSpace(strings.TrimSuffix(fileName, suffix))
	if channel == "" {
		return "", false
	}
	return channel, true
}

// PathDate reads the yy-mm-dd stamp that directly precedes the extension of
// a log path such as ".../CH1 T 23-04-28.log".
func PathDate(path string) (time.Time, bool) {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if len(stem) < len(DateLayout) {
		return time.Time{}, false
	}
	stamp := stem[len(stem)-len(DateLayout):]
	if !IsDateDirName(stamp) {
		return time.Time{}, false
	}
	date, err := time.ParseInLocation(DateLayout, stamp, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

// MostRecent returns the path whose embedded date is latest. Comparison is
// chronological, so "99-12-31" (1999) loses to "00-01-01" (2000). Ties and
// undated paths keep the earliest candidate.
func MostRecent(paths []string) string {
	best := ""
	var bestDate time.Time
	haveDate := false
	for _, path := range paths {
		date, ok := PathDate(path)
		switch {
		case best == "":
			best, bestDate, haveDate = path, date, ok
		case ok && (!haveDate || date.After(bestDate)):
			best, bestDate, haveDate = path, date, true
		}
	}
	return best
}
