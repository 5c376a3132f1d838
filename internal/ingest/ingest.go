// Package ingest performs the full scan of a log directory into a fresh
// channel registry.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"drmonitor/internal/channel"
	"drmonitor/internal/logdir"
	"drmonitor/internal/logging"
	"drmonitor/internal/parse"
)

type Options struct {
	// OnlyChannel limits the scan to files whose name starts with it.
	OnlyChannel string
	Logger      *logging.Logger
}

type Result struct {
	Registry *channel.Registry
	DateDirs int
	Files    int
	Skipped  int
	Rows     int
	Elapsed  time.Duration
}

// Run parses every log file under each date directory of parent, oldest
// directory first, deduplicates the status channels and parks each feed
// after the last complete line of its newest file. On error every handle
// opened so far is closed.
func Run(ctx context.Context, parent string, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	started := time.Now()

	dirs, err := logdir.DateDirs(parent)
	if err != nil {
		return Result{}, fmt.Errorf("list date directories: %w", err)
	}

	reg := channel.NewRegistry()
	res := Result{Registry: reg, DateDirs: len(dirs)}
	var held []unterminated
	fail := func(err error) (Result, error) {
		_ = reg.Close()
		return Result{}, err
	}

	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		logger.Info("parsing date directory", logging.Field("path", dir.Path))
		entries, err := os.ReadDir(dir.Path)
		if err != nil {
			return fail(fmt.Errorf("read %s: %w", dir.Path, err))
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if opts.OnlyChannel != "" && !strings.HasPrefix(entry.Name(), opts.OnlyChannel) {
				continue
			}
			path := filepath.Join(dir.Path, entry.Name())
			if !entry.Type().IsRegular() {
				// Symlinks are followed; anything else is reported.
				info, err := os.Stat(path)
				if err != nil || !info.Mode().IsRegular() {
					res.Skipped++
					fields := []slog.Attr{logging.Field("path", path)}
					if err != nil {
						fields = append(fields, logging.Field("error", err))
					}
					logger.Warn("ignoring entry that is not a regular file", fields...)
					continue
				}
			}
			source, ok := logdir.SplitLogName(entry.Name(), dir.Name)
			if !ok {
				res.Skipped++
				logger.Warn("ignoring file not named \"<channel> "+dir.Name+logdir.LogExt+"\"", logging.Field("path", path))
				continue
			}
			n, rest, err := addFile(reg, path, source)
			if err != nil {
				return fail(err)
			}
			res.Files++
			res.Rows += n
			if len(rest) > 0 {
				held = append(held, unterminated{path: path, source: source, text: rest})
			}
		}
	}

	// The newest file of a feed may still be mid-line; its tail picks the
	// line up. Older files are finished, so their last line is complete.
	for _, h := range held {
		feed := reg.Feed(h.source)
		if h.path == feed.MostRecentPath() {
			continue
		}
		batches, err := parse.Parse(h.text, h.source)
		if err != nil {
			return fail(fmt.Errorf("%s: last line: %w", h.path, err))
		}
		res.Rows += merge(reg, feed, batches)
	}

	logger.Info("preparing channels", logging.Field("channels", reg.Len()))
	for _, name := range reg.Names() {
		c, _ := reg.Channel(name)
		c.Dedup()
	}
	if err := reg.OpenFeeds(); err != nil {
		return fail(err)
	}
	res.Elapsed = time.Since(started)
	return res, nil
}

// unterminated is the text after the last newline of a file.
type unterminated struct {
	path   string
	source string
	text   string
}

// addFile parses the complete lines of path and marks them consumed on the
// feed. It returns the trailing text that has no newline yet.
func addFile(reg *channel.Registry, path string, source string) (int, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, "", fmt.Errorf("read %s: %w", path, err)
	}
	cut := bytes.LastIndexByte(raw, '\n') + 1
	batches, err := parse.Parse(string(raw[:cut]), source)
	if err != nil {
		return 0, "", fmt.Errorf("%s: %w", path, err)
	}
	feed := reg.Feed(source)
	feed.MarkConsumed(path, int64(cut))
	return merge(reg, feed, batches), string(raw[cut:]), nil
}

func merge(reg *channel.Registry, feed *channel.Feed, batches map[string]parse.Batch) int {
	rows := 0
	for name, batch := range batches {
		c := reg.Ensure(name, batch.Kind, feed)
		c.AddRows(batch.Rows)
		rows += len(batch.Rows)
	}
	return rows
}
