// Package channel holds the in-memory time series: one Channel per
// measurement channel, the Feeds that tail their newest source file, and
// the Registry that owns both for one ingestion cycle.
package channel

import (
	"slices"
	"strings"
)

const StatusPrefix = "status/"

type Channel struct {
	name string
	kind Kind
	rows []Row
	// raw is the undeduplicated status series that rows is derived from.
	raw  []Row
	feed *Feed
}

func newChannel(name string, kind Kind) *Channel {
	return &Channel{name: name, kind: kind}
}

func (c *Channel) Name() string { return c.name }
func (c *Channel) Kind() Kind   { return c.kind }
func (c *Channel) Len() int     { return len(c.rows) }

// Rows returns the series. Callers must not modify it.
func (c *Channel) Rows() []Row {
	return c.rows
}

// Feed returns the feed that tails this channel's source file. Status
// channels from the same file share one feed.
func (c *Channel) Feed() *Feed {
	return c.feed
}

// AddRows merges a batch into the series. Batches may arrive in any order;
// rows with equal timestamps keep their arrival order.
// A status channel keeps every merged point and shows them undeduplicated
// until the next Dedup.
func (c *Channel) AddRows(batch []Row) {
	if len(batch) == 0 {
		return
	}
	if c.kind == KindStatus {
		c.raw = mergeRows(c.raw, batch)
		c.rows = c.raw
		return
	}
	c.rows = mergeRows(c.rows, batch)
}

func mergeRows(dst []Row, batch []Row) []Row {
	if isSorted(batch) && (len(dst) == 0 || !batch[0].Time.Before(dst[len(dst)-1].Time)) {
		return append(dst, batch...)
	}
	dst = append(dst, batch...)
	slices.SortStableFunc(dst, compareTime)
	return dst
}

// Dedup recomputes the status series from every point ever merged, so the
// result does not depend on the order batches arrived in. It is a no-op for
// record channels.
func (c *Channel) Dedup() {
	if c.kind != KindStatus {
		return
	}
	c.rows = Dedup(c.raw)
}

// SourcePaths are the files of the channel's feed. Status channels of one
// file share the set, so a day whose status file has no keys yet still
// moves the tail target.
func (c *Channel) SourcePaths() []string {
	if c.feed == nil {
		return nil
	}
	return c.feed.Paths()
}

// MostRecentSourcePath is the tail target: the chronologically newest of
// SourcePaths, so adding an older file never moves it.
func (c *Channel) MostRecentSourcePath() string {
	if c.feed == nil {
		return ""
	}
	return c.feed.MostRecentPath()
}

// IsStatusSource reports whether a file's channel name marks a status log.
// The check is case-insensitive and shared by ingestion and tailing.
func IsStatusSource(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), "status")
}

func StatusChannelName(key string) string {
	return StatusPrefix + key
}
