// Package query selects the rows of a series that answer one request:
// the last row, or a padded time range that is thinned by stride sampling
// once it grows past a threshold.
package query

import (
	"sort"
	"time"

	"drmonitor/internal/channel"
)

const DefaultSampleThreshold = 4000

type Params struct {
	From *time.Time
	To   *time.Time
	Last bool
}

func (p Params) HasRange() bool {
	return p.From != nil && p.To != nil
}

// Run answers p over rows, which must be sorted by time. A range that
// matches nothing falls back to the whole series so callers always get the
// data bounds. The result never aliases rows.
func Run(rows []channel.Row, p Params, sampleThreshold int) []channel.Row {
	if len(rows) == 0 {
		return []channel.Row{}
	}
	if p.Last {
		return []channel.Row{rows[len(rows)-1]}
	}

	lo, hi := 0, len(rows)
	if p.HasRange() {
		from, to := *p.From, *p.To
		start := sort.Search(len(rows), func(i int) bool { return !rows[i].Time.Before(from) })
		end := sort.Search(len(rows), func(i int) bool { return rows[i].Time.After(to) })
		if start < end {
			lo, hi = start, end
		}
	}

	lo = max(lo-1, 0)
	hi = min(hi+1, len(rows))
	return sample(rows[lo:hi], sampleThreshold)
}

// sample keeps every stride-th row from the start of window and then makes
// sure the window's last row closes the result.
func sample(window []channel.Row, threshold int) []channel.Row {
	count := len(window)
	if threshold <= 0 || count <= threshold {
		out := make([]channel.Row, count)
		copy(out, window)
		return out
	}
	stride := count / threshold
	out := make([]channel.Row, 0, count/stride+1)
	last := -1
	for i := 0; i < count; i += stride {
		out = append(out, window[i])
		last = i
	}
	if last != count-1 {
		out = append(out, window[count-1])
	}
	return out
}
