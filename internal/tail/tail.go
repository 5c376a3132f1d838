// Package tail extends a channel with the lines appended to its newest
// source file since the previous poll.
package tail

import (
	"errors"
	"fmt"
	"sort"

	"drmonitor/internal/channel"
	"drmonitor/internal/parse"
)

type Result struct {
	Bytes       int
	Rows        int
	NewChannels []string
}

// Poll reads the complete lines appended to the feed behind the named
// channel and merges them into every channel the feed produces. Status
// channels touched by the poll are deduplicated again over their whole
// series.
func Poll(reg *channel.Registry, name string) (Result, error) {
	c, ok := reg.Channel(name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	feed := c.Feed()
	if feed == nil {
		return Result{}, nil
	}

	data, err := feed.ReadAppended()
	if err != nil {
		if errors.Is(err, channel.ErrFeedTruncated) || errors.Is(err, channel.ErrFeedReplaced) {
			return Result{}, fmt.Errorf("%w: %w", ErrRotated, err)
		}
		return Result{}, err
	}
	if len(data) == 0 {
		return Result{}, nil
	}

	batches, err := parse.Parse(string(data), feed.Source())
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", feed.Path(), err)
	}

	res := Result{Bytes: len(data)}
	names := make([]string, 0, len(batches))
	for n := range batches {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		batch := batches[n]
		if _, exists := reg.Channel(n); !exists {
			res.NewChannels = append(res.NewChannels, n)
		}
		target := reg.Ensure(n, batch.Kind, feed)
		target.AddRows(batch.Rows)
		target.Dedup()
		res.Rows += len(batch.Rows)
	}
	return res, nil
}
