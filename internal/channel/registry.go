package channel

import (
	"errors"
	"fmt"
	"sort"
)

// Registry maps channel names to channels and source names to feeds for one
// ingestion cycle. A new cycle builds a new Registry; Close releases every
// tail handle exactly once.
type Registry struct {
	channels map[string]*Channel
	feeds    map[string]*Feed
	order    []string
	closed   bool
}

func NewRegistry() *Registry {
	return &Registry{
		channels: map[string]*Channel{},
		feeds:    map[string]*Feed{},
	}
}

func (r *Registry) Channel(name string) (*Channel, bool) {
	c, ok := r.channels[name]
	return c, ok
}

func (r *Registry) Len() int {
	return len(r.channels)
}

// Names returns every channel name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Feed returns the feed for a source name, creating it on first use.
func (r *Registry) Feed(source string) *Feed {
	if f, ok := r.feeds[source]; ok {
		return f
	}
	f := newFeed(source)
	r.feeds[source] = f
	r.order = append(r.order, source)
	return f
}

// Feeds returns the feeds in creation order.
func (r *Registry) Feeds() []*Feed {
	out := make([]*Feed, 0, len(r.order))
	for _, source := range r.order {
		out = append(out, r.feeds[source])
	}
	return out
}

// Ensure returns the named channel, creating it with kind and linking it to
// feed when it does not exist yet. A channel keeps the first feed it was
// linked to.
func (r *Registry) Ensure(name string, kind Kind, feed *Feed) *Channel {
	c, ok := r.channels[name]
	if !ok {
		c = newChannel(name, kind)
		r.channels[name] = c
	}
	if feed != nil {
		if c.feed == nil {
			c.feed = feed
		}
		feed.linkChannel(name)
	}
	return c
}

// OpenFeeds parks every feed's cursor at the end of its newest file.
func (r *Registry) OpenFeeds() error {
	if r.closed {
		return ErrRegistryDone
	}
	for _, f := range r.Feeds() {
		if err := f.Open(); err != nil {
			return fmt.Errorf("feed %q: %w", f.Source(), err)
		}
	}
	return nil
}

// OpenHandles counts feeds holding an open file.
func (r *Registry) OpenHandles() int {
	n := 0
	for _, f := range r.feeds {
		if f.IsOpen() {
			n++
		}
	}
	return n
}

func (r *Registry) Close() error {
	if r == nil || r.closed {
		return nil
	}
	r.closed = true
	var errs []error
	for _, f := range r.Feeds() {
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close feed %q: %w", f.Source(), err))
		}
	}
	return errors.Join(errs...)
}
