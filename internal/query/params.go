package query

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the request and response timestamp format.
const TimeLayout = "2006-01-02T15:04:05"

var ErrBadQuery = errors.New("bad query")

// ParseParams reads from/to or last=true from a request query. from and to
// must be given together. A bare timestamp is UTC; RFC 3339 with an offset
// is also accepted.
func ParseParams(values url.Values) (Params, error) {
	var p Params
	if raw := values.Get("last"); raw != "" {
		last, err := strconv.ParseBool(raw)
		if err != nil {
			return Params{}, fmt.Errorf("%w: last=%q", ErrBadQuery, raw)
		}
		p.Last = last
	}

	fromRaw, toRaw := values.Get("from"), values.Get("to")
	if (fromRaw == "") != (toRaw == "") {
		return Params{}, fmt.Errorf("%w: from and to must be given together", ErrBadQuery)
	}
	if fromRaw == "" {
		return p, nil
	}
	from, err := ParseTime(fromRaw)
	if err != nil {
		return Params{}, fmt.Errorf("%w: from: %w", ErrBadQuery, err)
	}
	to, err := ParseTime(toRaw)
	if err != nil {
		return Params{}, fmt.Errorf("%w: to: %w", ErrBadQuery, err)
	}
	p.From, p.To = &from, &to
	return p, nil
}

func ParseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.ParseInLocation(TimeLayout, raw, time.UTC); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q is not %s", raw, TimeLayout)
	}
	return t.UTC(), nil
}
