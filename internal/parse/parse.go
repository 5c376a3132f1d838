// Package parse turns the text of a fridge log file into rows.
//
// Generic files hold one reading per line:
//
//	28-04-23,00:00:09,<field>,<field>,...
//
// Status files hold key/value pairs that fan out into one "status/<key>"
// channel per key:
//
//	28-04-23,00:00:09,<key>,<value>,<key>,<value>,...
package parse

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"drmonitor/internal/channel"
)

// TimestampLayout matches the "dd-mm-yy,HH:MM:SS" pair once the comma is
// replaced by a space.
const TimestampLayout = "02-01-06 15:04:05"

type Batch struct {
	Kind channel.Kind
	Rows []channel.Row
}

// Parse converts text read from a file of the given source channel. Record
// sources yield exactly one entry, keyed by source, even when text holds no
// lines. Status sources yield one entry per key seen.
func Parse(text string, source string) (map[string]Batch, error) {
	if channel.IsStatusSource(source) {
		return parseStatus(text, source)
	}
	rows, err := parseRecords(text, source)
	if err != nil {
		return nil, err
	}
	return map[string]Batch{source: {Kind: channel.KindRecord, Rows: rows}}, nil
}

func parseRecords(text string, source string) ([]channel.Row, error) {
	var rows []channel.Row
	err := eachLine(text, func(n int, fields []string) error {
		ts, err := parseTimestamp(fields)
		if err != nil {
			return &LineError{Source: source, Line: n, Err: err}
		}
		values := make([]channel.Value, 0, len(fields)-2)
		for j := 2; j < len(fields); j++ {
			values = append(values, fieldValue(source, j, fields[j]))
		}
		rows = append(rows, channel.Row{Time: ts, Fields: values})
		return nil
	})
	return rows, err
}

func parseStatus(text string, source string) (map[string]Batch, error) {
	out := map[string]Batch{}
	err := eachLine(text, func(n int, fields []string) error {
		ts, err := parseTimestamp(fields)
		if err != nil {
			return &LineError{Source: source, Line: n, Err: err}
		}
		pairs := fields[2:]
		if len(pairs)%2 != 0 {
			return &LineError{Source: source, Line: n, Err: fmt.Errorf("status key %q has no value", pairs[len(pairs)-1])}
		}
		for i := 0; i < len(pairs); i += 2 {
			key := strings.TrimSpace(pairs[i])
			value, err := strconv.ParseFloat(strings.TrimSpace(pairs[i+1]), 64)
			if err != nil {
				return &LineError{Source: source, Line: n, Err: fmt.Errorf("status %q: %w", key, err)}
			}
			name := channel.StatusChannelName(key)
			batch := out[name]
			batch.Kind = channel.KindStatus
			batch.Rows = append(batch.Rows, channel.StatusRow(ts, value))
			out[name] = batch
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// eachLine calls fn with the 1-based line number and comma-split fields of
// every non-blank line.
func eachLine(text string, fn func(n int, fields []string) error) error {
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := fn(i+1, strings.Split(line, ",")); err != nil {
			return err
		}
	}
	return nil
}

func parseTimestamp(fields []string) (time.Time, error) {
	if len(fields) < 2 {
		return time.Time{}, fmt.Errorf("expected date and time fields, got %d field(s)", len(fields))
	}
	stamp := strings.TrimSpace(fields[0]) + " " + strings.TrimSpace(fields[1])
	ts, err := time.ParseInLocation(TimestampLayout, stamp, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", stamp, err)
	}
	return ts, nil
}

// fieldValue stores label positions as interned labels and everything else
// as a number. Text that is not a number is kept as a label rather than
// dropped.
func fieldValue(source string, j int, raw string) channel.Value {
	if IsLabelField(source, j) {
		return channel.Label(raw)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return channel.Label(raw)
	}
	return channel.Number(v)
}

// IsLabelField reports whether field j of a line (date is 0, time is 1)
// holds a low-cardinality label for the given source. maxigauge files
// repeat label groups every six fields, Channels files every other field.
func IsLabelField(source string, j int) bool {
	if j < 2 {
		return false
	}
	switch {
	case strings.HasPrefix(source, "maxigauge"):
		return (j-1)%6 <= 2
	case strings.HasPrefix(source, "Channels"):
		return (j-1)%2 == 0
	default:
		return false
	}
}
