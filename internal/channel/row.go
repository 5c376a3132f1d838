package channel

import (
	"slices"
	"time"
)

type Kind uint8

const (
	// KindRecord rows carry the positional fields of a generic log line.
	KindRecord Kind = iota
	// KindStatus rows carry exactly one numeric value.
	KindStatus
)

func (k Kind) String() string {
	if k == KindStatus {
		return "status"
	}
	return "record"
}

type Row struct {
	Time   time.Time
	Fields []Value
}

func StatusRow(at time.Time, value float64) Row {
	return Row{Time: at, Fields: []Value{Number(value)}}
}

func (r Row) Equal(other Row) bool {
	return r.Time.Equal(other.Time) && slices.EqualFunc(r.Fields, other.Fields, Value.Equal)
}

// sameValue is the status dedup comparison.
func sameValue(a, b Row) bool {
	return slices.EqualFunc(a.Fields, b.Fields, Value.Equal)
}

func isSorted(rows []Row) bool {
	return slices.IsSortedFunc(rows, compareTime)
}

func compareTime(a, b Row) int {
	return a.Time.Compare(b.Time)
}

// Dedup keeps a status point when its value differs from the previous point
// or from the next one. The first and last points are always kept. The input
// slice is not modified.
func Dedup(rows []Row) []Row {
	if len(rows) <= 2 {
		return slices.Clone(rows)
	}
	out := make([]Row, 0, len(rows))
	last := len(rows) - 1
	for i, row := range rows {
		if i == 0 || i == last || !sameValue(row, rows[i-1]) || !sameValue(row, rows[i+1]) {
			out = append(out, row)
		}
	}
	return slices.Clip(out)
}
