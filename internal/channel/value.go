package channel

import (
	"strconv"
	"unique"
)

// Value is one field of a row: either a number or an interned label.
// Labels are the low-cardinality columns (gauge names, on/off flags) that
// repeat on every line, so equal strings share one allocation.
type Value struct {
	num   float64
	label unique.Handle[string]
	isLbl bool
}

func Number(v float64) Value {
	return Value{num: v}
}

func Label(s string) Value {
	return Value{label: unique.Make(s), isLbl: true}
}

func (v Value) IsLabel() bool {
	return v.isLbl
}

func (v Value) Float() (float64, bool) {
	if v.isLbl {
		return 0, false
	}
	return v.num, true
}

// Equal compares by original value: labels by string, numbers numerically.
func (v Value) Equal(other Value) bool {
	if v.isLbl != other.isLbl {
		return false
	}
	if v.isLbl {
		return v.label == other.label
	}
	return v.num == other.num
}

func (v Value) String() string {
	if v.isLbl {
		return v.label.Value()
	}
	return strconv.FormatFloat(v.num, 'g', -1, 64)
}
