package gateway

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"drmonitor/internal/channel"
	"drmonitor/internal/query"
)

// encodeCSV writes a header and one line per row with the timestamp first.
// Status channels have a single "value" column; record columns are named
// by their position in the source line, so the first value is column 2.
func encodeCSV(kind channel.Kind, rows []channel.Row) ([]byte, error) {
	width := 1
	if kind == channel.KindRecord {
		width = 0
		for _, row := range rows {
			width = max(width, len(row.Fields))
		}
	}

	header := make([]string, 0, width+1)
	header = append(header, "datetime")
	if kind == channel.KindStatus {
		header = append(header, "value")
	} else {
		for i := range width {
			header = append(header, strconv.Itoa(i+2))
		}
	}

	var buf bytes.Buffer
	out := csv.NewWriter(&buf)
	if err := out.Write(header); err != nil {
		return nil, err
	}
	record := make([]string, width+1)
	for _, row := range rows {
		record[0] = row.Time.UTC().Format(query.TimeLayout)
		for i := range width {
			record[i+1] = ""
			if i < len(row.Fields) {
				record[i+1] = row.Fields[i].String()
			}
		}
		if err := out.Write(record); err != nil {
			return nil, err
		}
	}
	out.Flush()
	if err := out.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
