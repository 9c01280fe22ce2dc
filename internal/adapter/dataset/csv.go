package dataset

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/couchcryptid/traffic-congestion/internal/domain"
)

// timeIndexHeaders are first-column headers that mark a time index. gota
// renames an empty header to X0.
var timeIndexHeaders = map[string]bool{
	"":           true,
	"x0":         true,
	"unnamed: 0": true,
	"timestamp":  true,
	"time":       true,
	"datetime":   true,
	"date":       true,
}

var timestampLayouts = []string{
	time.DateTime,
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04",
	time.DateOnly,
}

// readCSV parses a wide speed table: one row per timestamp, one column per
// sensor. A leading time index column is used when present; otherwise
// timestamps are synthesized from the dataset's start and interval.
func readCSV(r io.Reader, ds domain.Dataset, rule domain.Rule) (*domain.Table, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("read csv: %w", df.Err)
	}

	records := df.Records()
	header, rows := records[0], records[1:]
	if len(header) == 0 {
		return nil, errors.New("read csv: no columns")
	}

	first := 0
	hasIndex := timeIndexHeaders[strings.ToLower(strings.TrimSpace(header[0]))]
	if hasIndex {
		first = 1
	}
	sensors := make([]string, 0, len(header)-first)
	for _, h := range header[first:] {
		sensors = append(sensors, normalizeID(h))
	}

	var timestamps []time.Time
	if hasIndex {
		timestamps = make([]time.Time, len(rows))
		for i, row := range rows {
			ts, err := parseTimestamp(row[0])
			if err != nil {
				return nil, fmt.Errorf("read csv: row %d: %w", i+1, err)
			}
			timestamps[i] = ts
		}
	} else {
		timestamps = synthesize(ds, len(rows))
	}

	speeds := make([]float64, 0, len(rows)*len(sensors))
	for _, row := range rows {
		for _, cell := range row[first:] {
			speeds = append(speeds, rule.ParseSpeed(cell))
		}
	}

	return domain.NewTable(ds.Name, timestamps, sensors, speeds)
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", s)
}
