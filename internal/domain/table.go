package domain

import (
	"fmt"
	"iter"
	"math"
	"time"
)

// Reading is a single speed measurement of one sensor at one timestamp.
// Speed is NaN when the reading is missing.
type Reading struct {
	Timestamp time.Time
	SensorID  string
	Speed     float64
}

// Missing reports whether the reading carries no usable speed.
func (r Reading) Missing() bool {
	return math.IsNaN(r.Speed)
}

// Table is a dataset held in memory in its native wide layout.
// Speeds is row-major: Speeds[i*len(Sensors)+j] is the reading of
// Sensors[j] at Timestamps[i].
type Table struct {
	Dataset    string
	Timestamps []time.Time
	Sensors    []string
	Speeds     []float64
}

// NewTable validates the shape of the given columns and returns a Table.
func NewTable(dataset string, timestamps []time.Time, sensors []string, speeds []float64) (*Table, error) {
	if want := len(timestamps) * len(sensors); len(speeds) != want {
		return nil, fmt.Errorf("table %s: %d values for %d rows x %d sensors", dataset, len(speeds), len(timestamps), len(sensors))
	}
	return &Table{
		Dataset:    dataset,
		Timestamps: timestamps,
		Sensors:    sensors,
		Speeds:     speeds,
	}, nil
}

// TableFromReadings pivots long-format readings into a Table. Sensors and
// timestamps keep first-seen order; cells that no reading fills are NaN. A
// later reading for the same (timestamp, sensor) cell replaces an earlier one.
func TableFromReadings(dataset string, readings []Reading) *Table {
	sensorIdx := make(map[string]int)
	rowIdx := make(map[time.Time]int)
	t := &Table{Dataset: dataset}

	for _, r := range readings {
		if _, ok := sensorIdx[r.SensorID]; !ok {
			sensorIdx[r.SensorID] = len(t.Sensors)
			t.Sensors = append(t.Sensors, r.SensorID)
		}
		if _, ok := rowIdx[r.Timestamp]; !ok {
			rowIdx[r.Timestamp] = len(t.Timestamps)
			t.Timestamps = append(t.Timestamps, r.Timestamp)
		}
	}

	t.Speeds = make([]float64, len(t.Timestamps)*len(t.Sensors))
	for i := range t.Speeds {
		t.Speeds[i] = math.NaN()
	}
	for _, r := range readings {
		t.Speeds[rowIdx[r.Timestamp]*len(t.Sensors)+sensorIdx[r.SensorID]] = r.Speed
	}
	return t
}

// Rows returns the number of timestamps.
func (t *Table) Rows() int { return len(t.Timestamps) }

// At returns the speed of sensor column j at row i.
func (t *Table) At(i, j int) float64 {
	return t.Speeds[i*len(t.Sensors)+j]
}

// Readings yields every cell of the table in row-major order, missing cells
// included.
func (t *Table) Readings() iter.Seq[Reading] {
	return func(yield func(Reading) bool) {
		for i, ts := range t.Timestamps {
			for j, id := range t.Sensors {
				if !yield(Reading{Timestamp: ts, SensorID: id, Speed: t.At(i, j)}) {
					return
				}
			}
		}
	}
}

// Span returns the first and last timestamps of the table.
func (t *Table) Span() TimeSpan {
	if len(t.Timestamps) == 0 {
		return TimeSpan{}
	}
	return TimeSpan{Start: t.Timestamps[0], End: t.Timestamps[len(t.Timestamps)-1]}
}

// TimeSpan is the closed interval covered by a dataset.
type TimeSpan struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// String renders the span at day resolution, e.g. "2012-03-01 to 2012-06-27".
func (s TimeSpan) String() string {
	if s.Start.IsZero() && s.End.IsZero() {
		return "n/a"
	}
	return s.Start.Format(time.DateOnly) + " to " + s.End.Format(time.DateOnly)
}

// SyntheticTimestamps returns n timestamps starting at start, spaced by interval.
func SyntheticTimestamps(start time.Time, interval time.Duration, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * interval)
	}
	return out
}
