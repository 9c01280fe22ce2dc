package domain

import (
	"fmt"
	"slices"
	"time"
)

// DefaultTopSensors is how many of the most congested sensors a report lists.
const DefaultTopSensors = 5

// DatasetSummary is the report unit for one dataset.
type DatasetSummary struct {
	Dataset      string          `json:"dataset"`
	Threshold    float64         `json:"threshold"`
	TimeSpan     TimeSpan        `json:"time_span"`
	Rows         int             `json:"rows"`
	NumSensors   int             `json:"num_sensors"`
	Valid        int             `json:"valid_readings"`
	Missing      int             `json:"missing_readings"`
	Congested    int             `json:"congested_readings"`
	OverallRate  float64         `json:"overall_rate"`
	MaxSensor    *SensorSummary  `json:"max_sensor,omitempty"`
	TopSensors   []SensorSummary `json:"top_sensors"`
	Sensors      []SensorSummary `json:"sensors"`
	Hourly       []HourlySummary `json:"hourly"`
	Distribution Distribution    `json:"distribution"`
}

// Summarize classifies every reading of t with rule and aggregates the
// results into a DatasetSummary listing the topN most congested sensors.
func Summarize(t *Table, rule Rule, topN, bins int) DatasetSummary {
	tally := NewTally(rule.Classify)
	tally.AddTable(t)

	sensors := tally.Sensors()
	s := DatasetSummary{
		Dataset:      t.Dataset,
		Threshold:    rule.Threshold,
		TimeSpan:     t.Span(),
		Rows:         t.Rows(),
		NumSensors:   tally.SensorCount(),
		Valid:        tally.Valid(),
		Missing:      tally.Missing(),
		Congested:    tally.Congested(),
		OverallRate:  tally.Overall(),
		TopSensors:   slices.Clone(sensors[:min(max(topN, 0), len(sensors))]),
		Sensors:      sensors,
		Hourly:       tally.Hours(),
		Distribution: Describe(sensors, bins),
	}
	if top, ok := MostCongested(sensors); ok {
		s.MaxSensor = &top
	}
	return s
}

// DatasetFailure records a dataset whose analysis was aborted.
type DatasetFailure struct {
	Dataset string `json:"dataset"`
	Error   string `json:"error"`
}

// Comparison is the cross-dataset unit handed to reporters.
type Comparison struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Threshold   float64          `json:"threshold"`
	Summaries   []DatasetSummary `json:"summaries"`
	Failures    []DatasetFailure `json:"failures,omitempty"`
}

// NewComparison stamps a comparison with the package clock.
func NewComparison(threshold float64, summaries []DatasetSummary, failures []DatasetFailure) Comparison {
	return Comparison{
		GeneratedAt: clock.Now().UTC(),
		Threshold:   threshold,
		Summaries:   summaries,
		Failures:    failures,
	}
}

// FormatRate renders a fraction as a percentage with two decimals, e.g. 0.1078 -> "10.78%".
func FormatRate(rate float64) string {
	return fmt.Sprintf("%.2f%%", rate*100)
}
