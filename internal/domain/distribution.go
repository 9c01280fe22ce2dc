package domain

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultHistogramBins matches the bin count of the reference chart.
const DefaultHistogramBins = 30

// HistogramBin counts sensors whose rate falls in [Low, High). The last bin
// of a histogram also includes its upper edge.
type HistogramBin struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// Distribution describes the shape of per-sensor congestion rates.
type Distribution struct {
	Sensors int            `json:"sensors"`
	Min     float64        `json:"min"`
	Q1      float64        `json:"q1"`
	Median  float64        `json:"median"`
	Q3      float64        `json:"q3"`
	Max     float64        `json:"max"`
	Mean    float64        `json:"mean"`
	StdDev  float64        `json:"std_dev"`
	Bins    []HistogramBin `json:"bins,omitempty"`
}

// Describe computes the distribution of the given sensor rates using the
// requested number of equal-width bins between the minimum and maximum rate.
func Describe(sensors []SensorSummary, bins int) Distribution {
	if len(sensors) == 0 {
		return Distribution{}
	}
	if bins < 1 {
		bins = 1
	}

	x := make([]float64, len(sensors))
	for i, s := range sensors {
		x[i] = s.Rate
	}
	sort.Float64s(x)

	d := Distribution{
		Sensors: len(x),
		Min:     x[0],
		Q1:      stat.Quantile(0.25, stat.Empirical, x, nil),
		Median:  stat.Quantile(0.5, stat.Empirical, x, nil),
		Q3:      stat.Quantile(0.75, stat.Empirical, x, nil),
		Max:     x[len(x)-1],
	}
	if len(x) > 1 {
		d.Mean, d.StdDev = stat.MeanStdDev(x, nil)
	} else {
		d.Mean = x[0]
	}
	d.Bins = histogram(x, bins)
	return d
}

// histogram bins sorted values x into n equal-width bins.
func histogram(x []float64, n int) []HistogramBin {
	lo, hi := x[0], x[len(x)-1]
	if lo == hi {
		return []HistogramBin{{Low: lo, High: hi, Count: len(x)}}
	}

	dividers := make([]float64, n+1)
	floats.Span(dividers, lo, hi)
	// stat.Histogram excludes the upper divider; widen it so max lands in the last bin.
	upper := dividers[n]
	dividers[n] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(nil, dividers, x, nil)
	dividers[n] = upper

	out := make([]HistogramBin, n)
	for i := range out {
		out[i] = HistogramBin{Low: dividers[i], High: dividers[i+1], Count: int(counts[i])}
	}
	return out
}
