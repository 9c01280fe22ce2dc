// Command verify checks that the CSV and HDF5 copies of a speed dataset hold
// the same data: shape, sensor order, timestamps, every reading and the
// resulting congestion summary. It exits non-zero on any mismatch.
//
// Usage:
//
//	go run ./cmd/verify \
//	  -csv data/metr_la/metr-la.csv \
//	  -h5 data/metr_la/metr-la.h5 \
//	  -start 2012-03-01
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/couchcryptid/traffic-congestion/internal/adapter/dataset"
	"github.com/couchcryptid/traffic-congestion/internal/domain"
)

// maxReported caps how many mismatches a phase lists.
const maxReported = 20

// phase tracks pass/fail for a verification phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	csvPath := flag.String("csv", "", "path to the CSV copy")
	h5Path := flag.String("h5", "", "path to the HDF5 copy")
	start := flag.String("start", "", "first timestamp (YYYY-MM-DD) for files without a time index")
	tolerance := flag.Float64("tolerance", 1e-6, "absolute tolerance for speed values")
	flag.Parse()

	if *csvPath == "" || *h5Path == "" {
		flag.Usage()
		os.Exit(1)
	}

	ds := domain.Dataset{Name: "verify", Interval: domain.DefaultInterval}
	if *start != "" {
		t, err := time.Parse(time.DateOnly, *start)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: invalid -start %q\n", *start)
			os.Exit(1)
		}
		ds.Start = t
	}

	if code := run(*csvPath, *h5Path, ds, *tolerance); code != 0 {
		os.Exit(code)
	}
}

func run(csvPath, h5Path string, ds domain.Dataset, tolerance float64) int {
	fmt.Println("=== Speed Dataset Verification ===")
	fmt.Println()

	// Keep raw values: sanitizing would hide differences above the cap.
	rule := domain.Rule{Threshold: domain.DefaultSpeedThreshold, MaxSpeed: math.Inf(1)}
	loader := dataset.NewLoader(rule, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx := context.Background()
	csvDS, h5DS := ds, ds
	csvDS.Path, h5DS.Path = csvPath, h5Path

	csvTbl, err := loader.Load(ctx, csvDS)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load CSV: %v\n", err)
		return 1
	}
	h5Tbl, err := loader.Load(ctx, h5DS)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load HDF5: %v\n", err)
		return 1
	}

	phases := compare(csvTbl, h5Tbl, tolerance)

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-30s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Shape: CSV %d x %d, HDF5 %d x %d\n", csvTbl.Rows(), len(csvTbl.Sensors), h5Tbl.Rows(), len(h5Tbl.Sensors))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll checks passed.")
		return 0
	}
	fmt.Println("\nVerification FAILED.")
	return 1
}

// compare runs every phase. Later phases are skipped when the shape differs.
func compare(a, b *domain.Table, tolerance float64) []*phase {
	shape := &phase{name: "Shape"}
	if a.Rows() != b.Rows() {
		shape.errorf("rows: CSV %d, HDF5 %d", a.Rows(), b.Rows())
	}
	if len(a.Sensors) != len(b.Sensors) {
		shape.errorf("sensors: CSV %d, HDF5 %d", len(a.Sensors), len(b.Sensors))
	}
	if !shape.passed() {
		return []*phase{shape}
	}

	return []*phase{
		shape,
		compareSensors(a, b),
		compareTimestamps(a, b),
		compareValues(a, b, tolerance),
		compareSummaries(a, b, tolerance),
	}
}

func compareSensors(a, b *domain.Table) *phase {
	p := &phase{name: "Sensor order"}
	for j := range a.Sensors {
		if a.Sensors[j] != b.Sensors[j] {
			p.errorf("column %d: CSV %s, HDF5 %s", j, a.Sensors[j], b.Sensors[j])
			if len(p.errors) >= maxReported {
				break
			}
		}
	}
	return p
}

func compareTimestamps(a, b *domain.Table) *phase {
	p := &phase{name: "Timestamps"}
	for i := range a.Timestamps {
		if !a.Timestamps[i].Equal(b.Timestamps[i]) {
			p.errorf("row %d: CSV %s, HDF5 %s", i, a.Timestamps[i].Format(time.DateTime), b.Timestamps[i].Format(time.DateTime))
			if len(p.errors) >= maxReported {
				break
			}
		}
	}
	return p
}

func compareValues(a, b *domain.Table, tolerance float64) *phase {
	p := &phase{name: "Readings"}
	for i := range a.Timestamps {
		for j := range a.Sensors {
			x, y := a.At(i, j), b.At(i, j)
			if math.IsNaN(x) && math.IsNaN(y) {
				continue
			}
			if math.IsNaN(x) || math.IsNaN(y) || !floats.EqualWithinAbs(x, y, tolerance) {
				p.errorf("row %d sensor %s: CSV %v, HDF5 %v", i, a.Sensors[j], x, y)
				if len(p.errors) >= maxReported {
					return p
				}
			}
		}
	}
	return p
}

func compareSummaries(a, b *domain.Table, tolerance float64) *phase {
	p := &phase{name: "Congestion summary"}
	rule := domain.DefaultRule()
	sa := domain.Summarize(a, rule, domain.DefaultTopSensors, domain.DefaultHistogramBins)
	sb := domain.Summarize(b, rule, domain.DefaultTopSensors, domain.DefaultHistogramBins)

	if sa.Valid != sb.Valid || sa.Missing != sb.Missing {
		p.errorf("readings: CSV %d valid %d missing, HDF5 %d valid %d missing", sa.Valid, sa.Missing, sb.Valid, sb.Missing)
	}
	if !floats.EqualWithinAbs(sa.OverallRate, sb.OverallRate, tolerance) {
		p.errorf("overall rate: CSV %s, HDF5 %s", domain.FormatRate(sa.OverallRate), domain.FormatRate(sb.OverallRate))
	}
	return p
}
