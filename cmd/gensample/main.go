// Command gensample writes a small synthetic speed dataset in both CSV and
// HDF5 form, plus a sensor location file, so the job can be run without the
// full METR-LA or PEMS-BAY downloads. Output is deterministic for a seed.
//
// Usage:
//
//	go run ./cmd/gensample \
//	  -out data/sample \
//	  -sensors 20 -days 7 -seed 42
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/traffic-congestion/internal/adapter/dataset"
	"github.com/couchcryptid/traffic-congestion/internal/domain"
)

// Downtown Los Angeles; sensors are scattered around it.
const (
	centerLat = 34.0522
	centerLon = -118.2437
)

var baseDate = time.Date(2012, time.March, 1, 0, 0, 0, 0, time.UTC)

type params struct {
	sensors     int
	days        int
	missingRate float64
	seed        uint64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data/sample", "output directory")
	name := flag.String("name", "sample", "file name stem")
	sensors := flag.Int("sensors", 20, "number of sensors")
	days := flag.Int("days", 7, "number of days at 5-minute resolution")
	missing := flag.Float64("missing", 0.02, "fraction of readings left empty")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	if *sensors < 1 || *days < 1 || *missing < 0 || *missing >= 1 {
		flag.Usage()
		return fmt.Errorf("invalid flags: need -sensors >= 1, -days >= 1, 0 <= -missing < 1")
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	p := params{sensors: *sensors, days: *days, missingRate: *missing, seed: *seed}
	tbl, err := generate(p)
	if err != nil {
		return err
	}

	csvPath := filepath.Join(*out, *name+".csv")
	if err := writeCSV(csvPath, tbl); err != nil {
		return err
	}
	log.Printf("wrote %s", csvPath)

	h5Path := filepath.Join(*out, *name+".h5")
	if err := dataset.WriteHDF5(h5Path, tbl); err != nil {
		return err
	}
	log.Printf("wrote %s", h5Path)

	locPath := filepath.Join(*out, *name+"_locations.csv")
	if err := writeLocations(locPath, tbl.Sensors, p.seed); err != nil {
		return err
	}
	log.Printf("wrote %s", locPath)

	printStats(tbl)
	return nil
}

// generate builds a speed table with a free-flow baseline per sensor and
// slowdowns around the morning and evening rush hours on weekdays.
func generate(p params) (*domain.Table, error) {
	rng := rand.New(rand.NewPCG(p.seed, p.seed^0x9e3779b97f4a7c15))

	ids := make([]string, p.sensors)
	freeFlow := make([]float64, p.sensors)
	// Susceptibility scales how hard each sensor is hit by rush hour.
	susceptibility := make([]float64, p.sensors)
	for j := range ids {
		ids[j] = strconv.Itoa(717000 + j*37)
		freeFlow[j] = 60 + rng.Float64()*10
		susceptibility[j] = rng.Float64()
	}

	clock := clockwork.NewFakeClockAt(baseDate)
	rows := p.days * 24 * int(time.Hour/domain.DefaultInterval)
	timestamps := make([]time.Time, rows)
	speeds := make([]float64, 0, rows*p.sensors)
	for i := range timestamps {
		ts := clock.Now()
		timestamps[i] = ts
		for j := range ids {
			if rng.Float64() < p.missingRate {
				speeds = append(speeds, math.NaN())
				continue
			}
			drop := rushHour(ts) * susceptibility[j] * 55
			v := freeFlow[j] - drop + rng.NormFloat64()*3
			speeds = append(speeds, math.Round(max(v, 1)*1000)/1000)
		}
		clock.Advance(domain.DefaultInterval)
	}

	return domain.NewTable("SAMPLE", timestamps, ids, speeds)
}

// rushHour returns 0..1, peaking at 08:00 and 17:30 on weekdays.
func rushHour(ts time.Time) float64 {
	if ts.Weekday() == time.Saturday || ts.Weekday() == time.Sunday {
		return 0
	}
	h := float64(ts.Hour()) + float64(ts.Minute())/60
	peak := func(center, width float64) float64 {
		d := (h - center) / width
		return math.Exp(-d * d)
	}
	return max(peak(8, 1.2), peak(17.5, 1.5))
}

func writeCSV(path string, tbl *domain.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return dataset.WriteCSV(f, tbl)
}

func writeLocations(path string, ids []string, seed uint64) error {
	rng := rand.New(rand.NewPCG(seed+1, seed))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, "sensor_id,latitude,longitude"); err != nil {
		return err
	}
	for _, id := range ids {
		lat := centerLat + (rng.Float64()-0.5)*0.3
		lon := centerLon + (rng.Float64()-0.5)*0.4
		if _, err := fmt.Fprintf(f, "%s,%.6f,%.6f\n", id, lat, lon); err != nil {
			return err
		}
	}
	return nil
}

func printStats(tbl *domain.Table) {
	s := domain.Summarize(tbl, domain.DefaultRule(), 3, domain.DefaultHistogramBins)
	fmt.Printf("\nRows: %d, sensors: %d\n", s.Rows, s.NumSensors)
	fmt.Printf("Time span: %s\n", s.TimeSpan)
	fmt.Printf("Missing readings: %d\n", s.Missing)
	fmt.Printf("Overall congestion ratio: %s\n", domain.FormatRate(s.OverallRate))
	for _, sensor := range s.TopSensors {
		fmt.Printf("  %s: %s\n", sensor.SensorID, domain.FormatRate(sensor.Rate))
	}
}
