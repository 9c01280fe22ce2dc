package main

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/traffic-congestion/internal/domain"
)

var t0 = time.Date(2012, time.March, 1, 0, 0, 0, 0, time.UTC)

func table(t *testing.T, sensors []string, speeds []float64) *domain.Table {
	t.Helper()
	rows := len(speeds) / len(sensors)
	tbl, err := domain.NewTable("x", domain.SyntheticTimestamps(t0, domain.DefaultInterval, rows), sensors, speeds)
	require.NoError(t, err)
	return tbl
}

func failed(phases []*phase) []string {
	var names []string
	for _, p := range phases {
		if !p.passed() {
			names = append(names, p.name)
		}
	}
	return names
}

func TestCompare_Identical(t *testing.T) {
	a := table(t, []string{"1", "2"}, []float64{60, math.NaN(), 10, 55})
	b := table(t, []string{"1", "2"}, []float64{60, math.NaN(), 10, 55.0000001})

	phases := compare(a, b, 1e-6)
	assert.Len(t, phases, 5)
	assert.Empty(t, failed(phases))
}

func TestCompare_ShapeMismatchStopsEarly(t *testing.T) {
	a := table(t, []string{"1", "2"}, []float64{60, 50, 10, 55})
	b := table(t, []string{"1", "2"}, []float64{60, 50})

	phases := compare(a, b, 1e-6)
	require.Len(t, phases, 1)
	assert.Equal(t, []string{"Shape"}, failed(phases))
}

func TestCompare_DetectsDifferences(t *testing.T) {
	a := table(t, []string{"1", "2"}, []float64{60, 50, 10, 55})
	b := table(t, []string{"1", "3"}, []float64{60, math.NaN(), 30, 55})
	b.Timestamps[1] = b.Timestamps[1].Add(time.Minute)

	phases := compare(a, b, 1e-6)
	assert.Equal(t, []string{"Sensor order", "Timestamps", "Readings", "Congestion summary"}, failed(phases))

	for _, p := range phases {
		if p.name == "Readings" {
			assert.Len(t, p.errors, 2)
		}
	}
}
