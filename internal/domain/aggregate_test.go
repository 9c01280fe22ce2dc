package domain

import (
	"math"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2012, time.March, 1, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return baseTime.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func TestPerSensorRate_SingleSensor(t *testing.T) {
	readings := []Reading{
		{Timestamp: at(8, 0), SensorID: "1", Speed: 20},
		{Timestamp: at(8, 5), SensorID: "1", Speed: 70},
	}

	got := PerSensorRate(slices.Values(readings), 35)

	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].SensorID)
	assert.InDelta(t, 0.5, got[0].Rate, 1e-12)
	assert.Equal(t, 2, got[0].Readings)
	assert.Equal(t, 1, got[0].Congested)
}

func TestAggregates_EmptyInput(t *testing.T) {
	empty := slices.Values([]Reading(nil))

	assert.Equal(t, 0.0, OverallRate(empty, 20))
	assert.Empty(t, PerSensorRate(empty, 20))

	hours := PerHourRate(empty, 20)
	require.Len(t, hours, HoursPerDay)
	for h, s := range hours {
		assert.Equal(t, h, s.Hour)
		assert.Equal(t, 0.0, s.Rate)
	}
}

func TestPerSensorRate_OrderAndTieBreak(t *testing.T) {
	readings := []Reading{
		{Timestamp: at(0, 0), SensorID: "b", Speed: 10},
		{Timestamp: at(0, 0), SensorID: "a", Speed: 10},
		{Timestamp: at(0, 0), SensorID: "c", Speed: 60},
		{Timestamp: at(0, 5), SensorID: "b", Speed: 60},
		{Timestamp: at(0, 5), SensorID: "a", Speed: 60},
		{Timestamp: at(0, 5), SensorID: "c", Speed: 5},
		{Timestamp: at(0, 10), SensorID: "d", Speed: 5},
	}

	got := PerSensorRate(slices.Values(readings), 20)

	ids := make([]string, len(got))
	for i, s := range got {
		ids[i] = s.SensorID
	}
	// d is 100%, then b, a, c tie at 50% in first-seen order.
	if diff := cmp.Diff([]string{"d", "b", "a", "c"}, ids); diff != "" {
		t.Fatalf("sensor order mismatch (-want +got):\n%s", diff)
	}

	top, ok := MostCongested(got)
	require.True(t, ok)
	assert.Equal(t, "d", top.SensorID)
}

func TestMostCongested_FirstAtMaximum(t *testing.T) {
	sensors := []SensorSummary{
		{SensorID: "x", Rate: 0.2},
		{SensorID: "y", Rate: 0.7},
		{SensorID: "z", Rate: 0.7},
	}
	top, ok := MostCongested(sensors)
	require.True(t, ok)
	assert.Equal(t, "y", top.SensorID)

	_, ok = MostCongested(nil)
	assert.False(t, ok)
}

func TestPerSensorRate_ExcludesSensorsWithoutValidReadings(t *testing.T) {
	readings := []Reading{
		{Timestamp: at(1, 0), SensorID: "ok", Speed: 10},
		{Timestamp: at(1, 0), SensorID: "dead", Speed: math.NaN()},
		{Timestamp: at(1, 5), SensorID: "dead", Speed: math.NaN()},
	}

	got := PerSensorRate(slices.Values(readings), 20)

	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].SensorID)
	for _, s := range got {
		assert.False(t, math.IsNaN(s.Rate))
	}
}

func TestPerSensorRate_RemovingSensorRemovesEntry(t *testing.T) {
	readings := sampleReadings()
	without := slices.DeleteFunc(slices.Clone(readings), func(r Reading) bool { return r.SensorID == "s2" })

	for _, s := range PerSensorRate(slices.Values(without), 20) {
		assert.NotEqual(t, "s2", s.SensorID)
	}
	assert.Len(t, PerSensorRate(slices.Values(without), 20), len(PerSensorRate(slices.Values(readings), 20))-1)
}

func TestMissingReadingsExcluded(t *testing.T) {
	readings := []Reading{
		{Timestamp: at(7, 0), SensorID: "s", Speed: 10},
		{Timestamp: at(7, 5), SensorID: "s", Speed: math.NaN()},
		{Timestamp: at(7, 10), SensorID: "s", Speed: 50},
	}

	assert.InDelta(t, 0.5, OverallRate(slices.Values(readings), 20), 1e-12)
	hours := PerHourRate(slices.Values(readings), 20)
	assert.Equal(t, 2, hours[7].Readings)
	assert.InDelta(t, 0.5, hours[7].Rate, 1e-12)
}

func TestPerHourRate_BucketsByHourIgnoringDate(t *testing.T) {
	readings := []Reading{
		{Timestamp: at(8, 0), SensorID: "s", Speed: 10},
		{Timestamp: at(24+8, 30), SensorID: "s", Speed: 10},
		{Timestamp: at(8, 55), SensorID: "s", Speed: 60},
		{Timestamp: at(17, 0), SensorID: "s", Speed: 60},
	}

	hours := PerHourRate(slices.Values(readings), 20)

	require.Len(t, hours, HoursPerDay)
	assert.Equal(t, 3, hours[8].Readings)
	assert.InDelta(t, 2.0/3.0, hours[8].Rate, 1e-12)
	assert.Equal(t, 1, hours[17].Readings)
	assert.Equal(t, 0.0, hours[17].Rate)
	for _, h := range hours {
		assert.GreaterOrEqual(t, h.Rate, 0.0)
		assert.LessOrEqual(t, h.Rate, 1.0)
	}
}

func TestGroupingsPartitionValidReadings(t *testing.T) {
	readings := sampleReadings()
	overall := OverallRate(slices.Values(readings), 20)

	var sensorTotal, sensorCongested, weighted float64
	for _, s := range PerSensorRate(slices.Values(readings), 20) {
		assert.GreaterOrEqual(t, s.Rate, 0.0)
		assert.LessOrEqual(t, s.Rate, 1.0)
		sensorTotal += float64(s.Readings)
		sensorCongested += float64(s.Congested)
		weighted += s.Rate * float64(s.Readings)
	}

	var hourTotal float64
	for _, h := range PerHourRate(slices.Values(readings), 20) {
		hourTotal += float64(h.Readings)
	}

	valid := 0
	for _, r := range readings {
		if !r.Missing() {
			valid++
		}
	}

	assert.Equal(t, float64(valid), sensorTotal)
	assert.Equal(t, float64(valid), hourTotal)
	assert.InDelta(t, overall*float64(valid), weighted, 1e-9)
	assert.InDelta(t, overall*float64(valid), sensorCongested, 1e-9)
}

func TestTally_AddTableMatchesAdd(t *testing.T) {
	tbl := TableFromReadings("sample", sampleReadings())
	rule := DefaultRule()

	viaTable := NewTally(rule.Classify)
	viaTable.AddTable(tbl)

	viaReadings := NewTally(rule.Classify)
	for r := range tbl.Readings() {
		viaReadings.Add(r)
	}

	assert.Equal(t, viaReadings.Valid(), viaTable.Valid())
	assert.Equal(t, viaReadings.Missing(), viaTable.Missing())
	assert.Equal(t, viaReadings.Congested(), viaTable.Congested())
	if diff := cmp.Diff(viaReadings.Sensors(), viaTable.Sensors()); diff != "" {
		t.Fatalf("sensor summaries mismatch (-readings +table):\n%s", diff)
	}
	if diff := cmp.Diff(viaReadings.Hours(), viaTable.Hours()); diff != "" {
		t.Fatalf("hourly summaries mismatch (-readings +table):\n%s", diff)
	}
}

// sampleReadings covers three sensors over two days with a few gaps.
func sampleReadings() []Reading {
	speeds := map[string][]float64{
		"s1": {65, 12, 8, 70, math.NaN(), 15},
		"s2": {45, 50, 19.9, 20, 21, 60},
		"s3": {math.NaN(), 5, 5, 66, 4, 3},
	}
	times := []time.Time{at(6, 0), at(7, 30), at(8, 15), at(12, 0), at(24+7, 45), at(24+17, 10)}

	var out []Reading
	for i, ts := range times {
		for _, id := range []string{"s1", "s2", "s3"} {
			out = append(out, Reading{Timestamp: ts, SensorID: id, Speed: speeds[id][i]})
		}
	}
	return out
}
