package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTable_ShapeMismatch(t *testing.T) {
	_, err := NewTable("bad", []time.Time{baseTime}, []string{"a", "b"}, []float64{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 values for 1 rows x 2 sensors")
}

func TestTableFromReadings(t *testing.T) {
	tbl := TableFromReadings("t", []Reading{
		{Timestamp: at(0, 0), SensorID: "a", Speed: 1},
		{Timestamp: at(0, 5), SensorID: "b", Speed: 2},
	})

	assert.Equal(t, []string{"a", "b"}, tbl.Sensors)
	assert.Equal(t, 2, tbl.Rows())
	assert.Equal(t, 1.0, tbl.At(0, 0))
	assert.True(t, math.IsNaN(tbl.At(0, 1)))
	assert.True(t, math.IsNaN(tbl.At(1, 0)))
	assert.Equal(t, 2.0, tbl.At(1, 1))
}

func TestTable_Readings(t *testing.T) {
	ts := SyntheticTimestamps(baseTime, DefaultInterval, 2)
	tbl, err := NewTable("t", ts, []string{"a", "b"}, []float64{1, 2, 3, 4})
	require.NoError(t, err)

	var got []Reading
	for r := range tbl.Readings() {
		got = append(got, r)
	}

	require.Len(t, got, 4)
	assert.Equal(t, Reading{Timestamp: ts[0], SensorID: "a", Speed: 1}, got[0])
	assert.Equal(t, Reading{Timestamp: ts[0], SensorID: "b", Speed: 2}, got[1])
	assert.Equal(t, Reading{Timestamp: ts[1], SensorID: "b", Speed: 4}, got[3])

	// Early break must stop iteration.
	n := 0
	for range tbl.Readings() {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestSyntheticTimestamps(t *testing.T) {
	ts := SyntheticTimestamps(baseTime, 5*time.Minute, 13)
	require.Len(t, ts, 13)
	assert.Equal(t, baseTime, ts[0])
	assert.Equal(t, baseTime.Add(time.Hour), ts[12])
}
