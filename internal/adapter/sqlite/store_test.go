package sqlite

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/traffic-congestion/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleComparison() domain.Comparison {
	hourly := make([]domain.HourlySummary, domain.HoursPerDay)
	for h := range hourly {
		hourly[h] = domain.HourlySummary{Hour: h, Readings: 10, Congested: h % 3, Rate: float64(h%3) / 10}
	}
	top := domain.SensorSummary{
		SensorID: "773869", Readings: 10, Congested: 5, Rate: 0.5,
		Location: &domain.SensorLocation{Lat: 34.15497, Lon: -118.31829, PlaceName: "Glendale"},
	}
	metr := domain.DatasetSummary{
		Dataset:     "METR-LA",
		Threshold:   20,
		TimeSpan:    domain.TimeSpan{Start: time.Date(2012, 3, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2012, 3, 2, 0, 0, 0, 0, time.UTC)},
		Rows:        12,
		NumSensors:  3,
		Valid:       20,
		Missing:     4,
		Congested:   6,
		OverallRate: 0.3,
		MaxSensor:   &top,
		TopSensors:  []domain.SensorSummary{top},
		Sensors: []domain.SensorSummary{
			{SensorID: "773869", Readings: 10, Congested: 5, Rate: 0.5},
			{SensorID: "767541", Readings: 10, Congested: 1, Rate: 0.1},
		},
		Hourly: hourly,
	}
	return domain.Comparison{
		GeneratedAt: time.Date(2026, 4, 26, 15, 10, 0, 0, time.UTC),
		Threshold:   20,
		Summaries:   []domain.DatasetSummary{metr},
		Failures:    []domain.DatasetFailure{{Dataset: "PEMS-BAY", Error: "not found"}},
	}
}

func count(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}

func TestOpen_AppliesMigrationsOnce(t *testing.T) {
	s := openTestStore(t)

	assert.Equal(t, 1, count(t, s.db, `SELECT COUNT(*) FROM schema_migrations WHERE version = '0001'`))
	require.NoError(t, Migrate(context.Background(), s.db, discardLogger()))
	assert.Equal(t, 1, count(t, s.db, `SELECT COUNT(*) FROM schema_migrations`))
}

func TestStore_Report(t *testing.T) {
	s := openTestStore(t)
	c := sampleComparison()

	require.NoError(t, s.Report(context.Background(), c))

	assert.Equal(t, 1, count(t, s.db, `SELECT COUNT(*) FROM runs`))
	assert.Equal(t, 1, count(t, s.db, `SELECT COUNT(*) FROM dataset_summaries`))
	assert.Equal(t, 2, count(t, s.db, `SELECT COUNT(*) FROM sensor_rates`))
	assert.Equal(t, 24, count(t, s.db, `SELECT COUNT(*) FROM hourly_rates`))
	assert.Equal(t, 1, count(t, s.db, `SELECT COUNT(*) FROM dataset_failures`))

	var place string
	var lat float64
	require.NoError(t, s.db.QueryRow(
		`SELECT place, latitude FROM sensor_rates WHERE sensor_id = '773869'`).Scan(&place, &lat))
	assert.Equal(t, "Glendale", place)
	assert.InDelta(t, 34.15497, lat, 1e-9)

	var maxSensor string
	var rowCount int
	require.NoError(t, s.db.QueryRow(
		`SELECT max_sensor_id, row_count FROM dataset_summaries WHERE dataset = 'METR-LA'`).Scan(&maxSensor, &rowCount))
	assert.Equal(t, "773869", maxSensor)
	assert.Equal(t, 12, rowCount)

	assert.Equal(t, 1, count(t, s.db, `SELECT COUNT(*) FROM sensor_rates WHERE latitude IS NULL`))
}

func TestStore_LatestRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.LatestRun(ctx)
	require.ErrorIs(t, err, sql.ErrNoRows)

	first := sampleComparison()
	_, err = s.SaveRun(ctx, first)
	require.NoError(t, err)

	second := sampleComparison()
	second.GeneratedAt = second.GeneratedAt.Add(time.Hour)
	second.Summaries[0].OverallRate = 0.1078
	second.Failures = nil
	id, err := s.SaveRun(ctx, second)
	require.NoError(t, err)

	rec, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.True(t, second.GeneratedAt.Equal(rec.GeneratedAt))
	assert.Equal(t, 20.0, rec.Threshold)
	assert.Equal(t, map[string]float64{"METR-LA": 0.1078}, rec.Rates)
	assert.Empty(t, rec.Failures)
}

func TestStore_DuplicateDatasetRollsBack(t *testing.T) {
	s := openTestStore(t)
	c := sampleComparison()
	c.Summaries = append(c.Summaries, c.Summaries[0])

	_, err := s.SaveRun(context.Background(), c)
	require.Error(t, err)
	assert.Equal(t, 0, count(t, s.db, `SELECT COUNT(*) FROM runs`))
}

func TestOpen_FileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "congestion.db")

	s, err := Open(context.Background(), path, discardLogger())
	require.NoError(t, err)
	require.NoError(t, s.Report(context.Background(), sampleComparison()))
	require.NoError(t, s.Close())

	reopened, err := Open(context.Background(), path, discardLogger())
	require.NoError(t, err)
	defer reopened.Close()
	rec, err := reopened.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "not found", rec.Failures["PEMS-BAY"])
	assert.Equal(t, "sqlite", reopened.Name())
}
