// Package sqlite persists congestion runs to a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/traffic-congestion/internal/domain"
)

// Store writes every Comparison it receives as one run. It implements
// pipeline.Reporter.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and migrates it.
// ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	// One writer at a time; also keeps an in-memory database on one connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if err := Migrate(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, logger: logger}, nil
}

func buildDSN(path string) (string, error) {
	params := "_foreign_keys=on&_busy_timeout=5000"
	if path == ":memory:" {
		return "file::memory:?" + params, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + params, nil
	}
	return "file:" + path + "?" + params + "&_journal_mode=WAL", nil
}

// Name identifies the reporter in logs and metrics.
func (s *Store) Name() string { return "sqlite" }

// Report stores c as a new run in a single transaction.
func (s *Store) Report(ctx context.Context, c domain.Comparison) error {
	runID, err := s.SaveRun(ctx, c)
	if err != nil {
		return err
	}
	s.logger.Info("run stored", "run_id", runID, "datasets", len(c.Summaries))
	return nil
}

// SaveRun inserts c and returns the new run ID.
func (s *Store) SaveRun(ctx context.Context, c domain.Comparison) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin run: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (generated_at, threshold) VALUES (?, ?)`,
		formatTime(c.GeneratedAt), c.Threshold)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	for _, sum := range c.Summaries {
		if err := insertSummary(ctx, tx, runID, sum); err != nil {
			return 0, fmt.Errorf("insert %s: %w", sum.Dataset, err)
		}
	}
	for _, f := range c.Failures {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO dataset_failures (run_id, dataset, error) VALUES (?, ?, ?)`,
			runID, f.Dataset, f.Error); err != nil {
			return 0, fmt.Errorf("insert failure %s: %w", f.Dataset, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}
	return runID, nil
}

func insertSummary(ctx context.Context, tx *sql.Tx, runID int64, s domain.DatasetSummary) error {
	var maxSensor sql.NullString
	if s.MaxSensor != nil {
		maxSensor = sql.NullString{String: s.MaxSensor.SensorID, Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO dataset_summaries
			(run_id, dataset, span_start, span_end, row_count, num_sensors,
			 valid_readings, missing_readings, congested_readings, overall_rate, max_sensor_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, s.Dataset, nullTime(s.TimeSpan.Start), nullTime(s.TimeSpan.End), s.Rows, s.NumSensors,
		s.Valid, s.Missing, s.Congested, s.OverallRate, maxSensor,
	); err != nil {
		return err
	}

	sensorStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sensor_rates (run_id, dataset, sensor_id, readings, congested, rate, latitude, longitude, place)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer sensorStmt.Close()

	located := make(map[string]*domain.SensorLocation, len(s.TopSensors))
	for _, top := range s.TopSensors {
		located[top.SensorID] = top.Location
	}
	for _, sensor := range s.Sensors {
		loc := sensor.Location
		if loc == nil {
			loc = located[sensor.SensorID]
		}
		var lat, lon sql.NullFloat64
		var place sql.NullString
		if loc != nil {
			lat = sql.NullFloat64{Float64: loc.Lat, Valid: true}
			lon = sql.NullFloat64{Float64: loc.Lon, Valid: true}
			place = sql.NullString{String: loc.PlaceName, Valid: loc.PlaceName != ""}
		}
		if _, err := sensorStmt.ExecContext(ctx, runID, s.Dataset, sensor.SensorID,
			sensor.Readings, sensor.Congested, sensor.Rate, lat, lon, place); err != nil {
			return err
		}
	}

	hourStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO hourly_rates (run_id, dataset, hour, readings, congested, rate)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer hourStmt.Close()

	for _, h := range s.Hourly {
		if _, err := hourStmt.ExecContext(ctx, runID, s.Dataset, h.Hour, h.Readings, h.Congested, h.Rate); err != nil {
			return err
		}
	}
	return nil
}

// RunRecord is a stored run as read back by LatestRun.
type RunRecord struct {
	ID          int64
	GeneratedAt time.Time
	Threshold   float64
	Rates       map[string]float64
	Failures    map[string]string
}

// LatestRun returns the most recently stored run, or sql.ErrNoRows.
func (s *Store) LatestRun(ctx context.Context) (RunRecord, error) {
	var (
		rec RunRecord
		ts  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, generated_at, threshold FROM runs ORDER BY id DESC LIMIT 1`,
	).Scan(&rec.ID, &ts, &rec.Threshold)
	if err != nil {
		return RunRecord{}, err
	}
	if rec.GeneratedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
		return RunRecord{}, fmt.Errorf("parse generated_at %q: %w", ts, err)
	}

	rec.Rates = make(map[string]float64)
	err = s.scanPairs(ctx, `SELECT dataset, overall_rate FROM dataset_summaries WHERE run_id = ?`, rec.ID,
		func(rows *sql.Rows) error {
			var name string
			var rate float64
			if err := rows.Scan(&name, &rate); err != nil {
				return err
			}
			rec.Rates[name] = rate
			return nil
		})
	if err != nil {
		return RunRecord{}, err
	}

	rec.Failures = make(map[string]string)
	err = s.scanPairs(ctx, `SELECT dataset, error FROM dataset_failures WHERE run_id = ?`, rec.ID,
		func(rows *sql.Rows) error {
			var name, msg string
			if err := rows.Scan(&name, &msg); err != nil {
				return err
			}
			rec.Failures[name] = msg
			return nil
		})
	if err != nil {
		return RunRecord{}, err
	}
	return rec, nil
}

// scanPairs runs a per-run query and releases its connection before returning.
func (s *Store) scanPairs(ctx context.Context, query string, runID int64, scan func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}
