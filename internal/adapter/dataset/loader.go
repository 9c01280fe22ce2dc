// Package dataset reads traffic speed tables and sensor locations from disk.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/traffic-congestion/internal/domain"
)

// ErrUnsupportedFormat is returned for files whose extension names no known format.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Loader reads datasets into wide tables, sanitizing every speed with its rule.
type Loader struct {
	rule   domain.Rule
	logger *slog.Logger
}

// NewLoader creates a Loader applying rule to every loaded speed.
func NewLoader(rule domain.Rule, logger *slog.Logger) *Loader {
	return &Loader{rule: rule, logger: logger}
}

// Load reads ds from its primary path, or from AltPath when the primary file
// does not exist. Every failure is returned as a *domain.DataUnavailableError.
func (l *Loader) Load(ctx context.Context, ds domain.Dataset) (*domain.Table, error) {
	path := l.resolve(ds)
	if err := ctx.Err(); err != nil {
		return nil, &domain.DataUnavailableError{Dataset: ds.Name, Path: path, Err: err}
	}

	start := time.Now()
	tbl, err := l.read(ds, path)
	if err != nil {
		return nil, &domain.DataUnavailableError{Dataset: ds.Name, Path: path, Err: err}
	}

	l.logger.Info("dataset loaded",
		"dataset", ds.Name,
		"path", path,
		"rows", tbl.Rows(),
		"sensors", len(tbl.Sensors),
		"duration", time.Since(start),
	)
	return tbl, nil
}

func (l *Loader) resolve(ds domain.Dataset) string {
	if ds.AltPath == "" {
		return ds.Path
	}
	if _, err := os.Stat(ds.Path); errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("primary dataset file missing, using alternate",
			"dataset", ds.Name, "path", ds.Path, "alt_path", ds.AltPath)
		return ds.AltPath
	}
	return ds.Path
}

func (l *Loader) read(ds domain.Dataset, path string) (*domain.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return readCSV(f, ds, l.rule)
	case ".h5", ".hdf5", ".hdf":
		return readHDF5(path, ds, l.rule)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// synthesize fills timestamps for sources without a usable time index.
func synthesize(ds domain.Dataset, n int) []time.Time {
	start := ds.Start
	if start.IsZero() {
		start = time.Unix(0, 0).UTC()
	}
	interval := ds.Interval
	if interval <= 0 {
		interval = domain.DefaultInterval
	}
	return domain.SyntheticTimestamps(start, interval, n)
}
