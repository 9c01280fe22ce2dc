package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"

	"github.com/couchcryptid/traffic-congestion/internal/domain"
)

// LocationLoader reads a sensor location file.
type LocationLoader func(path string) (map[string]domain.SensorLocation, error)

// SummaryAnalyzer implements Analyzer: it summarizes the table under a rule,
// attaches sensor coordinates and optionally resolves the top sensors to
// place names.
type SummaryAnalyzer struct {
	rule      domain.Rule
	topN      int
	bins      int
	locations LocationLoader
	geocoder  domain.Geocoder
	logger    *slog.Logger
}

// NewAnalyzer creates a SummaryAnalyzer. Pass a nil locations loader to skip
// sensor coordinates and a nil geocoder to disable geocoding enrichment.
func NewAnalyzer(rule domain.Rule, topN, bins int, locations LocationLoader, geocoder domain.Geocoder, logger *slog.Logger) *SummaryAnalyzer {
	return &SummaryAnalyzer{
		rule:      rule,
		topN:      topN,
		bins:      bins,
		locations: locations,
		geocoder:  geocoder,
		logger:    logger,
	}
}

func (a *SummaryAnalyzer) Analyze(ctx context.Context, ds domain.Dataset, tbl *domain.Table) (domain.DatasetSummary, error) {
	if err := ctx.Err(); err != nil {
		return domain.DatasetSummary{}, err
	}

	s := domain.Summarize(tbl, a.rule, a.topN, a.bins)

	if a.locations != nil && ds.LocationsPath != "" {
		locs, err := a.locations(ds.LocationsPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			a.logger.Debug("no sensor locations", "dataset", ds.Name, "path", ds.LocationsPath)
		case err != nil:
			a.logger.Warn("sensor locations unreadable", "dataset", ds.Name, "path", ds.LocationsPath, "error", err)
		default:
			domain.AttachLocations(&s, locs)
		}
	}

	domain.EnrichTopSensors(ctx, &s, a.geocoder, a.logger)
	return s, nil
}
