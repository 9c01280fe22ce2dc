package domain

import "time"

// DefaultInterval is the sampling interval of both reference datasets.
const DefaultInterval = 5 * time.Minute

// Dataset names a dataset and where to find it on disk.
type Dataset struct {
	Name string
	// Path is the primary file; its extension selects the format.
	Path string
	// AltPath is an alternate-format copy of the same data, read when Path
	// is missing.
	AltPath string
	// Start and Interval synthesize timestamps for files without a time index.
	Start    time.Time
	Interval time.Duration
	// LocationsPath optionally points at a sensor_id/latitude/longitude CSV.
	LocationsPath string
}

// DefaultDatasets returns the two reference datasets at their conventional paths.
func DefaultDatasets() []Dataset {
	return []Dataset{
		{
			Name:          "METR-LA",
			Path:          "data/metr_la/metr-la.csv",
			AltPath:       "data/metr_la/metr-la.h5",
			Start:         time.Date(2012, time.March, 1, 0, 0, 0, 0, time.UTC),
			Interval:      DefaultInterval,
			LocationsPath: "data/metr_la/graph_sensor_locations.csv",
		},
		{
			Name:          "PEMS-BAY",
			Path:          "data/pems_bay/pems-bay.h5",
			Start:         time.Date(2017, time.January, 1, 0, 0, 0, 0, time.UTC),
			Interval:      DefaultInterval,
			LocationsPath: "data/pems_bay/graph_sensor_locations_bay.csv",
		},
	}
}
