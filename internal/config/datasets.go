package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/traffic-congestion/internal/domain"
)

// datasetsFile is the YAML layout of DATASETS_FILE.
//
//	datasets:
//	  - name: METR-LA
//	    path: data/metr_la/metr-la.csv
//	    alt_path: data/metr_la/metr-la.h5
//	    start: 2012-03-01
//	    interval: 5m
//	    locations_path: data/metr_la/graph_sensor_locations.csv
type datasetsFile struct {
	Datasets []datasetEntry `yaml:"datasets"`
}

type datasetEntry struct {
	Name          string `yaml:"name"`
	Path          string `yaml:"path"`
	AltPath       string `yaml:"alt_path"`
	Start         string `yaml:"start"`
	Interval      string `yaml:"interval"`
	LocationsPath string `yaml:"locations_path"`
}

// LoadDatasets reads a dataset list from a YAML file.
func LoadDatasets(path string) ([]domain.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read DATASETS_FILE: %w", err)
	}
	return ParseDatasets(data)
}

// ParseDatasets decodes and validates a YAML dataset list.
func ParseDatasets(data []byte) ([]domain.Dataset, error) {
	var f datasetsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse DATASETS_FILE: %w", err)
	}
	if len(f.Datasets) == 0 {
		return nil, errors.New("DATASETS_FILE lists no datasets")
	}

	seen := make(map[string]bool, len(f.Datasets))
	out := make([]domain.Dataset, 0, len(f.Datasets))
	for i, e := range f.Datasets {
		if e.Name == "" {
			return nil, fmt.Errorf("DATASETS_FILE entry %d: name is required", i)
		}
		if e.Path == "" {
			return nil, fmt.Errorf("DATASETS_FILE entry %s: path is required", e.Name)
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("DATASETS_FILE entry %s: duplicate name", e.Name)
		}
		seen[e.Name] = true

		ds := domain.Dataset{
			Name:          e.Name,
			Path:          e.Path,
			AltPath:       e.AltPath,
			Interval:      domain.DefaultInterval,
			LocationsPath: e.LocationsPath,
		}
		if e.Start != "" {
			start, err := time.Parse(time.DateOnly, e.Start)
			if err != nil {
				return nil, fmt.Errorf("DATASETS_FILE entry %s: invalid start %q", e.Name, e.Start)
			}
			ds.Start = start
		}
		if e.Interval != "" {
			d, err := time.ParseDuration(e.Interval)
			if err != nil || d <= 0 {
				return nil, fmt.Errorf("DATASETS_FILE entry %s: invalid interval %q", e.Name, e.Interval)
			}
			ds.Interval = d
		}
		out = append(out, ds)
	}
	return out, nil
}
