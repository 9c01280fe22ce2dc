package dataset

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/couchcryptid/traffic-congestion/internal/domain"
)

// LoadLocations reads a sensor location CSV. Two layouts are accepted: a
// headed file with sensor_id, latitude and longitude columns (any order,
// extra columns ignored), and a headerless sensor_id,latitude,longitude file.
func LoadLocations(path string) (map[string]domain.SensorLocation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	df := dataframe.ReadCSV(f,
		dataframe.HasHeader(false),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("read locations %s: %w", path, df.Err)
	}

	// Records with HasHeader(false) starts with the generated X0..Xn names.
	rows := df.Records()[1:]
	if len(rows) == 0 {
		return map[string]domain.SensorLocation{}, nil
	}

	idCol, latCol, lonCol := 0, 1, 2
	if _, err := strconv.ParseFloat(strings.TrimSpace(rows[0][len(rows[0])-1]), 64); err != nil {
		idCol, latCol, lonCol = -1, -1, -1
		for j, name := range rows[0] {
			switch strings.ToLower(strings.TrimSpace(name)) {
			case "sensor_id", "sensor", "id":
				idCol = j
			case "latitude", "lat":
				latCol = j
			case "longitude", "lon", "lng":
				lonCol = j
			}
		}
		if idCol < 0 || latCol < 0 || lonCol < 0 {
			return nil, fmt.Errorf("read locations %s: header %v lacks sensor_id, latitude or longitude", path, rows[0])
		}
		rows = rows[1:]
	} else if len(rows[0]) < 3 {
		return nil, fmt.Errorf("read locations %s: want 3 columns, got %d", path, len(rows[0]))
	}

	out := make(map[string]domain.SensorLocation, len(rows))
	for i, row := range rows {
		lat, err := strconv.ParseFloat(strings.TrimSpace(row[latCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("read locations %s: row %d latitude: %w", path, i+1, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(row[lonCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("read locations %s: row %d longitude: %w", path, i+1, err)
		}
		out[normalizeID(row[idCol])] = domain.SensorLocation{Lat: lat, Lon: lon}
	}
	return out, nil
}

// normalizeID strips whitespace and a float suffix so "773869.0" matches
// the "773869" column header of the speed table.
func normalizeID(s string) string {
	s = strings.TrimSpace(s)
	if head, ok := strings.CutSuffix(s, ".0"); ok {
		return head
	}
	return s
}
