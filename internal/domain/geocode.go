package domain

import (
	"context"
	"log/slog"
)

// AttachLocations sets the known coordinates on every sensor summary of s.
// Sensors absent from locations are left without a location.
func AttachLocations(s *DatasetSummary, locations map[string]SensorLocation) {
	if len(locations) == 0 {
		return
	}
	s.eachSensor(func(sensor *SensorSummary) {
		if loc, ok := locations[sensor.SensorID]; ok {
			sensor.Location = &loc
		}
	})
}

// EnrichTopSensors reverse-geocodes the located top sensors of s. A nil
// geocoder or a failed lookup leaves the sensor's coordinates untouched.
func EnrichTopSensors(ctx context.Context, s *DatasetSummary, geocoder Geocoder, logger *slog.Logger) {
	if geocoder == nil {
		return
	}

	resolved := make(map[string]SensorLocation)
	for _, sensor := range s.TopSensors {
		loc := sensor.Location
		if loc == nil || loc.PlaceName != "" {
			continue
		}
		result, err := geocoder.ReverseGeocode(ctx, loc.Lat, loc.Lon)
		if err != nil {
			logger.Warn("reverse geocoding failed",
				"dataset", s.Dataset,
				"sensor_id", sensor.SensorID,
				"lat", loc.Lat,
				"lon", loc.Lon,
				"error", err,
			)
			continue
		}
		if result.FormattedAddress == "" {
			continue
		}
		enriched := *loc
		enriched.PlaceName = result.PlaceName
		enriched.FormattedAddress = result.FormattedAddress
		resolved[sensor.SensorID] = enriched
	}

	AttachLocations(s, resolved)
}

// eachSensor visits every sensor summary held by s.
func (s *DatasetSummary) eachSensor(fn func(*SensorSummary)) {
	for i := range s.Sensors {
		fn(&s.Sensors[i])
	}
	for i := range s.TopSensors {
		fn(&s.TopSensors[i])
	}
	if s.MaxSensor != nil {
		fn(s.MaxSensor)
	}
}
