// Package domain models historical traffic speed datasets and the congestion
// statistics derived from them.
//
// # Datasets
//
// Two public benchmark datasets are analyzed:
//
//	METR-LA   207 loop detectors on Los Angeles County highways,
//	          2012-03-01 to 2012-06-27, one reading every 5 minutes.
//	PEMS-BAY  325 sensors in the San Francisco Bay Area (Caltrans PeMS),
//	          2017-01-01 to 2017-05-31, one reading every 5 minutes.
//
// Both are distributed as wide tables: one row per timestamp, one column per
// sensor, cells holding average speed in miles per hour. See [Table].
//
// # Missing readings
//
// A missing reading is stored as NaN. Loaders turn empty cells, non-numeric
// cells, negative speeds and speeds above the configured maximum into NaN via
// [Rule.Sanitize]. METR-LA encodes sensor outages as 0 mph; by default a zero
// is kept as a valid (congested) reading so figures match the published
// reference output. Set [Rule.ZeroIsMissing] to exclude them.
//
// A missing reading has no congestion flag: it is excluded from both the
// numerator and the denominator of every rate.
//
// # Congestion rule
//
// A valid reading is congested when its speed is strictly below the threshold
// (20 mph by default). Rates are always fractions in [0,1]:
//
//	sensor rate   congested readings of the sensor / valid readings of the sensor
//	hourly rate   congested readings in hour h / valid readings in hour h, h in 0..23
//	overall rate  congested readings / valid readings
//
// Hour buckets use the hour component of the timestamp as recorded in the
// dataset (local time, no zone conversion). Sensors without a single valid
// reading are left out of the per-sensor sequence instead of reporting 0%.
package domain
