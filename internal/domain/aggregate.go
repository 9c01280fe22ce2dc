package domain

import (
	"iter"
	"sort"
)

// HoursPerDay is the number of hour-of-day buckets.
const HoursPerDay = 24

// SensorSummary is the congestion rate of one sensor over its valid readings.
type SensorSummary struct {
	SensorID  string          `json:"sensor_id"`
	Readings  int             `json:"readings"`
	Congested int             `json:"congested"`
	Rate      float64         `json:"rate"`
	Location  *SensorLocation `json:"location,omitempty"`
}

// HourlySummary is the congestion rate of all readings whose timestamp falls
// in one hour of the day.
type HourlySummary struct {
	Hour      int     `json:"hour"`
	Readings  int     `json:"readings"`
	Congested int     `json:"congested"`
	Rate      float64 `json:"rate"`
}

type counts struct {
	valid     int
	congested int
}

func (c *counts) add(flag CongestionFlag) {
	c.valid++
	if flag == Congested {
		c.congested++
	}
}

func (c counts) rate() float64 {
	if c.valid == 0 {
		return 0
	}
	return float64(c.congested) / float64(c.valid)
}

// Tally accumulates congestion counts by sensor, by hour of day and overall
// in a single pass. Every valid reading lands in exactly one sensor bucket and
// one hour bucket; missing readings land in none.
type Tally struct {
	classify  func(float64) CongestionFlag
	sensorIdx map[string]int
	sensors   []string
	perSensor []counts
	perHour   [HoursPerDay]counts
	total     counts
	missing   int
}

// NewTally returns an empty Tally that flags readings with classify.
func NewTally(classify func(speed float64) CongestionFlag) *Tally {
	return &Tally{
		classify:  classify,
		sensorIdx: make(map[string]int),
	}
}

// Add counts one reading. Sensors are registered in first-seen order even when
// the reading is missing, so SensorCount reflects every column of the input.
func (t *Tally) Add(r Reading) {
	j := t.sensorIndex(r.SensorID)
	flag := t.classify(r.Speed)
	if flag == NoFlag {
		t.missing++
		return
	}
	t.perSensor[j].add(flag)
	t.perHour[r.Timestamp.Hour()].add(flag)
	t.total.add(flag)
}

func (t *Tally) sensorIndex(id string) int {
	if j, ok := t.sensorIdx[id]; ok {
		return j
	}
	j := len(t.sensors)
	t.sensorIdx[id] = j
	t.sensors = append(t.sensors, id)
	t.perSensor = append(t.perSensor, counts{})
	return j
}

// AddTable counts every cell of tbl. It is equivalent to calling Add for each
// element of tbl.Readings but avoids the per-reading sensor lookup.
func (t *Tally) AddTable(tbl *Table) {
	cols := make([]int, len(tbl.Sensors))
	for j, id := range tbl.Sensors {
		cols[j] = t.sensorIndex(id)
	}
	for i, ts := range tbl.Timestamps {
		hour := &t.perHour[ts.Hour()]
		row := tbl.Speeds[i*len(cols) : (i+1)*len(cols)]
		for j, speed := range row {
			flag := t.classify(speed)
			if flag == NoFlag {
				t.missing++
				continue
			}
			t.perSensor[cols[j]].add(flag)
			hour.add(flag)
			t.total.add(flag)
		}
	}
}

// Valid returns the number of non-missing readings counted.
func (t *Tally) Valid() int { return t.total.valid }

// Congested returns the number of congested readings counted.
func (t *Tally) Congested() int { return t.total.congested }

// Missing returns the number of readings without a flag.
func (t *Tally) Missing() int { return t.missing }

// SensorCount returns the number of distinct sensors seen, including those
// with no valid reading.
func (t *Tally) SensorCount() int { return len(t.sensors) }

// Overall returns the congested fraction of all valid readings, 0 when there
// are none.
func (t *Tally) Overall() float64 { return t.total.rate() }

// Sensors returns one summary per sensor with at least one valid reading,
// ordered by descending rate. Equal rates keep first-seen order.
func (t *Tally) Sensors() []SensorSummary {
	out := make([]SensorSummary, 0, len(t.sensors))
	for j, id := range t.sensors {
		c := t.perSensor[j]
		if c.valid == 0 {
			continue
		}
		out = append(out, SensorSummary{
			SensorID:  id,
			Readings:  c.valid,
			Congested: c.congested,
			Rate:      c.rate(),
		})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Rate > out[b].Rate })
	return out
}

// Hours returns exactly 24 summaries indexed by hour of day. Hours without
// valid readings report a rate of 0.
func (t *Tally) Hours() []HourlySummary {
	out := make([]HourlySummary, HoursPerDay)
	for h, c := range t.perHour {
		out[h] = HourlySummary{
			Hour:      h,
			Readings:  c.valid,
			Congested: c.congested,
			Rate:      c.rate(),
		}
	}
	return out
}

func tallyReadings(readings iter.Seq[Reading], threshold float64) *Tally {
	t := NewTally(func(speed float64) CongestionFlag { return Classify(speed, threshold) })
	for r := range readings {
		t.Add(r)
	}
	return t
}

// PerSensorRate returns the congestion rate of every sensor with at least one
// valid reading, most congested first.
func PerSensorRate(readings iter.Seq[Reading], threshold float64) []SensorSummary {
	return tallyReadings(readings, threshold).Sensors()
}

// PerHourRate returns the congestion rate for each hour of the day, 0 through 23.
func PerHourRate(readings iter.Seq[Reading], threshold float64) []HourlySummary {
	return tallyReadings(readings, threshold).Hours()
}

// OverallRate returns the congested fraction of all valid readings; 0 for an
// empty or all-missing input.
func OverallRate(readings iter.Seq[Reading], threshold float64) float64 {
	return tallyReadings(readings, threshold).Overall()
}

// MostCongested returns the first sensor holding the maximum rate, and false
// when sensors is empty.
func MostCongested(sensors []SensorSummary) (SensorSummary, bool) {
	if len(sensors) == 0 {
		return SensorSummary{}, false
	}
	best := sensors[0]
	for _, s := range sensors[1:] {
		if s.Rate > best.Rate {
			best = s
		}
	}
	return best, true
}
