package dataset

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"gonum.org/v1/hdf5"

	"github.com/couchcryptid/traffic-congestion/internal/domain"
)

// hdf5Groups are the pandas HDFStore keys tried in order.
var hdf5Groups = []string{"speed", "df"}

// readHDF5 reads a pandas fixed-format frame: block0_values holds the
// rows x sensors speeds, axis0 the sensor IDs and axis1 the time index in
// nanoseconds since the epoch. Missing or unreadable axes fall back to
// column positions and synthesized timestamps.
func readHDF5(path string, ds domain.Dataset, rule domain.Rule) (*domain.Table, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("open hdf5: %w", err)
	}
	defer f.Close()

	var g *hdf5.Group
	for _, name := range hdf5Groups {
		if f.LinkExists(name) {
			g, err = f.OpenGroup(name)
			if err != nil {
				return nil, fmt.Errorf("open hdf5 group %s: %w", name, err)
			}
			break
		}
	}
	if g == nil {
		return nil, fmt.Errorf("hdf5: none of the groups %v found", hdf5Groups)
	}
	defer g.Close()

	speeds, dims, err := readFloat64s(g, "block0_values")
	if err != nil {
		return nil, err
	}
	if len(dims) != 2 {
		return nil, fmt.Errorf("hdf5 block0_values: want 2 dimensions, got %d", len(dims))
	}
	rows, cols := int(dims[0]), int(dims[1])
	for i, v := range speeds {
		speeds[i] = rule.Sanitize(v)
	}

	sensors := make([]string, cols)
	if ids, err := readInt64s(g, "axis0"); err == nil && len(ids) == cols {
		for j, id := range ids {
			sensors[j] = strconv.FormatInt(id, 10)
		}
	} else {
		for j := range sensors {
			sensors[j] = strconv.Itoa(j)
		}
	}

	var timestamps []time.Time
	if ns, err := readInt64s(g, "axis1"); err == nil && len(ns) == rows {
		timestamps = make([]time.Time, rows)
		for i, v := range ns {
			timestamps[i] = time.Unix(0, v).UTC()
		}
	} else {
		timestamps = synthesize(ds, rows)
	}

	return domain.NewTable(ds.Name, timestamps, sensors, speeds)
}

func readFloat64s(g *hdf5.Group, name string) ([]float64, []uint, error) {
	d, dims, err := openDataset(g, name)
	if err != nil {
		return nil, nil, err
	}
	defer d.Close()

	out := make([]float64, product(dims))
	if err := d.Read(&out); err != nil {
		return nil, nil, fmt.Errorf("read hdf5 %s: %w", name, err)
	}
	return out, dims, nil
}

func readInt64s(g *hdf5.Group, name string) ([]int64, error) {
	d, dims, err := openDataset(g, name)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	out := make([]int64, product(dims))
	if err := d.Read(&out); err != nil {
		return nil, fmt.Errorf("read hdf5 %s: %w", name, err)
	}
	return out, nil
}

func openDataset(g *hdf5.Group, name string) (*hdf5.Dataset, []uint, error) {
	if !g.LinkExists(name) {
		return nil, nil, errors.New("hdf5: missing dataset " + name)
	}
	d, err := g.OpenDataset(name)
	if err != nil {
		return nil, nil, fmt.Errorf("open hdf5 %s: %w", name, err)
	}
	space := d.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		d.Close()
		return nil, nil, fmt.Errorf("hdf5 %s dims: %w", name, err)
	}
	return d, dims, nil
}

func product(dims []uint) int {
	n := 1
	for _, d := range dims {
		n *= int(d)
	}
	return n
}
