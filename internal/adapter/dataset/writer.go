package dataset

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/hdf5"

	"github.com/couchcryptid/traffic-congestion/internal/domain"
)

// WriteCSV writes tbl as a wide CSV with a leading timestamp column. Missing
// speeds are written as empty cells.
func WriteCSV(w io.Writer, tbl *domain.Table) error {
	records := make([][]string, 0, tbl.Rows()+1)
	records = append(records, append([]string{"timestamp"}, tbl.Sensors...))
	for i, ts := range tbl.Timestamps {
		row := make([]string, 0, len(tbl.Sensors)+1)
		row = append(row, ts.UTC().Format(time.DateTime))
		for j := range tbl.Sensors {
			row = append(row, formatSpeed(tbl.At(i, j)))
		}
		records = append(records, row)
	}

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return fmt.Errorf("write csv: %w", df.Err)
	}
	if err := df.WriteCSV(w); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func formatSpeed(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteHDF5 writes tbl to path in the pandas fixed-format layout readHDF5
// understands, under the "speed" group. Sensor IDs must be integers.
func WriteHDF5(path string, tbl *domain.Table) error {
	ids := make([]int64, len(tbl.Sensors))
	for j, s := range tbl.Sensors {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("write hdf5: sensor id %q is not an integer", s)
		}
		ids[j] = id
	}
	index := make([]int64, tbl.Rows())
	for i, ts := range tbl.Timestamps {
		index[i] = ts.UnixNano()
	}

	f, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		return fmt.Errorf("create hdf5: %w", err)
	}
	defer f.Close()

	g, err := f.CreateGroup(hdf5Groups[0])
	if err != nil {
		return fmt.Errorf("create hdf5 group: %w", err)
	}
	defer g.Close()

	speeds := tbl.Speeds
	if err := writeArray(g, "block0_values", []uint{uint(tbl.Rows()), uint(len(tbl.Sensors))}, &speeds, float64(0)); err != nil {
		return err
	}
	if err := writeArray(g, "axis0", []uint{uint(len(ids))}, &ids, int64(0)); err != nil {
		return err
	}
	return writeArray(g, "axis1", []uint{uint(len(index))}, &index, int64(0))
}

// writeArray stores data with the given shape; sample fixes the element type.
func writeArray(g *hdf5.Group, name string, dims []uint, data, sample any) error {
	space, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		return fmt.Errorf("hdf5 %s dataspace: %w", name, err)
	}
	defer space.Close()

	dtype, err := hdf5.NewDatatypeFromValue(sample)
	if err != nil {
		return fmt.Errorf("hdf5 %s datatype: %w", name, err)
	}
	d, err := g.CreateDataset(name, dtype, space)
	if err != nil {
		return fmt.Errorf("create hdf5 %s: %w", name, err)
	}
	defer d.Close()

	if err := d.Write(data); err != nil {
		return fmt.Errorf("write hdf5 %s: %w", name, err)
	}
	return nil
}
