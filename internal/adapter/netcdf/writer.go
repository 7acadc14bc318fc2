package netcdf

import (
	"errors"
	"fmt"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"

	"github.com/couchcryptid/fcst-grid-ingest/internal/domain"
)

var wrfDims = []string{"Time", "south_north", "west_east"}

// WriteGrid writes g to a classic-format file at path using the WRF layout:
// an XTIME axis in minutes since origin, XLAT and XLONG as 3-D coordinate
// arrays, and the field itself under variable. Values are stored as float32.
func WriteGrid(path, variable string, g domain.Grid, origin time.Time) error {
	if len(g.Times) == 0 {
		return errors.New("write grid: no time steps")
	}

	offsets := make([]float32, len(g.Times))
	for i, t := range g.Times {
		m := t.Sub(origin).Minutes()
		if m < 0 {
			return fmt.Errorf("write grid: time %s before origin %s", t, origin)
		}
		offsets[i] = float32(m)
	}

	lat := make([][][]float64, len(g.Times))
	lon := make([][][]float64, len(g.Times))
	for t := range g.Times {
		lat[t] = make([][]float64, len(g.Lats))
		lon[t] = make([][]float64, len(g.Lats))
		for y, la := range g.Lats {
			lat[t][y] = make([]float64, len(g.Lons))
			lon[t][y] = make([]float64, len(g.Lons))
			for x, lo := range g.Lons {
				lat[t][y][x] = la
				lon[t][y][x] = lo
			}
		}
	}

	w, err := cdf.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	timeAttrs, err := attrs("units", "minutes since "+origin.UTC().Format("2006-01-02T15:04:05"))
	if err != nil {
		return closeAfter(w, err)
	}
	if err := w.AddVar("XTIME", api.Variable{
		Values:     offsets,
		Dimensions: []string{"Time"},
		Attributes: timeAttrs,
	}); err != nil {
		return closeAfter(w, fmt.Errorf("add XTIME: %w", err))
	}

	for _, v := range []struct {
		name  string
		units string
		data  [][][]float64
	}{
		{"XLAT", "degree_north", lat},
		{"XLONG", "degree_east", lon},
		{variable, "mm", g.Values},
	} {
		a, err := attrs("units", v.units)
		if err != nil {
			return closeAfter(w, err)
		}
		if err := w.AddVar(v.name, api.Variable{
			Values:     toFloat32Cube(v.data),
			Dimensions: wrfDims,
			Attributes: a,
		}); err != nil {
			return closeAfter(w, fmt.Errorf("add %s: %w", v.name, err))
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func attrs(key string, value any) (*util.OrderedMap, error) {
	m, err := util.NewOrderedMap([]string{key}, map[string]any{key: value})
	if err != nil {
		return nil, fmt.Errorf("attribute %s: %w", key, err)
	}
	return m, nil
}

func closeAfter(w *cdf.CDFWriter, err error) error {
	return errors.Join(err, w.Close())
}
