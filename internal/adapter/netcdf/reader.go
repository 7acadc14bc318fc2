// Package netcdf reads and writes WRF-shaped NetCDF rainfall grids.
package netcdf

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/couchcryptid/fcst-grid-ingest/internal/domain"
)

// Axes names the coordinate variables of a file.
type Axes struct {
	Time string
	Lat  string
	Lon  string
}

// WRFAxes are the coordinate variable names written by WRF post-processing.
var WRFAxes = Axes{Time: "XTIME", Lat: "XLAT", Lon: "XLONG"}

// Reader implements ingest.GridReader for NetCDF files.
type Reader struct {
	axes   Axes
	logger *slog.Logger
}

// NewReader creates a Reader using the WRF axis names.
func NewReader(logger *slog.Logger) *Reader {
	return &Reader{axes: WRFAxes, logger: logger}
}

// ReadGrid loads variable from the file at path together with its axes. It
// returns the raw time units string alongside the grid. The file is closed
// before ReadGrid returns.
func (r *Reader) ReadGrid(path, variable string) (domain.Grid, string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Grid{}, "", &domain.MissingInputError{Path: path}
		}
		return domain.Grid{}, "", fmt.Errorf("stat %s: %w", path, err)
	}

	nc, err := netcdf.Open(path)
	if err != nil {
		return domain.Grid{}, "", fmt.Errorf("open netcdf %s: %w", path, err)
	}
	defer nc.Close()

	timeVar, err := nc.GetVariable(r.axes.Time)
	if err != nil {
		return domain.Grid{}, "", malformed(path, "read %s: %v", r.axes.Time, err)
	}
	units, ok := stringAttr(timeVar.Attributes, "units")
	if !ok {
		return domain.Grid{}, "", malformed(path, "%s has no units attribute", r.axes.Time)
	}
	offsets, err := toVector(timeVar.Values)
	if err != nil {
		return domain.Grid{}, "", malformed(path, "%s: %v", r.axes.Time, err)
	}
	times, err := domain.DecodeTimes(units, offsets)
	if err != nil {
		return domain.Grid{}, "", malformed(path, "%s: %v", r.axes.Time, err)
	}

	lats, err := r.axis(nc, r.axes.Lat, latAxis)
	if err != nil {
		return domain.Grid{}, "", malformed(path, "%s: %v", r.axes.Lat, err)
	}
	lons, err := r.axis(nc, r.axes.Lon, lonAxis)
	if err != nil {
		return domain.Grid{}, "", malformed(path, "%s: %v", r.axes.Lon, err)
	}

	dataVar, err := nc.GetVariable(variable)
	if err != nil {
		return domain.Grid{}, "", malformed(path, "read %s: %v", variable, err)
	}
	values, err := toCube(dataVar.Values)
	if err != nil {
		return domain.Grid{}, "", malformed(path, "%s: %v", variable, err)
	}

	grid, err := domain.NewGrid(times, lats, lons, values)
	if err != nil {
		var mg *domain.MalformedGridError
		if errors.As(err, &mg) {
			mg.Path = path
		}
		return domain.Grid{}, "", err
	}

	r.logger.Debug("grid loaded",
		"path", path,
		"variable", variable,
		"steps", len(times),
		"height", len(lats),
		"width", len(lons),
		"lat_min", lats[0], "lat_max", lats[len(lats)-1],
		"lon_min", lons[0], "lon_max", lons[len(lons)-1],
	)
	return grid, units, nil
}

type axisKind int

const (
	latAxis axisKind = iota
	lonAxis
)

// axis extracts a 1-D coordinate axis. WRF stores XLAT and XLONG as
// [Time, south_north, west_east]; latitudes are read down the first column and
// longitudes along the first row of the first time slice.
func (r *Reader) axis(nc api.Group, name string, kind axisKind) ([]float64, error) {
	v, err := nc.GetVariable(name)
	if err != nil {
		return nil, err
	}
	var plane [][]float64
	switch vals := v.Values.(type) {
	case [][][]float32, [][][]float64:
		cube, err := toCube(vals)
		if err != nil {
			return nil, err
		}
		if len(cube) == 0 {
			return nil, errors.New("empty coordinate variable")
		}
		plane = cube[0]
	case [][]float32, [][]float64:
		plane, err = toMatrix(vals)
		if err != nil {
			return nil, err
		}
	default:
		vec, err := toVector(vals)
		if err != nil {
			return nil, err
		}
		if len(vec) == 0 {
			return nil, errors.New("empty coordinate variable")
		}
		return vec, nil
	}

	if len(plane) == 0 || len(plane[0]) == 0 {
		return nil, errors.New("empty coordinate variable")
	}
	if kind == lonAxis {
		return plane[0], nil
	}
	out := make([]float64, len(plane))
	for y := range plane {
		out[y] = plane[y][0]
	}
	return out, nil
}

func stringAttr(attrs api.AttributeMap, key string) (string, bool) {
	if attrs == nil {
		return "", false
	}
	v, ok := attrs.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func malformed(path, format string, args ...any) error {
	return &domain.MalformedGridError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
