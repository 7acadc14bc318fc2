package netcdf

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/fcst-grid-ingest/internal/domain"
)

var origin = time.Date(2019, 4, 2, 18, 0, 0, 0, time.UTC)

func testReader() *Reader {
	return NewReader(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func fixtureGrid(t *testing.T) domain.Grid {
	t.Helper()
	times := []time.Time{origin, origin.Add(15 * time.Minute), origin.Add(30 * time.Minute)}
	values := [][][]float64{
		{{0, 0, 0}, {0, 0, 0}},
		{{1, 2, 3}, {4, 5, 6}},
		{{1.5, 4, 3}, {8, 5.25, 6}},
	}
	g, err := domain.NewGrid(times, []float64{6.5, 6.75}, []float64{79.5, 79.75, 80}, values)
	require.NoError(t, err)
	return g
}

func TestReadGrid_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d03_RAINNC_2019-04-02_A.nc")
	want := fixtureGrid(t)
	require.NoError(t, WriteGrid(path, "RAINNC", want, origin))

	got, units, err := testReader().ReadGrid(path, "RAINNC")
	require.NoError(t, err)

	assert.Equal(t, "minutes since 2019-04-02T18:00:00", units)
	assert.Equal(t, want.Times, got.Times)
	assert.Equal(t, want.Lats, got.Lats)
	assert.Equal(t, want.Lons, got.Lons)
	assert.Equal(t, []float64{0, 3, 3}, got.Series(0, 2))
	assert.Equal(t, []float64{0, 5, 5.25}, got.Series(1, 1))
}

func TestReadGrid_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.nc")

	_, _, err := testReader().ReadGrid(path, "RAINNC")
	var missing *domain.MissingInputError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, path, missing.Path)
}

func TestReadGrid_MissingVariable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.nc")
	require.NoError(t, WriteGrid(path, "RAINNC", fixtureGrid(t), origin))

	_, _, err := testReader().ReadGrid(path, "RAINC")
	var malformed *domain.MalformedGridError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, path, malformed.Path)
}

func TestReadGrid_NotNetCDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.nc")
	require.NoError(t, os.WriteFile(path, []byte("not a netcdf file"), 0o600))

	_, _, err := testReader().ReadGrid(path, "RAINNC")
	require.Error(t, err)
	var missing *domain.MissingInputError
	assert.NotErrorAs(t, err, &missing)
}

func TestWriteGrid_RejectsEmpty(t *testing.T) {
	g, err := domain.NewGrid(nil, []float64{6}, []float64{79}, nil)
	require.NoError(t, err)
	assert.Error(t, WriteGrid(filepath.Join(t.TempDir(), "x.nc"), "RAINNC", g, origin))
}
