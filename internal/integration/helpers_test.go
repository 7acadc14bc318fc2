//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/fcst-grid-ingest/internal/adapter/netcdf"
	"github.com/couchcryptid/fcst-grid-ingest/internal/config"
	"github.com/couchcryptid/fcst-grid-ingest/internal/domain"
	"github.com/couchcryptid/fcst-grid-ingest/internal/ingest"
	"github.com/couchcryptid/fcst-grid-ingest/internal/observability"
)

// pipelineStore is a store that can also be read back for assertions.
type pipelineStore interface {
	ingest.Store
	GetRun(ctx context.Context, seriesID string) (domain.Run, error)
	FetchPoints(ctx context.Context, seriesID string) ([]domain.SeriesPoint, error)
}

var (
	gridOrigin = time.Date(2019, time.March, 23, 18, 0, 0, 0, time.UTC)
	gridMTime  = time.Date(2019, time.March, 24, 3, 45, 10, 0, time.UTC)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeJob writes a 3-step 2x2 RAINNC file for sub-model A and returns the
// job that ingests it.
func writeJob(t *testing.T) *config.Job {
	t.Helper()
	job, err := config.ParseJob([]byte(`
wrf_dir: ` + t.TempDir() + `
model: WRF
version: v4
sub_models: [A]
dates: ["2019-03-23"]
sim_tag: evening_18hrs
variable: Precipitation
unit: mm
unit_type: Accumulative
`))
	require.NoError(t, err)

	times := []time.Time{gridOrigin, gridOrigin.Add(time.Hour), gridOrigin.Add(2 * time.Hour)}
	values := make([][][]float64, len(times))
	for i := range times {
		step := float64(i) * 0.5
		values[i] = [][]float64{{step, 2 * step}, {3 * step, 4 * step}}
	}
	grid, err := domain.NewGrid(times, []float64{6.5, 6.75}, []float64{79.5, 79.75}, values)
	require.NoError(t, err)

	path := config.DefaultInput.Path(job.WRFDir, "A", "2019-03-23")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, netcdf.WriteGrid(path, config.DefaultInput.Variable, grid, gridOrigin))
	require.NoError(t, os.Chtimes(path, gridMTime, gridMTime))
	return job
}

func newRunner(store ingest.Store, notifier ingest.CompletionNotifier) *ingest.Runner {
	metrics := observability.NewMetricsForTesting()
	logger := discardLogger()
	cache := ingest.NewStationCache(store, 1000, metrics)
	in := ingest.NewIngestor(cache, store, store, 4, logger, metrics)
	return ingest.NewRunner(netcdf.NewReader(logger), store, cache, in, notifier, logger, metrics)
}

// exercisePipeline ingests the same job twice against store and checks the
// stored series and that the second pass creates nothing.
func exercisePipeline(ctx context.Context, t *testing.T, store pipelineStore) {
	t.Helper()
	job := writeJob(t)

	first, err := newRunner(store, nil).Run(ctx, job)
	require.NoError(t, err)
	require.Len(t, first.Files, 1)
	require.Equal(t, ingest.FileIngested, first.Files[0].Status, "file error: %v", first.Files[0].Err)
	totals := first.Totals()
	assert.Equal(t, 4, totals.Succeeded)
	assert.Equal(t, 8, totals.Points)
	assert.Equal(t, 4, totals.StationsCreated)
	assert.Equal(t, 4, totals.RunsCreated)

	// A fresh runner has a cold cache, so stations come from the registry.
	second, err := newRunner(store, nil).Run(ctx, job)
	require.NoError(t, err)
	totals = second.Totals()
	assert.Equal(t, 8, totals.Points)
	assert.Zero(t, totals.StationsCreated)
	assert.Zero(t, totals.RunsCreated)

	seriesID, err := domain.SeriesID(job.Template("A").Metadata(6.75, 79.75))
	require.NoError(t, err)

	fgt := time.Date(2019, time.March, 24, 9, 15, 10, 0, time.UTC)
	run, err := store.GetRun(ctx, seriesID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2019, time.March, 24, 0, 30, 0, 0, time.UTC), run.Start)
	assert.Equal(t, time.Date(2019, time.March, 24, 1, 30, 0, 0, time.UTC), run.End)
	assert.Equal(t, fgt, run.FGT)

	points, err := store.FetchPoints(ctx, seriesID)
	require.NoError(t, err)
	require.Len(t, points, 2)
	for _, p := range points {
		assert.InDelta(t, 2.0, p.Value, 1e-9)
		assert.Equal(t, fgt, p.FGT)
	}
}
