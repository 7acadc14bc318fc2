package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/fcst-grid-ingest/internal/domain"
	"github.com/couchcryptid/fcst-grid-ingest/internal/observability"
)

// Summary counts the outcome of ingesting one grid.
type Summary struct {
	Cells           int `json:"cells"`
	Succeeded       int `json:"succeeded"`
	Failed          int `json:"failed"`
	Points          int `json:"points"`
	StationsCreated int `json:"stations_created"`
	RunsCreated     int `json:"runs_created"`
}

// Add accumulates other into s.
func (s *Summary) Add(other Summary) {
	s.Cells += other.Cells
	s.Succeeded += other.Succeeded
	s.Failed += other.Failed
	s.Points += other.Points
	s.StationsCreated += other.StationsCreated
	s.RunsCreated += other.RunsCreated
}

// Ingestor writes every cell of a grid as one time series.
type Ingestor struct {
	stations *StationCache
	ledger   RunLedger
	sink     SeriesSink
	workers  int
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewIngestor creates an Ingestor that processes up to workers cells at once.
func NewIngestor(stations *StationCache, ledger RunLedger, sink SeriesSink, workers int, logger *slog.Logger, metrics *observability.Metrics) *Ingestor {
	if workers < 1 {
		workers = 1
	}
	return &Ingestor{
		stations: stations,
		ledger:   ledger,
		sink:     sink,
		workers:  workers,
		logger:   logger,
		metrics:  metrics,
	}
}

// cellPlan is the per-grid state shared read-only by every cell.
type cellPlan struct {
	grid   domain.Grid
	tpl    domain.Template
	fgt    time.Time
	labels []time.Time
	start  time.Time
	end    time.Time
}

type cellResult struct {
	points         int
	stationCreated bool
	runCreated     bool
}

// IngestGrid transforms and stores every (y, x) cell of grid under tpl, with
// fgt as the forecast generation time of all points. Cells are dispatched in
// row-major order. A failing cell is logged and counted but never stops the
// others. The returned error is non-nil only when ctx is cancelled, in which
// case cells already dispatched finish and the summary covers them.
func (in *Ingestor) IngestGrid(ctx context.Context, grid domain.Grid, tpl domain.Template, fgt time.Time) (Summary, error) {
	started := time.Now()
	plan := newCellPlan(grid, tpl, fgt)

	var (
		mu  sync.Mutex
		sum Summary
	)
	g := new(errgroup.Group)
	g.SetLimit(in.workers)
	// Dispatched cells run to completion even if ctx is cancelled mid-grid.
	cellCtx := context.WithoutCancel(ctx)

dispatch:
	for y := range grid.Lats {
		for x := range grid.Lons {
			if ctx.Err() != nil {
				break dispatch
			}
			g.Go(func() error {
				res, err := in.ingestCell(cellCtx, plan, y, x)

				mu.Lock()
				defer mu.Unlock()
				sum.Cells++
				if res.stationCreated {
					sum.StationsCreated++
				}
				if res.runCreated {
					sum.RunsCreated++
				}
				if err != nil {
					sum.Failed++
					in.metrics.CellsProcessed.WithLabelValues("failed").Inc()
					in.logCellFailure(err)
					return nil
				}
				sum.Succeeded++
				sum.Points += res.points
				in.metrics.CellsProcessed.WithLabelValues("succeeded").Inc()
				return nil
			})
		}
	}
	_ = g.Wait()

	in.metrics.PointsWritten.Add(float64(sum.Points))
	in.metrics.StationsCreated.Add(float64(sum.StationsCreated))
	in.metrics.RunsCreated.Add(float64(sum.RunsCreated))
	in.metrics.GridIngestDuration.Observe(time.Since(started).Seconds())

	return sum, ctx.Err()
}

func newCellPlan(grid domain.Grid, tpl domain.Template, fgt time.Time) *cellPlan {
	p := &cellPlan{grid: grid, tpl: tpl, fgt: fgt, labels: tpl.IntervalTimes(grid.Times)}
	if len(p.labels) > 0 {
		p.start = p.labels[0]
		p.end = p.labels[len(p.labels)-1]
	} else {
		p.start, p.end = fgt, fgt
	}
	return p
}

func (in *Ingestor) ingestCell(ctx context.Context, p *cellPlan, y, x int) (cellResult, error) {
	var res cellResult
	meta := p.tpl.Metadata(p.grid.Lats[y], p.grid.Lons[x])
	lat, lon := meta.Latitude, meta.Longitude

	station, err := in.stations.Resolve(ctx, domain.NewStation(p.tpl.StationKind, lat, lon))
	if err != nil {
		return res, &domain.PartialCellWriteError{Lat: lat, Lon: lon, Err: err}
	}
	res.stationCreated = station.Created

	seriesID, err := domain.SeriesID(meta)
	if err != nil {
		return res, &domain.PartialCellWriteError{Lat: lat, Lon: lon, Err: err}
	}

	state, err := in.ledger.EnsureRun(ctx, domain.Run{
		SeriesID:   seriesID,
		SimTag:     p.tpl.SimTag,
		Start:      p.start,
		End:        p.end,
		FGT:        p.fgt,
		StationID:  station.ID,
		SourceID:   p.tpl.SourceID,
		VariableID: p.tpl.VariableID,
		UnitID:     p.tpl.UnitID,
	})
	if err != nil {
		return res, &domain.PartialCellWriteError{Lat: lat, Lon: lon, SeriesID: seriesID, Err: err}
	}
	res.runCreated = state == domain.RunNew

	values := p.tpl.Policy.Intervals(p.grid.Series(y, x))
	points := make([]domain.SeriesPoint, len(values))
	for i, v := range values {
		points[i] = domain.SeriesPoint{SeriesID: seriesID, Time: p.labels[i], FGT: p.fgt, Value: v}
	}
	if err := in.sink.UpsertPoints(ctx, points); err != nil {
		return res, &domain.PartialCellWriteError{Lat: lat, Lon: lon, SeriesID: seriesID, Err: err}
	}
	res.points = len(points)
	return res, nil
}

func (in *Ingestor) logCellFailure(err error) {
	attrs := []any{"error", err}
	var ce *domain.PartialCellWriteError
	if errors.As(err, &ce) {
		attrs = append(attrs, "lat", ce.Lat, "lon", ce.Lon, "series_id", ce.SeriesID)
	}
	in.logger.Warn("cell ingest failed", attrs...)
}
