// Package ingest turns accumulated rainfall grids into stored time series.
//
// An Ingestor walks one grid cell by cell: each cell resolves its station,
// derives its series identity, records the run and upserts its interval
// values. A Runner drives the Ingestor over every sub-model and date of a job.
package ingest

import (
	"context"

	"github.com/couchcryptid/fcst-grid-ingest/internal/domain"
)

// GridReader loads one accumulated field and its raw time units.
type GridReader interface {
	ReadGrid(path, variable string) (domain.Grid, string, error)
}

// StationRegistry resolves stations by coordinates, creating them on first use.
type StationRegistry interface {
	GetOrCreateStation(ctx context.Context, st domain.Station) (domain.StationResult, error)
	ListStations(ctx context.Context, kind domain.StationKind) (map[string]int64, error)
}

// RunLedger records one row per series.
type RunLedger interface {
	EnsureRun(ctx context.Context, run domain.Run) (domain.RunState, error)
}

// SeriesSink upserts points keyed by (series id, time). One call is atomic.
type SeriesSink interface {
	UpsertPoints(ctx context.Context, points []domain.SeriesPoint) error
}

// ReferenceStore resolves the source, variable and unit rows a run points at.
type ReferenceStore interface {
	GetOrCreateSource(ctx context.Context, name string) (int64, error)
	GetOrCreateVariable(ctx context.Context, name string) (int64, error)
	GetOrCreateUnit(ctx context.Context, unit, unitType string) (int64, error)
}

// Store is the full persistence surface used by a Runner.
type Store interface {
	StationRegistry
	RunLedger
	SeriesSink
	ReferenceStore
}

// CompletionNotifier is told when a file has been ingested.
type CompletionNotifier interface {
	NotifyCompletion(ctx context.Context, c domain.Completion) error
}
