package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/fcst-grid-ingest/internal/domain"
	"github.com/couchcryptid/fcst-grid-ingest/internal/ingest"
	"github.com/couchcryptid/fcst-grid-ingest/internal/observability"
)

// --- in-memory store ---

type pointKey struct {
	seriesID string
	time     time.Time
}

type memStore struct {
	mu sync.Mutex

	stations   map[string]domain.Station
	runs       map[string]domain.Run
	points     map[pointKey]domain.SeriesPoint
	references map[string]int64
	nextID     int64

	stationCalls int
	upsertCalls  int

	// failUpsert, when set, is consulted before every upsert.
	failUpsert func(points []domain.SeriesPoint) error
	failList   error
}

func newMemStore() *memStore {
	return &memStore{
		stations:   make(map[string]domain.Station),
		runs:       make(map[string]domain.Run),
		points:     make(map[pointKey]domain.SeriesPoint),
		references: make(map[string]int64),
	}
}

func (s *memStore) GetOrCreateStation(_ context.Context, st domain.Station) (domain.StationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stationCalls++

	key := fmt.Sprintf("%s|%v|%v", st.Kind, st.Latitude, st.Longitude)
	if existing, ok := s.stations[key]; ok {
		return domain.StationResult{ID: existing.ID}, nil
	}
	s.nextID++
	st.ID = s.nextID
	s.stations[key] = st
	return domain.StationResult{ID: st.ID, Created: true}, nil
}

func (s *memStore) ListStations(_ context.Context, kind domain.StationKind) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList != nil {
		return nil, s.failList
	}
	out := make(map[string]int64)
	for _, st := range s.stations {
		if st.Kind == kind {
			out[st.Name] = st.ID
		}
	}
	return out, nil
}

func (s *memStore) EnsureRun(_ context.Context, run domain.Run) (domain.RunState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.runs[run.SeriesID]
	if !ok {
		s.runs[run.SeriesID] = run
		return domain.RunNew, nil
	}
	if run.FGT.After(existing.FGT) {
		existing.FGT = run.FGT
		s.runs[run.SeriesID] = existing
	}
	return domain.RunExisting, nil
}

func (s *memStore) UpsertPoints(_ context.Context, points []domain.SeriesPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++

	if s.failUpsert != nil {
		if err := s.failUpsert(points); err != nil {
			return err
		}
	}
	for _, p := range points {
		s.points[pointKey{p.SeriesID, p.Time}] = p
	}
	return nil
}

func (s *memStore) GetOrCreateSource(_ context.Context, name string) (int64, error) {
	return s.reference("source:" + name), nil
}

func (s *memStore) GetOrCreateVariable(_ context.Context, name string) (int64, error) {
	return s.reference("variable:" + name), nil
}

func (s *memStore) GetOrCreateUnit(_ context.Context, unit, unitType string) (int64, error) {
	return s.reference("unit:" + unit + ":" + unitType), nil
}

func (s *memStore) reference(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.references[key]; ok {
		return id
	}
	s.nextID++
	s.references[key] = s.nextID
	return s.nextID
}

func (s *memStore) series(seriesID string) []domain.SeriesPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SeriesPoint
	for k, p := range s.points {
		if k.seriesID == seriesID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

func (s *memStore) counts() (stations, runs, points int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stations), len(s.runs), len(s.points)
}

var _ ingest.Store = (*memStore)(nil)

// --- grid reader ---

type stubReader struct {
	grids map[string]domain.Grid
	errs  map[string]error
	calls []string
	mu    sync.Mutex
}

func (r *stubReader) ReadGrid(path, variable string) (domain.Grid, string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, path+"#"+variable)
	r.mu.Unlock()

	if err, ok := r.errs[path+"#"+variable]; ok {
		return domain.Grid{}, "", err
	}
	g, ok := r.grids[path+"#"+variable]
	if !ok {
		return domain.Grid{}, "", &domain.MissingInputError{Path: path}
	}
	return g, "minutes since 2019-03-24T00:00:00", nil
}

// --- notifier ---

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Completion
	err  error
}

func (n *recordingNotifier) NotifyCompletion(_ context.Context, c domain.Completion) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, c)
	return nil
}

// --- helpers ---

var errUpsert = errors.New("disk full")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func testTemplate() domain.Template {
	return domain.Template{
		SimTag:      "evening_18hrs",
		Model:       "WRF_A",
		Version:     "v4",
		Variable:    "Precipitation",
		Unit:        "mm",
		UnitType:    "Accumulative",
		StationKind: domain.KindWRF,
		Policy:      domain.PolicyFirstDifference,
		SourceID:    1,
		VariableID:  2,
		UnitID:      3,
	}
}

func utc(day, hour, minute int) time.Time {
	return time.Date(2019, time.March, day, hour, minute, 0, 0, time.UTC)
}

// rampGrid builds a grid whose cell (y, x) accumulates step*(y*width+x+1)
// per timestamp, so every cell has a distinct constant interval value.
func rampGrid(times []time.Time, lats, lons []float64, step float64) domain.Grid {
	values := make([][][]float64, len(times))
	for t := range times {
		values[t] = make([][]float64, len(lats))
		for y := range lats {
			values[t][y] = make([]float64, len(lons))
			for x := range lons {
				values[t][y][x] = float64(t) * step * float64(y*len(lons)+x+1)
			}
		}
	}
	g, err := domain.NewGrid(times, lats, lons, values)
	if err != nil {
		panic(err)
	}
	return g
}

func hourlyTimes(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = utc(24, i, 0)
	}
	return out
}

func seriesIDAt(t *testing.T, tpl domain.Template, lat, lon float64) string {
	t.Helper()
	id, err := domain.SeriesID(tpl.Metadata(lat, lon))
	if err != nil {
		t.Fatalf("series id: %v", err)
	}
	return id
}
