package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/fcst-grid-ingest/internal/domain"
	"github.com/couchcryptid/fcst-grid-ingest/internal/observability"
)

// --- mock for cache tests ---

type countingRegistry struct {
	mu      sync.Mutex
	calls   int
	ids     map[string]int64
	known   map[string]int64
	listErr error
}

func newCountingRegistry() *countingRegistry {
	return &countingRegistry{ids: make(map[string]int64)}
}

func (r *countingRegistry) GetOrCreateStation(_ context.Context, st domain.Station) (domain.StationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if id, ok := r.ids[st.Name]; ok {
		return domain.StationResult{ID: id}, nil
	}
	id := int64(len(r.ids) + 1)
	r.ids[st.Name] = id
	return domain.StationResult{ID: id, Created: true}, nil
}

func (r *countingRegistry) ListStations(_ context.Context, _ domain.StationKind) (map[string]int64, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.known, nil
}

// --- StationCache tests ---

func TestStationCache_HitSkipsRegistry(t *testing.T) {
	reg := newCountingRegistry()
	metrics := observability.NewMetricsForTesting()
	cache := NewStationCache(reg, 10, metrics)
	st := domain.NewStation(domain.KindWRF, 6.5, 79.5)

	r1, err := cache.Resolve(context.Background(), st)
	require.NoError(t, err)
	assert.True(t, r1.Created)

	r2, err := cache.Resolve(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, r1.ID, r2.ID)
	assert.False(t, r2.Created, "a cache hit never reports creation")

	assert.Equal(t, 1, reg.calls, "should only call registry once")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.StationCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.StationCache.WithLabelValues("miss")), 0)
}

func TestStationCache_RegistryErrorNotCached(t *testing.T) {
	reg := &failingRegistry{err: errors.New("connection refused")}
	cache := NewStationCache(reg, 10, observability.NewMetricsForTesting())

	_, err := cache.Resolve(context.Background(), domain.NewStation(domain.KindWRF, 6.5, 79.5))
	require.Error(t, err)
	assert.Zero(t, cache.Len())
}

func TestStationCache_Refresh(t *testing.T) {
	reg := newCountingRegistry()
	reg.known = map[string]int64{
		"wrf_6.5_79.5":  7,
		"wrf_6.5_79.75": 8,
	}
	cache := NewStationCache(reg, 10, observability.NewMetricsForTesting())

	n, err := cache.Refresh(context.Background(), domain.KindWRF)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err := cache.Resolve(context.Background(), domain.NewStation(domain.KindWRF, 6.5, 79.75))
	require.NoError(t, err)
	assert.Equal(t, int64(8), res.ID)
	assert.Zero(t, reg.calls)
}

func TestStationCache_RefreshCappedAtCapacity(t *testing.T) {
	reg := newCountingRegistry()
	reg.known = map[string]int64{"a": 1, "b": 2, "c": 3}
	cache := NewStationCache(reg, 2, observability.NewMetricsForTesting())

	n, err := cache.Refresh(context.Background(), domain.KindWRF)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, cache.Len())
}

func TestStationCache_RefreshError(t *testing.T) {
	reg := newCountingRegistry()
	reg.listErr = errors.New("timeout")
	cache := NewStationCache(reg, 2, observability.NewMetricsForTesting())

	_, err := cache.Refresh(context.Background(), domain.KindWRF)
	assert.Error(t, err)
}

func TestStationCache_Invalidate(t *testing.T) {
	reg := newCountingRegistry()
	cache := NewStationCache(reg, 10, observability.NewMetricsForTesting())
	st := domain.NewStation(domain.KindWRF, 6.5, 79.5)

	_, err := cache.Resolve(context.Background(), st)
	require.NoError(t, err)
	cache.Invalidate()
	assert.Zero(t, cache.Len())

	_, err = cache.Resolve(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.calls)
}

type failingRegistry struct {
	err error
}

func (r *failingRegistry) GetOrCreateStation(context.Context, domain.Station) (domain.StationResult, error) {
	return domain.StationResult{}, r.err
}

func (r *failingRegistry) ListStations(context.Context, domain.StationKind) (map[string]int64, error) {
	return nil, r.err
}

// --- LRU cache unit tests ---

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache(3)

	c.put("a", 1)
	c.put("b", 2)

	id, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, int64(1), id)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", 1)
	c.put("b", 2)
	c.put("c", 3) // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	id, ok := c.get("b")
	assert.True(t, ok)
	assert.Equal(t, int64(2), id)

	id, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, int64(3), id)
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", 1)
	c.put("b", 2)

	c.get("a")

	// "b" is now least recently used.
	c.put("c", 3)

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", 1)
	c.put("a", 9)

	id, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, int64(9), id)
	assert.Equal(t, 1, c.size())
}

func TestLRUCache_Clear(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", 1)
	c.clear()

	_, ok := c.get("a")
	assert.False(t, ok)
	c.put("b", 2)
	assert.Equal(t, 1, c.size())
}
