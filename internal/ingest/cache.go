package ingest

import (
	"context"
	"sync"

	"github.com/couchcryptid/fcst-grid-ingest/internal/domain"
	"github.com/couchcryptid/fcst-grid-ingest/internal/observability"
)

// StationCache fronts a StationRegistry with an in-memory LRU of station
// name to id. It is shared by every worker of a batch.
type StationCache struct {
	registry StationRegistry
	cache    *lruCache
	metrics  *observability.Metrics
}

// NewStationCache creates a cache holding up to maxEntries stations.
func NewStationCache(registry StationRegistry, maxEntries int, metrics *observability.Metrics) *StationCache {
	return &StationCache{
		registry: registry,
		cache:    newLRUCache(maxEntries),
		metrics:  metrics,
	}
}

// Resolve returns the id of st, consulting the registry on a miss. Created is
// only ever true for the caller whose registry call inserted the row.
func (c *StationCache) Resolve(ctx context.Context, st domain.Station) (domain.StationResult, error) {
	if id, ok := c.cache.get(st.Name); ok {
		c.metrics.StationCache.WithLabelValues("hit").Inc()
		return domain.StationResult{ID: id}, nil
	}
	c.metrics.StationCache.WithLabelValues("miss").Inc()

	res, err := c.registry.GetOrCreateStation(ctx, st)
	if err != nil {
		return res, err
	}
	c.cache.put(st.Name, res.ID)
	return res, nil
}

// Refresh preloads every known station of kind and returns how many were
// loaded. Stations beyond the cache capacity are left to Resolve.
func (c *StationCache) Refresh(ctx context.Context, kind domain.StationKind) (int, error) {
	stations, err := c.registry.ListStations(ctx, kind)
	if err != nil {
		return 0, err
	}
	n := 0
	for name, id := range stations {
		if n == c.cache.maxEntries {
			break
		}
		c.cache.put(name, id)
		n++
	}
	return n, nil
}

// Invalidate drops every cached station.
func (c *StationCache) Invalidate() {
	c.cache.clear()
}

// Len reports the number of cached stations.
func (c *StationCache) Len() int {
	return c.cache.size()
}

// lruCache is a simple thread-safe LRU cache of station ids.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value int64
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.head = nil
	c.tail = nil
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
