// Package predcache caches assembled prediction responses keyed by
// rounded location, date, 15-minute time bucket and radius. Entries
// expire by TTL and are bulk-evicted when real-time signals or crowd
// reports arrive.
package predcache

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/uber/h3-go/v4"
)

// cellResolution is the H3 resolution of the spatial side index used by
// InvalidateArea. Res-8 hexagons have ~460 m edges, on the order of a
// typical request radius.
const cellResolution = 8

const cellEdgeM = 460.0

// Cache is the prediction TTL cache. All methods are safe for
// concurrent use.
type Cache struct {
	store *ristretto.Cache
	ttl   time.Duration

	// Side index mapping H3 cells to the keys cached inside them, so an
	// area invalidation can evict without scanning.
	mu     sync.Mutex
	byCell map[h3.Cell]map[string]struct{}
	cellOf map[string]h3.Cell
}

// New creates a cache holding at most maxEntries responses, each living
// for ttl.
func New(maxEntries int, ttl time.Duration) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	store, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(maxEntries) * 10,
		MaxCost:     int64(maxEntries),
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create prediction cache: %w", err)
	}
	return &Cache{
		store:  store,
		ttl:    ttl,
		byCell: make(map[h3.Cell]map[string]struct{}),
		cellOf: make(map[string]h3.Cell),
	}, nil
}

// Key builds the cache key for a request.
func Key(lat, lng float64, ts time.Time, radiusM float64) string {
	bucket := ts.Hour()*4 + ts.Minute()/15
	return fmt.Sprintf("%.3f:%.3f:%s:%d:%d",
		roundTo(lat, 3), roundTo(lng, 3), ts.Format("2006-01-02"), bucket, int(radiusM))
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// Get returns the cached response for a request, or (nil, false).
func (c *Cache) Get(lat, lng float64, ts time.Time, radiusM float64) (any, bool) {
	return c.store.Get(Key(lat, lng, ts, radiusM))
}

// Put caches a response for a request.
func (c *Cache) Put(lat, lng float64, ts time.Time, radiusM float64, value any) {
	key := Key(lat, lng, ts, radiusM)
	c.store.SetWithTTL(key, value, 1, c.ttl)

	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lng), cellResolution)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.cellOf[key]; ok && prev != cell {
		delete(c.byCell[prev], key)
	}
	if c.byCell[cell] == nil {
		c.byCell[cell] = make(map[string]struct{})
	}
	c.byCell[cell][key] = struct{}{}
	c.cellOf[key] = cell
}

// Wait blocks until buffered writes have been applied. Only needed by
// callers that read back immediately, such as tests.
func (c *Cache) Wait() {
	c.store.Wait()
}

// InvalidateAll clears the cache entirely.
func (c *Cache) InvalidateAll() {
	c.store.Clear()
	c.mu.Lock()
	c.byCell = make(map[h3.Cell]map[string]struct{})
	c.cellOf = make(map[string]h3.Cell)
	c.mu.Unlock()
	slog.Debug("prediction cache cleared")
}

// InvalidateArea evicts entries whose center falls within radiusM of the
// given point, using the H3 grid disk covering the area. Any H3 failure
// degrades to a full clear, which is always correct.
func (c *Cache) InvalidateArea(lat, lng, radiusM float64) {
	center, err := h3.LatLngToCell(h3.NewLatLng(lat, lng), cellResolution)
	if err != nil {
		c.InvalidateAll()
		return
	}
	k := int(radiusM/cellEdgeM) + 1
	disk, err := h3.GridDisk(center, k)
	if err != nil {
		c.InvalidateAll()
		return
	}

	c.mu.Lock()
	var keys []string
	for _, cell := range disk {
		for key := range c.byCell[cell] {
			keys = append(keys, key)
			delete(c.cellOf, key)
		}
		delete(c.byCell, cell)
	}
	c.mu.Unlock()

	for _, key := range keys {
		c.store.Del(key)
	}
	slog.Debug("prediction cache area invalidated", "keys", len(keys), "cells", len(disk))
}
