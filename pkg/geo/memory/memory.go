// Package memory implements the presence cache as an in-memory
// geohash-bucketed index.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/mmcloughlin/geohash"

	"truckflow/pkg/geo"
)

// storePrecision is the geohash length presence records are bucketed at.
// Six characters is roughly a 1.2km x 0.6km cell.
const storePrecision = 6

// minCellSide holds the smaller physical side of a geohash cell at the
// equator, in meters, indexed by precision. Longitude extents shrink with
// latitude; coveragePrecision accounts for that.
var minCellSide = [...]float64{0, 4992600, 624100, 156000, 19500, 4890, 610, 153, 19.1}

type bucket struct {
	mu      sync.RWMutex
	vendors map[string]geo.Presence
}

// Cache is an in-memory implementation of geo.Cache. Writes serialize only
// the touched bucket plus the vendor-to-cell index, so unrelated vendors do
// not contend.
type Cache struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	cells   map[string]string // vendor ID -> bucket key
}

// New creates an empty in-memory cache.
func New() *Cache {
	return &Cache{
		buckets: make(map[string]*bucket),
		cells:   make(map[string]string),
	}
}

// Upsert replaces the vendor's presence. Last write wins across all of a
// vendor's connections.
func (c *Cache) Upsert(ctx context.Context, p geo.Presence) error {
	if err := geo.ValidateCoordinate(p.Lat, p.Lon); err != nil {
		return err
	}
	cell := geohash.EncodeWithPrecision(p.Lat, p.Lon, storePrecision)

	// Fast path: vendor stays in its current cell, only that bucket locks
	// for writing. c.mu stays held across the bucket write so a concurrent
	// move or Remove cannot slip between the index read and the write,
	// which would strand the record in a bucket the index no longer maps.
	c.mu.RLock()
	if old, ok := c.cells[p.VendorID]; ok && old == cell {
		b := c.buckets[cell]
		b.mu.Lock()
		b.vendors[p.VendorID] = p
		b.mu.Unlock()
		c.mu.RUnlock()
		return nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.cells[p.VendorID]; ok && old != cell {
		c.evict(p.VendorID, old)
	}
	b, ok := c.buckets[cell]
	if !ok {
		b = &bucket{vendors: make(map[string]geo.Presence)}
		c.buckets[cell] = b
	}
	b.mu.Lock()
	b.vendors[p.VendorID] = p
	b.mu.Unlock()
	c.cells[p.VendorID] = cell
	return nil
}

// Remove deletes the vendor's presence if present.
func (c *Cache) Remove(ctx context.Context, vendorID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cell, ok := c.cells[vendorID]
	if !ok {
		return nil
	}
	c.evict(vendorID, cell)
	delete(c.cells, vendorID)
	return nil
}

// evict drops the vendor from the given bucket and prunes the bucket when it
// empties. Caller holds c.mu for writing.
func (c *Cache) evict(vendorID, cell string) {
	b, ok := c.buckets[cell]
	if !ok {
		return
	}
	b.mu.Lock()
	delete(b.vendors, vendorID)
	empty := len(b.vendors) == 0
	b.mu.Unlock()
	if empty {
		delete(c.buckets, cell)
	}
}

// Nearby returns active vendors within radiusMeters of the point, nearest
// first, at most limit of them.
func (c *Cache) Nearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]geo.Result, error) {
	if err := geo.ValidateCoordinate(lat, lon); err != nil {
		return nil, err
	}
	if radiusMeters <= 0 {
		return nil, geo.ErrInvalidRadius
	}

	candidates := c.candidateBuckets(lat, lon, radiusMeters)

	var results []geo.Result
	for _, b := range candidates {
		b.mu.RLock()
		for _, p := range b.vendors {
			if !p.Active {
				continue
			}
			d := geo.Distance(lat, lon, p.Lat, p.Lon)
			if d <= radiusMeters {
				results = append(results, geo.Result{
					VendorID:       p.VendorID,
					Lat:            p.Lat,
					Lon:            p.Lon,
					DistanceMeters: d,
				})
			}
		}
		b.mu.RUnlock()
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].DistanceMeters < results[j].DistanceMeters
	})
	if limit >= 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// candidateBuckets snapshots the buckets whose cells could intersect the
// query circle: the query point's cell at coverage precision plus its eight
// neighbors.
func (c *Cache) candidateBuckets(lat, lon, radiusMeters float64) []*bucket {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q := coveragePrecision(lat, radiusMeters)
	if q == 0 {
		// Radius wider than the coarsest cell: scan everything.
		all := make([]*bucket, 0, len(c.buckets))
		for _, b := range c.buckets {
			all = append(all, b)
		}
		return all
	}

	center := geohash.EncodeWithPrecision(lat, lon, q)
	prefixes := map[string]struct{}{center: {}}
	for _, n := range geohash.Neighbors(center) {
		prefixes[n] = struct{}{}
	}

	var out []*bucket
	for key, b := range c.buckets {
		if _, ok := prefixes[key[:q]]; ok {
			out = append(out, b)
		}
	}
	return out
}

// coveragePrecision picks the longest geohash precision whose cell side is
// at least the radius, so a cell and its neighbors cover the circle. Returns
// 0 when no precision is coarse enough.
func coveragePrecision(lat, radiusMeters float64) uint {
	shrink := math.Cos(lat * math.Pi / 180)
	if shrink < 0.01 {
		shrink = 0.01
	}
	for p := uint(storePrecision); p >= 1; p-- {
		if minCellSide[p]*shrink >= radiusMeters {
			return p
		}
	}
	return 0
}
