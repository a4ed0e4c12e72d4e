// Package redis implements the presence cache on a Redis GEO set, for
// deployments that want the cache to survive API process restarts.
package redis

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"truckflow/pkg/geo"
)

const (
	geoKey          = "vendor_locations_geo"
	activeKeyPrefix = "vendor:active:"
)

// Cache stores vendor presence in a Redis GEO sorted set plus one active
// flag key per vendor.
type Cache struct {
	client *redis.Client
}

// New creates a Redis-backed cache.
func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Upsert adds or replaces the vendor in the GEO set.
func (c *Cache) Upsert(ctx context.Context, p geo.Presence) error {
	if err := geo.ValidateCoordinate(p.Lat, p.Lon); err != nil {
		return err
	}
	err := c.client.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      p.VendorID,
		Longitude: p.Lon,
		Latitude:  p.Lat,
	}).Err()
	if err != nil {
		return err
	}
	return c.client.Set(ctx, activeKeyPrefix+p.VendorID, strconv.FormatBool(p.Active), 0).Err()
}

// Remove drops the vendor from the GEO set and clears its active flag.
func (c *Cache) Remove(ctx context.Context, vendorID string) error {
	if err := c.client.ZRem(ctx, geoKey, vendorID).Err(); err != nil {
		return err
	}
	return c.client.Del(ctx, activeKeyPrefix+vendorID).Err()
}

// Nearby runs GEOSEARCH around the point and filters out inactive vendors.
func (c *Cache) Nearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]geo.Result, error) {
	if err := geo.ValidateCoordinate(lat, lon); err != nil {
		return nil, err
	}
	if radiusMeters <= 0 {
		return nil, geo.ErrInvalidRadius
	}

	locs, err := c.client.GeoSearchLocation(ctx, geoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lon,
			Latitude:   lat,
			Radius:     radiusMeters,
			RadiusUnit: "m",
			Sort:       "ASC",
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, err
	}

	results := make([]geo.Result, 0, len(locs))
	for _, loc := range locs {
		if limit >= 0 && len(results) >= limit {
			break
		}
		active, err := c.client.Get(ctx, activeKeyPrefix+loc.Name).Result()
		if err != nil && err != redis.Nil {
			return nil, err
		}
		if active != "true" {
			continue
		}
		results = append(results, geo.Result{
			VendorID:       loc.Name,
			Lat:            loc.Latitude,
			Lon:            loc.Longitude,
			DistanceMeters: loc.Dist,
		})
	}
	return results, nil
}
