// Package geo defines the vendor presence cache: one current position per
// active vendor, radius queries over them, nothing historical.
package geo

import (
	"context"
	"errors"
	"math"
)

// Presence is a vendor's current position. It exists only while the vendor
// is online; there is at most one per vendor and it is overwritten on every
// location update.
type Presence struct {
	VendorID string  `json:"vendor_id"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Active   bool    `json:"active"`
}

// Result is a single match from a Nearby query.
type Result struct {
	VendorID       string  `json:"vendor_id"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	DistanceMeters float64 `json:"distance_meters"`
}

// Cache defines behavior for storing vendor presence and answering radius
// queries. Implementations must be safe for concurrent use.
type Cache interface {
	// Upsert replaces any existing presence for the vendor. Last write wins.
	Upsert(ctx context.Context, p Presence) error
	// Remove deletes the vendor's presence. Removing an absent vendor is
	// not an error.
	Remove(ctx context.Context, vendorID string) error
	// Nearby returns active vendors within radiusMeters of the point,
	// nearest first, truncated to limit.
	Nearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]Result, error)
}

var (
	// ErrInvalidCoordinate indicates a latitude or longitude out of range.
	ErrInvalidCoordinate = errors.New("coordinate out of range")
	// ErrInvalidRadius indicates a non-positive search radius.
	ErrInvalidRadius = errors.New("radius must be positive")
)

// ValidateCoordinate checks that lat is within [-90,90] and lon within
// [-180,180].
func ValidateCoordinate(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinate
	}
	return nil
}

const earthRadiusMeters = 6371000.0

// Distance returns the great-circle distance in meters between two points,
// using the haversine formula. The same formula backs both index coverage
// and final filtering so geohash cell boundaries cannot produce false
// negatives.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
