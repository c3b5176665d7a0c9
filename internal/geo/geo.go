// internal/geo/geo.go
package geo

import (
	"fmt"
	"math"
	"time"
)

const (
	// EarthRadiusMeters is the spherical-earth approximation used for
	// haversine distances.
	EarthRadiusMeters = 6371000.0

	// SignificantMovementMeters is the default movement threshold.
	SignificantMovementMeters = 50.0

	// StaleFixAge is how old a fix may be before it is flagged stale.
	StaleFixAge = 5 * time.Minute
)

// ValidateCoordinates checks latitude/longitude ranges.
func ValidateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90,90]", lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180,180]", lng)
	}
	return nil
}

// HaversineMeters returns the great-circle distance between two points.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	rLat1 := lat1 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// HasSignificantMovement reports whether the distance between two points
// meets the threshold. Threshold <= 0 falls back to the default; distance
// exactly at the threshold counts as movement.
func HasSignificantMovement(lat1, lng1, lat2, lng2, thresholdMeters float64) bool {
	if thresholdMeters <= 0 {
		thresholdMeters = SignificantMovementMeters
	}
	return HaversineMeters(lat1, lng1, lat2, lng2) >= thresholdMeters
}

// AccuracyTier buckets accuracy (meters) into a display label. Carries no
// behavioral weight anywhere else.
func AccuracyTier(accuracyMeters float64) string {
	switch {
	case accuracyMeters <= 5:
		return "excellent"
	case accuracyMeters <= 10:
		return "good"
	case accuracyMeters <= 20:
		return "fair"
	case accuracyMeters <= 50:
		return "poor"
	default:
		return "unusable"
	}
}

// IsStale reports whether a fix timestamp is older than StaleFixAge
// relative to now. Stale fixes are a warning, not an error.
func IsStale(fixTime, now time.Time) bool {
	return now.Sub(fixTime) > StaleFixAge
}
