// Package geo holds the spherical distance math used by geofence evaluation.
package geo

import (
	"fmt"
	"math"

	"github.com/vivekgangdhar11/wakeme/module/core/domain"
)

// EarthRadiusMeters is the mean Earth radius.
const EarthRadiusMeters = 6371000

// Distance returns the haversine great-circle distance between a and b in meters.
func Distance(a, b domain.Coordinate) float64 {
	phi1 := toRad(a.Lat)
	phi2 := toRad(b.Lat)
	dPhi := toRad(b.Lat - a.Lat)
	dLambda := toRad(b.Lng - a.Lng)

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// FormatDistance renders meters below one kilometer as whole meters and
// anything longer as kilometers with one decimal.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0f m", meters)
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
