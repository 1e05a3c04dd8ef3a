package domain

import (
	"fmt"
	"math"
	"time"
)

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude must be between -90 and 90", ErrInvalidInput)
	}
	if math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) || c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("%w: longitude must be between -180 and 180", ErrInvalidInput)
	}
	return nil
}

// GeoSample is a single position report from a location source.
type GeoSample struct {
	Location  Coordinate `json:"location"`
	Accuracy  float64    `json:"accuracy,omitempty"` // meters, 0 when unknown
	Timestamp time.Time  `json:"timestamp"`
}
