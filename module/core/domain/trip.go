package domain

import (
	"fmt"
	"strings"
	"time"
)

// MinRadiusMeters is the smallest wake radius a trip may be created with.
const MinRadiusMeters = 50

type Destination struct {
	Coordinate
	PlaceName string `json:"placeName,omitempty"`
}

type LocationPoint struct {
	Lat float64   `json:"lat"`
	Lng float64   `json:"lng"`
	Ts  time.Time `json:"ts"`
}

type Trip struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Start            *Coordinate     `json:"start,omitempty"`
	Destination      Destination     `json:"destination"`
	RadiusMeters     float64         `json:"radiusMeters"`
	EtaOffsetMinutes int             `json:"etaOffsetMinutes"`
	LocationPoints   []LocationPoint `json:"locationPoints"`
	CreatedAt        time.Time       `json:"createdAt"`
	StartedAt        *time.Time      `json:"startedAt,omitempty"`
	EndedAt          *time.Time      `json:"endedAt,omitempty"`
}

func (t *Trip) Geofence() Geofence {
	return Geofence{Center: t.Destination.Coordinate, RadiusMeters: t.RadiusMeters}
}

type NewTrip struct {
	Title            string       `json:"title"`
	Start            *Coordinate  `json:"start"`
	Destination      *Destination `json:"destination"`
	RadiusMeters     float64      `json:"radiusMeters"`
	EtaOffsetMinutes int          `json:"etaOffsetMinutes"`
}

func (n *NewTrip) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("%w: title: required", ErrInvalidInput)
	}
	if n.Destination == nil {
		return fmt.Errorf("%w: destination: required", ErrInvalidInput)
	}
	if err := n.Destination.Validate(); err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if n.Start != nil {
		if err := n.Start.Validate(); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}
	if err := validateRadius(n.RadiusMeters); err != nil {
		return err
	}
	return validateEtaOffset(n.EtaOffsetMinutes)
}

// TripUpdate carries the mutable fields of a trip. Timestamps and location
// points are deliberately absent so clients cannot overwrite them.
type TripUpdate struct {
	Title            *string      `json:"title"`
	Start            *Coordinate  `json:"start"`
	Destination      *Destination `json:"destination"`
	RadiusMeters     *float64     `json:"radiusMeters"`
	EtaOffsetMinutes *int         `json:"etaOffsetMinutes"`
}

func (u *TripUpdate) Validate() error {
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return fmt.Errorf("%w: title: must not be empty", ErrInvalidInput)
	}
	if u.Start != nil {
		if err := u.Start.Validate(); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}
	if u.Destination != nil {
		if err := u.Destination.Validate(); err != nil {
			return fmt.Errorf("destination: %w", err)
		}
	}
	if u.RadiusMeters != nil {
		if err := validateRadius(*u.RadiusMeters); err != nil {
			return err
		}
	}
	if u.EtaOffsetMinutes != nil {
		return validateEtaOffset(*u.EtaOffsetMinutes)
	}
	return nil
}

func (u *TripUpdate) Apply(t *Trip) {
	if u.Title != nil {
		t.Title = strings.TrimSpace(*u.Title)
	}
	if u.Start != nil {
		start := *u.Start
		t.Start = &start
	}
	if u.Destination != nil {
		t.Destination = *u.Destination
		t.Destination.PlaceName = strings.TrimSpace(t.Destination.PlaceName)
	}
	if u.RadiusMeters != nil {
		t.RadiusMeters = *u.RadiusMeters
	}
	if u.EtaOffsetMinutes != nil {
		t.EtaOffsetMinutes = *u.EtaOffsetMinutes
	}
}

func validateRadius(r float64) error {
	if r < MinRadiusMeters {
		return fmt.Errorf("%w: radiusMeters: must be at least %d", ErrInvalidInput, MinRadiusMeters)
	}
	return nil
}

func validateEtaOffset(m int) error {
	if m < 0 {
		return fmt.Errorf("%w: etaOffsetMinutes: must not be negative", ErrInvalidInput)
	}
	return nil
}
