package domain

import "fmt"

type ContainmentState int

const (
	Outside ContainmentState = iota
	Inside
)

func (s ContainmentState) String() string {
	if s == Inside {
		return "inside"
	}
	return "outside"
}

func (s ContainmentState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type AlarmState int

const (
	AlarmIdle AlarmState = iota
	AlarmTriggered
	AlarmStoppedByUser
)

func (s AlarmState) String() string {
	switch s {
	case AlarmIdle:
		return "idle"
	case AlarmTriggered:
		return "triggered"
	case AlarmStoppedByUser:
		return "stopped_by_user"
	default:
		return fmt.Sprintf("alarm_state(%d)", int(s))
	}
}

func (s AlarmState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *AlarmState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*s = AlarmIdle
	case "triggered":
		*s = AlarmTriggered
	case "stopped_by_user":
		*s = AlarmStoppedByUser
	default:
		return fmt.Errorf("unknown alarm state %q", b)
	}
	return nil
}

// Geofence is the circular arrival region of a trip.
type Geofence struct {
	Center       Coordinate
	RadiusMeters float64
}

type AlarmEventType string

const (
	AlarmTriggeredEvent AlarmEventType = "alarm_triggered"
	AlarmClearedEvent   AlarmEventType = "alarm_cleared"
	AlarmStoppedEvent   AlarmEventType = "alarm_stopped"
	AlarmRearmedEvent   AlarmEventType = "alarm_rearmed"
	TripEndedEvent      AlarmEventType = "trip_ended"
)

type AlarmEvent struct {
	TripID         string         `json:"trip_id"`
	Event          AlarmEventType `json:"event"`
	State          AlarmState     `json:"alarm_state"`
	Location       *Coordinate    `json:"location,omitempty"`
	DistanceMeters float64        `json:"distance_meters"`
	Timestamp      int64          `json:"timestamp"`
}
