package models

import (
	"encoding/json"
	"time"
)

// LngLat is a WGS84 coordinate. Equality is exact: two fixes are the same
// position only when both components are bit-identical.
type LngLat struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// DoorState is the tri-state door status some feeds report.
type DoorState int8

const (
	DoorsUnknown DoorState = iota
	DoorsClosed
	DoorsOpen
)

func (d DoorState) String() string {
	switch d {
	case DoorsClosed:
		return "closed"
	case DoorsOpen:
		return "open"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes open/closed as true/false and unknown as null.
func (d DoorState) MarshalJSON() ([]byte, error) {
	switch d {
	case DoorsOpen:
		return []byte("true"), nil
	case DoorsClosed:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (d *DoorState) UnmarshalJSON(data []byte) error {
	var open *bool
	if err := json.Unmarshal(data, &open); err != nil {
		return err
	}
	switch {
	case open == nil:
		*d = DoorsUnknown
	case *open:
		*d = DoorsOpen
	default:
		*d = DoorsClosed
	}
	return nil
}

// VehiclePosition is the latest known state of one physical vehicle.
// For the rail feed VehicleID is the train number; for the HSL feed it is
// the rolling-stock number.
type VehiclePosition struct {
	VehicleID        int       `json:"vehicleId"`
	Feed             string    `json:"feed"`
	Position         LngLat    `json:"position"`
	PreviousPosition LngLat    `json:"previousPosition"`
	Heading          *float64  `json:"heading"`
	SpeedKmh         float64   `json:"speedKmh"`
	Doors            DoorState `json:"doorsOpen"`
	Acceleration     float64   `json:"acceleration"`
	StopID           *string   `json:"stopId"`
	NextStopID       *string   `json:"nextStopId"`
	RouteShortName   *string   `json:"routeShortName"`
	JourneyNumber    *int      `json:"jrn"`
	StartTime        string    `json:"startTime"`
	TransportMode    string    `json:"transportMode"`
	Timestamp        time.Time `json:"timestamp"`
}

// HasJourney reports whether the vehicle is linked to journey number jrn.
func (v VehiclePosition) HasJourney(jrn int) bool {
	return v.JourneyNumber != nil && *v.JourneyNumber == jrn
}

// TrackedTrain records the departure date first associated with a journey number.
type TrackedTrain struct {
	DepartureDate string `json:"departureDate"`
}
