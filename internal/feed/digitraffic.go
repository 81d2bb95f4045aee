package feed

import (
	"encoding/json"
	"fmt"
	"strconv"

	"tracker.junat.live/internal/clock"
	"tracker.junat.live/internal/models"
	"tracker.junat.live/internal/store"
	"tracker.junat.live/internal/utils"
)

// DigitrafficMessage is a decoded frame of the national rail location feed.
type DigitrafficMessage struct {
	TrainNumber   int
	DepartureDate string
	Timestamp     string
	Position      models.LngLat
	SpeedKmh      float64
}

func (DigitrafficMessage) Feed() Name     { return Digitraffic }
func (m DigitrafficMessage) Vehicle() int { return m.TrainNumber }
func (DigitrafficMessage) isMessage()     {}

type digitrafficPayload struct {
	TrainNumber   int    `json:"trainNumber"`
	DepartureDate string `json:"departureDate"`
	Timestamp     string `json:"timestamp"`
	Location      *struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates"`
	} `json:"location"`
	Speed float64 `json:"speed"`
}

// DecodeDigitraffic parses a train-locations frame.
func DecodeDigitraffic(payload []byte) (DigitrafficMessage, error) {
	var p digitrafficPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return DigitrafficMessage{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.TrainNumber == 0 {
		return DigitrafficMessage{}, ErrMissingVehicle
	}
	if p.Location == nil || len(p.Location.Coordinates) < 2 {
		return DigitrafficMessage{}, ErrMissingPosition
	}

	return DigitrafficMessage{
		TrainNumber:   p.TrainNumber,
		DepartureDate: p.DepartureDate,
		Timestamp:     p.Timestamp,
		Position:      models.LngLat{Lng: p.Location.Coordinates[0], Lat: p.Location.Coordinates[1]},
		SpeedKmh:      p.Speed,
	}, nil
}

// DigitrafficFeed handles the Digitraffic train-locations MQTT feed. Vehicle
// ids on this feed are train numbers.
type DigitrafficFeed struct {
	vehicles *store.VehicleStore
	tracked  *store.TrackedTrainStore
	clock    clock.Clock
}

func NewDigitrafficFeed(vehicles *store.VehicleStore, tracked *store.TrackedTrainStore, c clock.Clock) *DigitrafficFeed {
	if c == nil {
		c = clock.RealClock{}
	}
	return &DigitrafficFeed{vehicles: vehicles, tracked: tracked, clock: c}
}

func (f *DigitrafficFeed) Name() Name { return Digitraffic }

// ResolveTopic builds train-locations/{date}/{trainNumber}/#, where date is
// the Helsinki calendar date of the train's earliest departure.
func (f *DigitrafficFeed) ResolveTopic(train models.TrainOfInterest) (string, bool) {
	first, ok := train.FirstDeparture()
	if !ok {
		return "", false
	}
	return fmt.Sprintf("train-locations/%s/%d/#", clock.LocalDate(first.ScheduledTime), train.TrainNumber), true
}

func (f *DigitrafficFeed) HandleMessage(topic string, payload []byte, train *models.TrainOfInterest) (models.VehiclePosition, error) {
	msg, err := DecodeDigitraffic(payload)
	if err != nil {
		return models.VehiclePosition{}, err
	}
	return f.Apply(msg, train), nil
}

// Apply records the departure date of the train (first write wins) and
// replaces its vehicle entry. Frames without a departure date update the
// position only.
func (f *DigitrafficFeed) Apply(msg DigitrafficMessage, train *models.TrainOfInterest) models.VehiclePosition {
	if msg.DepartureDate != "" {
		f.tracked.InsertIfAbsent(msg.TrainNumber, models.TrackedTrain{DepartureDate: msg.DepartureDate})
	}

	var routeShortName *string
	if train != nil {
		if train.IsCommuter() {
			routeShortName = stringPtr(train.CommuterLineID)
		} else {
			routeShortName = stringPtr(strconv.Itoa(train.TrainNumber))
		}
	}

	now := f.clock.Now()
	v, _ := f.vehicles.Upsert(msg.TrainNumber, func(prev *models.VehiclePosition) (models.VehiclePosition, bool) {
		next := models.VehiclePosition{
			VehicleID:        msg.TrainNumber,
			Feed:             string(Digitraffic),
			Position:         msg.Position,
			PreviousPosition: msg.Position,
			SpeedKmh:         msg.SpeedKmh,
			RouteShortName:   routeShortName,
			JourneyNumber:    intPtr(msg.TrainNumber),
			TransportMode:    "train",
			Timestamp:        now,
		}
		if prev != nil {
			next.PreviousPosition = prev.Position
			next.Heading = headingFrom(*prev, msg.Position)
		}
		return next, true
	})
	return v
}

// headingFrom keeps the previous heading when the fix did not move, since a
// bearing over a zero-length segment is meaningless.
func headingFrom(prev models.VehiclePosition, to models.LngLat) *float64 {
	if prev.Position == to {
		if prev.Heading == nil {
			return nil
		}
		h := *prev.Heading
		return &h
	}
	h := utils.Bearing(prev.Position.Lat, prev.Position.Lng, to.Lat, to.Lng)
	return &h
}
