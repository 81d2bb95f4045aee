package feed

import (
	"bytes"
	"encoding/json"
	"fmt"

	"tracker.junat.live/internal/clock"
	"tracker.junat.live/internal/models"
	"tracker.junat.live/internal/store"
	"tracker.junat.live/internal/utils"
)

// Station short codes with routing rules on the HSL feed.
const (
	stationHelsinki    = "HKI"
	stationRiihimaki   = "RI"
	stationTampere     = "TPE"
	stationHameenlinna = "HL"
)

// commuterRoutes maps commuter line letters to HSL route ids.
var commuterRoutes = map[string]string{
	"D": "3001D",
	"I": "3001I",
	"K": "3001K",
	"R": "3001R",
	"T": "3001T",
	"Z": "3001Z",
	"A": "3002A",
	"E": "3002E",
	"L": "3002L",
	"P": "3002P",
	"U": "3002U",
	"X": "3002X",
	"Y": "3002Y",
}

// RouteID returns the HSL route id of a commuter line.
func RouteID(commuterLineID string) (string, bool) {
	id, ok := commuterRoutes[commuterLineID]
	return id, ok
}

// HSLOptions tunes station rules whose intended behaviour is not settled.
type HSLOptions struct {
	// HameenlinnaAsTampere treats an R train departing from HL the same as
	// one departing from TPE: it is addressed by its RI departure and an
	// HL to RI working is reported as untrackable. Off by default.
	HameenlinnaAsTampere bool
}

// HSLMessage is a decoded vehicle-position frame of the HSL HFP feed.
type HSLMessage struct {
	Topic          HSLTopic
	VehicleNumber  int
	Position       models.LngLat
	Doors          models.DoorState
	SpeedMps       float64
	Acceleration   float64
	StopID         *string
	Heading        *float64
	RouteShortName *string
	JourneyNumber  *int
	TransportMode  string
}

func (HSLMessage) Feed() Name     { return HSL }
func (m HSLMessage) Vehicle() int { return m.VehicleNumber }
func (HSLMessage) isMessage()     {}

type hslEnvelope struct {
	VP *hslVehiclePosition `json:"VP"`
}

type hslVehiclePosition struct {
	Veh           int      `json:"veh"`
	Lat           *float64 `json:"lat"`
	Long          *float64 `json:"long"`
	Drst          *int     `json:"drst"`
	Spd           *float64 `json:"spd"`
	Acc           *float64 `json:"acc"`
	Stop          stopRef  `json:"stop"`
	Hdg           *float64 `json:"hdg"`
	Desi          *string  `json:"desi"`
	Jrn           *int     `json:"jrn"`
	TransportMode string   `json:"transport_mode"`
}

// stopRef accepts a stop id published either as a string or as a number.
type stopRef struct {
	value *string
}

func (s *stopRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		s.value = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s.value = &str
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	str := n.String()
	s.value = &str
	return nil
}

// DecodeHSL parses an HFP frame and the topic it was published on.
// A zero latitude or longitude counts as missing.
func DecodeHSL(topic string, payload []byte) (HSLMessage, error) {
	var env hslEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return HSLMessage{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	vp := env.VP
	if vp == nil {
		return HSLMessage{}, fmt.Errorf("%w: no VP object", ErrMalformedPayload)
	}
	if vp.Lat == nil || vp.Long == nil || *vp.Lat == 0 || *vp.Long == 0 {
		return HSLMessage{}, ErrMissingPosition
	}
	if vp.Veh == 0 {
		return HSLMessage{}, ErrMissingVehicle
	}

	parsed, err := ParseHSLTopic(topic)
	if err != nil {
		return HSLMessage{}, err
	}

	msg := HSLMessage{
		Topic:          parsed,
		VehicleNumber:  vp.Veh,
		Position:       models.LngLat{Lng: *vp.Long, Lat: *vp.Lat},
		StopID:         vp.Stop.value,
		Heading:        vp.Hdg,
		RouteShortName: vp.Desi,
		JourneyNumber:  vp.Jrn,
		TransportMode:  vp.TransportMode,
	}
	if vp.Drst != nil {
		if *vp.Drst == 1 {
			msg.Doors = models.DoorsOpen
		} else {
			msg.Doors = models.DoorsClosed
		}
	}
	if vp.Spd != nil {
		msg.SpeedMps = *vp.Spd
	}
	if vp.Acc != nil {
		msg.Acceleration = *vp.Acc
	}
	return msg, nil
}

// HSLFeed handles the HSL high-frequency positioning feed. Vehicle ids on
// this feed are rolling-stock numbers.
type HSLFeed struct {
	vehicles *store.VehicleStore
	tracked  *store.TrackedTrainStore
	clock    clock.Clock
	opts     HSLOptions
}

func NewHSLFeed(vehicles *store.VehicleStore, tracked *store.TrackedTrainStore, c clock.Clock, opts HSLOptions) *HSLFeed {
	if c == nil {
		c = clock.RealClock{}
	}
	return &HSLFeed{vehicles: vehicles, tracked: tracked, clock: c, opts: opts}
}

func (f *HSLFeed) Name() Name { return HSL }

func (f *HSLFeed) departsLikeTampere(station string) bool {
	return station == stationTampere || (f.opts.HameenlinnaAsTampere && station == stationHameenlinna)
}

// CanBeTracked reports whether the HSL feed can ever carry train. Commuter
// trains from Tampere terminating at Riihimäki never run inside HSL.
func (f *HSLFeed) CanBeTracked(train models.TrainOfInterest) bool {
	if !train.IsCommuter() {
		return false
	}
	return !(f.departsLikeTampere(train.DepartureStation()) && train.DestinationStation() == stationRiihimaki)
}

// addressedDeparture picks the departure row HSL uses as the start of the
// journey. Southbound R trains are addressed from Riihimäki.
func (f *HSLFeed) addressedDeparture(train models.TrainOfInterest) (*models.TimetableRow, bool) {
	departures := train.Departures()
	if len(departures) == 0 {
		return nil, false
	}

	viaRiihimaki := train.CommuterLineID == "R" &&
		(train.DestinationStation() == stationHelsinki ||
			(f.opts.HameenlinnaAsTampere && f.departsLikeTampere(departures[0].Station.ShortCode)))
	if !viaRiihimaki {
		return departures[0], true
	}
	for _, row := range departures {
		if row.Station.ShortCode == stationRiihimaki {
			return row, true
		}
	}
	return nil, false
}

// ResolveTopic builds the HFP filter for the train's route and Helsinki
// start time.
func (f *HSLFeed) ResolveTopic(train models.TrainOfInterest) (string, bool) {
	if !train.IsCommuter() {
		return "", false
	}
	routeID, ok := RouteID(train.CommuterLineID)
	if !ok {
		return "", false
	}
	row, ok := f.addressedDeparture(train)
	if !ok {
		return "", false
	}
	return HSLSubscription(routeID, clock.LocalClockTime(row.ScheduledTime)), true
}

func (f *HSLFeed) HandleMessage(topic string, payload []byte, train *models.TrainOfInterest) (models.VehiclePosition, error) {
	msg, err := DecodeHSL(topic, payload)
	if err != nil {
		return models.VehiclePosition{}, err
	}
	return f.Apply(msg, train), nil
}

// Apply links the journey number to the train's departure date (first write
// wins) and replaces the vehicle entry.
func (f *HSLFeed) Apply(msg HSLMessage, train *models.TrainOfInterest) models.VehiclePosition {
	if train != nil && msg.JourneyNumber != nil && !f.tracked.Has(*msg.JourneyNumber) {
		if first, ok := train.FirstDeparture(); ok {
			f.tracked.InsertIfAbsent(*msg.JourneyNumber, models.TrackedTrain{
				DepartureDate: clock.LocalDate(first.ScheduledTime),
			})
		}
	}

	now := f.clock.Now()
	v, _ := f.vehicles.Upsert(msg.VehicleNumber, func(prev *models.VehiclePosition) (models.VehiclePosition, bool) {
		next := models.VehiclePosition{
			VehicleID:        msg.VehicleNumber,
			Feed:             string(HSL),
			Position:         msg.Position,
			PreviousPosition: msg.Position,
			Heading:          msg.Heading,
			SpeedKmh:         utils.MetersPerSecondToKmh(msg.SpeedMps),
			Doors:            msg.Doors,
			Acceleration:     msg.Acceleration,
			StopID:           msg.StopID,
			NextStopID:       stringPtr("HSL:" + msg.Topic.NextStop),
			RouteShortName:   msg.RouteShortName,
			JourneyNumber:    msg.JourneyNumber,
			StartTime:        msg.Topic.StartTime,
			TransportMode:    msg.TransportMode,
			Timestamp:        now,
		}
		if prev != nil {
			next.PreviousPosition = prev.Position
		}
		return next, true
	})
	return v
}
