// Package feed turns trains of interest into MQTT subscription topics and
// turns the frames published on those topics into vehicle positions.
//
// Each supported feed implements Feed. Frames are decoded at the parse
// boundary into a closed set of message types and then applied to the
// shared stores. A frame that fails to decode is dropped without touching
// any state; the returned error only says why.
package feed

import (
	"errors"

	"tracker.junat.live/internal/models"
)

// Name identifies a position feed.
type Name string

const (
	Digitraffic Name = "digitraffic"
	HSL         Name = "hsl"
)

var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrMalformedTopic   = errors.New("malformed topic")
	ErrMissingPosition  = errors.New("missing position")
	ErrMissingVehicle   = errors.New("missing vehicle id")
)

// Feed is one MQTT position feed.
type Feed interface {
	Name() Name
	// ResolveTopic returns the subscription filter for train, or false when
	// the train cannot be tracked on this feed.
	ResolveTopic(train models.TrainOfInterest) (string, bool)
	// HandleMessage decodes a frame received on topic and applies it to the
	// vehicle store. train is the train the topic was subscribed for, or nil.
	HandleMessage(topic string, payload []byte, train *models.TrainOfInterest) (models.VehiclePosition, error)
}

// Message is a decoded frame. The set of implementations is closed.
type Message interface {
	Feed() Name
	Vehicle() int
	isMessage()
}

// DropReason maps a decode error to a short label for metrics and logs.
func DropReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingPosition):
		return "missing_position"
	case errors.Is(err, ErrMissingVehicle):
		return "missing_vehicle"
	case errors.Is(err, ErrMalformedTopic):
		return "malformed_topic"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed_payload"
	default:
		return "other"
	}
}

func stringPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }
