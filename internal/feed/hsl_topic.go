package feed

import (
	"fmt"
	"strings"
)

// HSLTopic is a high-frequency positioning topic split into named levels:
//
//	/hfp/v2/journey/ongoing/vp/train/0090/01234/3001R/1/Riihimäki/13:01/1100106/5/60;24/19/85/64
type HSLTopic struct {
	Prefix        string // "hfp"
	Version       string // "v2"
	JourneyType   string // "journey", "deadrun"
	TemporalType  string // "ongoing", "upcoming"
	EventType     string // "vp", "due", "arr", ...
	TransportMode string
	OperatorID    string
	VehicleNumber string
	RouteID       string
	DirectionID   string
	Headsign      string
	StartTime     string // HH:mm, Helsinki time
	NextStop      string
	GeohashLevel  string
	Geohash       []string
}

const hslTopicMinLevels = 14

// ParseHSLTopic decodes the positional levels of an HFP topic. Levels after
// the next stop are optional.
func ParseHSLTopic(topic string) (HSLTopic, error) {
	levels := strings.Split(topic, "/")
	if len(levels) < hslTopicMinLevels || levels[0] != "" || levels[1] != "hfp" {
		return HSLTopic{}, fmt.Errorf("%w: %q", ErrMalformedTopic, topic)
	}

	t := HSLTopic{
		Prefix:        levels[1],
		Version:       levels[2],
		JourneyType:   levels[3],
		TemporalType:  levels[4],
		EventType:     levels[5],
		TransportMode: levels[6],
		OperatorID:    levels[7],
		VehicleNumber: levels[8],
		RouteID:       levels[9],
		DirectionID:   levels[10],
		Headsign:      levels[11],
		StartTime:     levels[12],
		NextStop:      levels[13],
	}
	if len(levels) > 14 {
		t.GeohashLevel = levels[14]
	}
	if len(levels) > 15 {
		t.Geohash = levels[15:]
	}
	return t, nil
}

// HSLSubscription builds the vehicle-position filter for one route and
// start time, leaving every other level as a wildcard.
func HSLSubscription(routeID, startTime string) string {
	return fmt.Sprintf("/hfp/v2/journey/ongoing/vp/+/+/+/%s/+/+/%s/#", routeID, startTime)
}
