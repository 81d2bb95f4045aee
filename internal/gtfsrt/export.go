// Package gtfsrt exports the vehicle snapshot as a GTFS-Realtime
// VehiclePositions feed.
package gtfsrt

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"tracker.junat.live/internal/models"
	"tracker.junat.live/internal/store"
)

const realtimeVersion = "2.0"

// BuildFeed converts a vehicle snapshot into a full-dataset FeedMessage.
// Entities are ordered by feed, then vehicle id.
func BuildFeed(vehicles store.Vehicles, tracked store.TrackedTrains, now time.Time) *gtfs.FeedMessage {
	list := make([]models.VehiclePosition, 0, len(vehicles))
	for _, v := range vehicles {
		list = append(list, v)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Feed != list[j].Feed {
			return list[i].Feed < list[j].Feed
		}
		return list[i].VehicleID < list[j].VehicleID
	})

	msg := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String(realtimeVersion),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
		Entity: make([]*gtfs.FeedEntity, 0, len(list)),
	}
	for _, v := range list {
		msg.Entity = append(msg.Entity, &gtfs.FeedEntity{
			Id:      proto.String(entityID(v)),
			Vehicle: vehiclePosition(v, tracked),
		})
	}
	return msg
}

func entityID(v models.VehiclePosition) string {
	feed := v.Feed
	if feed == "" {
		feed = "vehicle"
	}
	return feed + ":" + strconv.Itoa(v.VehicleID)
}

func vehiclePosition(v models.VehiclePosition, tracked store.TrackedTrains) *gtfs.VehiclePosition {
	id := strconv.Itoa(v.VehicleID)
	vp := &gtfs.VehiclePosition{
		Vehicle: &gtfs.VehicleDescriptor{
			Id:    proto.String(id),
			Label: proto.String(id),
		},
		Position: &gtfs.Position{
			Latitude:  proto.Float32(float32(v.Position.Lat)),
			Longitude: proto.Float32(float32(v.Position.Lng)),
			Speed:     proto.Float32(float32(v.SpeedKmh / 3.6)),
		},
		StopId: v.StopID,
	}
	if v.RouteShortName != nil {
		vp.Vehicle.Label = proto.String(*v.RouteShortName)
	}
	if v.Heading != nil {
		vp.Position.Bearing = proto.Float32(float32(normalizeBearing(*v.Heading)))
	}
	if !v.Timestamp.IsZero() {
		vp.Timestamp = proto.Uint64(uint64(v.Timestamp.Unix()))
	}
	if v.JourneyNumber != nil {
		vp.Trip = tripDescriptor(v, *v.JourneyNumber, tracked)
	}
	return vp
}

func tripDescriptor(v models.VehiclePosition, jrn int, tracked store.TrackedTrains) *gtfs.TripDescriptor {
	trip := &gtfs.TripDescriptor{TripId: proto.String(strconv.Itoa(jrn))}
	if rec, ok := tracked[jrn]; ok && rec.DepartureDate != "" {
		date := strings.ReplaceAll(rec.DepartureDate, "-", "")
		trip.StartDate = proto.String(date)
		trip.TripId = proto.String(fmt.Sprintf("%s:%d", date, jrn))
	}
	if v.RouteShortName != nil {
		trip.RouteId = proto.String(*v.RouteShortName)
	}
	if v.StartTime != "" {
		trip.StartTime = proto.String(v.StartTime + ":00")
	}
	return trip
}

// normalizeBearing maps (-180, 180] onto [0, 360).
func normalizeBearing(deg float64) float64 {
	if deg < 0 {
		return deg + 360
	}
	return deg
}

// Marshal encodes msg as protobuf.
func Marshal(msg *gtfs.FeedMessage) ([]byte, error) {
	return proto.Marshal(msg)
}

// MarshalJSON encodes msg with the protobuf JSON mapping.
func MarshalJSON(msg *gtfs.FeedMessage) ([]byte, error) {
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(msg)
}
