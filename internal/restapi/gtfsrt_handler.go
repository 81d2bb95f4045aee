package restapi

import (
	"net/http"

	"tracker.junat.live/internal/gtfsrt"
)

// gtfsRealtimeHandler exports the snapshot as a GTFS-Realtime
// VehiclePositions feed, in protobuf or with ?format=json as protojson.
func (api *RestAPI) gtfsRealtimeHandler(w http.ResponseWriter, r *http.Request) {
	msg := gtfsrt.BuildFeed(api.Vehicles.Get(), api.TrackedTrains.Get(), api.Clock.Now())

	var (
		body        []byte
		err         error
		contentType string
	)
	switch r.URL.Query().Get("format") {
	case "", "pb", "protobuf":
		body, err = gtfsrt.Marshal(msg)
		contentType = "application/x-protobuf"
	case "json":
		body, err = gtfsrt.MarshalJSON(msg)
		contentType = "application/json"
	default:
		api.badRequest(w, r, "format must be protobuf or json")
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(body)
}
