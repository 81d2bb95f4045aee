package restapi

import (
	"net/http"
	"sort"
	"strconv"

	"tracker.junat.live/internal/models"
	"tracker.junat.live/internal/tracking"
)

// TrackedTrainEntry is one departure-date record keyed by journey number.
type TrackedTrainEntry struct {
	JourneyNumber int    `json:"jrn"`
	DepartureDate string `json:"departureDate"`
}

// ServiceStatus summarizes the feeds and the live snapshot.
type ServiceStatus struct {
	Feeds         []tracking.Status `json:"feeds"`
	Trains        int               `json:"trains"`
	Vehicles      int               `json:"vehicles"`
	StaleVehicles int               `json:"staleVehicles"`
	TrackedTrains int               `json:"trackedTrains"`
}

func (api *RestAPI) trackedTrainsHandler(w http.ResponseWriter, r *http.Request) {
	tracked := api.TrackedTrains.Get()

	if raw := r.URL.Query().Get("jrn"); raw != "" {
		jrn, err := strconv.Atoi(raw)
		if err != nil {
			api.badRequest(w, r, "jrn must be an integer")
			return
		}
		rec, ok := tracked[jrn]
		if !ok {
			api.sendNotFound(w, r)
			return
		}
		api.sendResponse(w, r, models.NewEntryResponse(TrackedTrainEntry{JourneyNumber: jrn, DepartureDate: rec.DepartureDate}, api.Clock))
		return
	}

	entries := make([]TrackedTrainEntry, 0, len(tracked))
	for jrn, rec := range tracked {
		entries = append(entries, TrackedTrainEntry{JourneyNumber: jrn, DepartureDate: rec.DepartureDate})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].JourneyNumber < entries[j].JourneyNumber })
	api.sendResponse(w, r, models.NewListResponse(entries, api.Clock))
}

func (api *RestAPI) serviceStatus() ServiceStatus {
	vehicles := api.Vehicles.Get()
	now := api.Clock.Now()

	stale := 0
	for _, v := range vehicles {
		if api.staleness.Check(v, now) {
			stale++
		}
	}
	return ServiceStatus{
		Feeds:         api.Coordinator.Status(),
		Trains:        len(api.Coordinator.Trains()),
		Vehicles:      len(vehicles),
		StaleVehicles: stale,
		TrackedTrains: len(api.TrackedTrains.Get()),
	}
}

func (api *RestAPI) statusHandler(w http.ResponseWriter, r *http.Request) {
	api.sendResponse(w, r, models.NewEntryResponse(api.serviceStatus(), api.Clock))
}
