package restapi

import (
	"math"
	"net/http"
	"sort"
	"strconv"

	"tracker.junat.live/internal/models"
	"tracker.junat.live/internal/store"
	"tracker.junat.live/internal/utils"
)

const (
	defaultNearRadius = 2000.0
	maxNearRadius     = 50000.0
)

// VehicleTrail is a vehicle's recent positions, oldest first.
type VehicleTrail struct {
	VehicleID int             `json:"vehicleId"`
	Points    []models.LngLat `json:"points"`
	Polyline  string          `json:"polyline"`
}

func sortedVehicles(vs store.Vehicles) []models.VehiclePosition {
	out := make([]models.VehiclePosition, 0, len(vs))
	for _, v := range vs {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Feed != out[j].Feed {
			return out[i].Feed < out[j].Feed
		}
		return out[i].VehicleID < out[j].VehicleID
	})
	return out
}

// filterVehicles applies the common list filters: feed, jrn and fresh.
func (api *RestAPI) filterVehicles(r *http.Request, vs []models.VehiclePosition) ([]models.VehiclePosition, bool) {
	q := r.URL.Query()

	if name := q.Get("feed"); name != "" {
		out := vs[:0:0]
		for _, v := range vs {
			if v.Feed == name {
				out = append(out, v)
			}
		}
		vs = out
	}
	if raw := q.Get("jrn"); raw != "" {
		jrn, err := strconv.Atoi(raw)
		if err != nil {
			return nil, false
		}
		out := vs[:0:0]
		for _, v := range vs {
			if v.HasJourney(jrn) {
				out = append(out, v)
			}
		}
		vs = out
	}
	if fresh, _ := strconv.ParseBool(q.Get("fresh")); fresh {
		vs = api.staleness.Fresh(vs, api.Clock.Now())
	}
	return vs, true
}

func (api *RestAPI) vehiclesHandler(w http.ResponseWriter, r *http.Request) {
	vs, ok := api.filterVehicles(r, sortedVehicles(api.Vehicles.Get()))
	if !ok {
		api.badRequest(w, r, "jrn must be an integer")
		return
	}
	api.sendResponse(w, r, models.NewListResponse(vs, api.Clock))
}

func (api *RestAPI) vehicleID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		api.badRequest(w, r, "vehicle id must be an integer")
		return 0, false
	}
	return id, true
}

func (api *RestAPI) vehicleHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := api.vehicleID(w, r)
	if !ok {
		return
	}
	v, ok := api.Vehicles.Vehicle(id)
	if !ok {
		api.sendNotFound(w, r)
		return
	}
	api.sendResponse(w, r, models.NewEntryResponse(v, api.Clock))
}

func (api *RestAPI) vehicleTrailHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := api.vehicleID(w, r)
	if !ok {
		return
	}
	if api.Trails == nil {
		api.sendNotFound(w, r)
		return
	}
	points, ok := api.Trails.Points(id)
	if !ok {
		api.sendNotFound(w, r)
		return
	}
	trail := VehicleTrail{VehicleID: id, Points: points}
	trail.Polyline, _ = api.Trails.Polyline(id)
	api.sendResponse(w, r, models.NewEntryResponse(trail, api.Clock))
}

func parseFloats(r *http.Request, names ...string) ([]float64, bool) {
	out := make([]float64, len(names))
	for i, name := range names {
		f, err := strconv.ParseFloat(r.URL.Query().Get(name), 64)
		if err != nil {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func (api *RestAPI) vehiclesWithinHandler(w http.ResponseWriter, r *http.Request) {
	f, ok := parseFloats(r, "minLat", "minLon", "maxLat", "maxLon")
	if !ok {
		api.badRequest(w, r, "minLat, minLon, maxLat and maxLon are required numbers")
		return
	}
	bounds := utils.CoordinateBounds{MinLat: f[0], MinLon: f[1], MaxLat: f[2], MaxLon: f[3]}
	if !bounds.Valid() {
		api.badRequest(w, r, "invalid bounding box")
		return
	}
	vs, ok := api.filterVehicles(r, api.Spatial.Within(bounds))
	if !ok {
		api.badRequest(w, r, "jrn must be an integer")
		return
	}
	api.sendResponse(w, r, models.NewListResponse(vs, api.Clock))
}

func (api *RestAPI) vehiclesNearHandler(w http.ResponseWriter, r *http.Request) {
	f, ok := parseFloats(r, "lat", "lon")
	if !ok {
		api.badRequest(w, r, "lat and lon are required numbers")
		return
	}
	if !utils.ValidCoordinate(f[0], f[1]) || math.Abs(f[0]) == 90 {
		api.badRequest(w, r, "lat must be within (-90, 90) and lon within [-180, 180]")
		return
	}
	radius := defaultNearRadius
	if raw := r.URL.Query().Get("radius"); raw != "" {
		var err error
		radius, err = strconv.ParseFloat(raw, 64)
		if err != nil || radius <= 0 || radius > maxNearRadius {
			api.badRequest(w, r, "radius must be a positive number of meters up to 50000")
			return
		}
	}
	vs, ok := api.filterVehicles(r, api.Spatial.Near(f[0], f[1], radius))
	if !ok {
		api.badRequest(w, r, "jrn must be an integer")
		return
	}
	api.sendResponse(w, r, models.NewListResponse(vs, api.Clock))
}

// retainVehiclesHandler clears the snapshot, or with keepJourney keeps only
// the vehicles running that journey.
func (api *RestAPI) retainVehiclesHandler(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("keepJourney")
	if raw == "" {
		api.Vehicles.Clear()
	} else {
		jrn, err := strconv.Atoi(raw)
		if err != nil {
			api.badRequest(w, r, "keepJourney must be an integer")
			return
		}
		api.Vehicles.RetainJourney(jrn)
	}
	api.sendResponse(w, r, models.NewListResponse(sortedVehicles(api.Vehicles.Get()), api.Clock))
}
