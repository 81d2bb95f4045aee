package restapi

import (
	"encoding/json"
	"net/http"

	"tracker.junat.live/internal/logging"
)

type HealthResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// healthHandler reports 503 when the coordinator is missing or the
// departure-date database stopped answering. Feed connection errors do not
// fail the check; they show up in /api/status instead.
func (api *RestAPI) healthHandler(w http.ResponseWriter, r *http.Request) {
	setJSONResponseType(w)

	if api.Application == nil || api.Coordinator == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "unavailable", Detail: "tracker not initialized"})
		return
	}

	if api.TrackDB != nil {
		if err := api.TrackDB.DB.PingContext(r.Context()); err != nil {
			logging.LogError(api.Logger, "trackdb ping failed", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(HealthResponse{Status: "unavailable", Detail: "database connection failed"})
			return
		}
	}

	_ = json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}
