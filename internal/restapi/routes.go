package restapi

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	noCache     = 0
	staticCache = 300
)

func (api *RestAPI) SetRoutes(mux *http.ServeMux) {
	live := func(h http.HandlerFunc) http.Handler { return CacheControlMiddleware(noCache, h) }

	mux.Handle("PUT /api/trains", live(api.setTrainsHandler))
	mux.Handle("GET /api/trains", live(api.trainsHandler))
	mux.Handle("GET /api/trains/{number}/tracking", live(api.trainTrackingHandler))
	mux.Handle("DELETE /api/subscriptions", live(api.unsubscribeAllHandler))

	mux.Handle("GET /api/vehicles", live(api.vehiclesHandler))
	mux.Handle("DELETE /api/vehicles", live(api.retainVehiclesHandler))
	mux.Handle("GET /api/vehicles/within", live(api.vehiclesWithinHandler))
	mux.Handle("GET /api/vehicles/near", live(api.vehiclesNearHandler))
	mux.Handle("GET /api/vehicles/{id}", live(api.vehicleHandler))
	mux.Handle("GET /api/vehicles/{id}/trail", live(api.vehicleTrailHandler))

	mux.Handle("GET /api/tracked-trains", live(api.trackedTrainsHandler))
	mux.Handle("GET /api/status", live(api.statusHandler))
	mux.Handle("GET /api/gtfs-rt/vehicle-positions", live(api.gtfsRealtimeHandler))
	mux.Handle("GET /api/config", CacheControlMiddleware(staticCache, http.HandlerFunc(api.configHandler)))

	mux.HandleFunc("GET /healthz", api.healthHandler)
	if api.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(api.Metrics.Registry, promhttp.HandlerOpts{}))
	}
}

// Handler wraps mux in the middleware chain. The metrics middleware sits
// directly on the mux so it sees the matched route pattern.
func (api *RestAPI) Handler(mux *http.ServeMux) http.Handler {
	var h http.Handler = mux
	h = MetricsHandler(api.Metrics)(h)
	h = api.rateLimiter.Handler()(h)
	h = gzhttp.GzipHandler(h)
	h = NewRequestLoggingMiddleware(api.Logger)(h)
	return RequestIDMiddleware(h)
}
