// Package restapi serves the tracking HTTP API: train subscriptions, the
// live vehicle snapshot and its derived views, and service status.
package restapi

import (
	"time"

	"tracker.junat.live/internal/app"
)

type RestAPI struct {
	*app.Application
	rateLimiter *RateLimitMiddleware
	staleness   *StaleDetector
}

func NewRestAPI(application *app.Application) *RestAPI {
	return &RestAPI{
		Application: application,
		rateLimiter: NewRateLimitMiddleware(application.Config.RateLimit, time.Second, application.IsExemptClient, application.Clock),
		staleness:   NewStaleDetector(),
	}
}

// Shutdown stops background work owned by the API. It does not close the
// Application.
func (api *RestAPI) Shutdown() {
	api.rateLimiter.Stop()
}
