package app

import (
	"log/slog"

	"tracker.junat.live/internal/appconf"
	"tracker.junat.live/internal/clock"
	"tracker.junat.live/internal/feed"
	"tracker.junat.live/internal/logging"
	"tracker.junat.live/internal/metrics"
	"tracker.junat.live/internal/spatial"
	"tracker.junat.live/internal/store"
	"tracker.junat.live/internal/trackdb"
	"tracker.junat.live/internal/tracking"
	"tracker.junat.live/internal/trail"
)

// Application holds the dependencies shared by the HTTP handlers, helpers
// and middleware: the stores, the feeds and the coordinator driving them,
// and the observers built on top of the vehicle store.
type Application struct {
	Config  appconf.Config
	Logger  *slog.Logger
	Clock   clock.Clock
	Metrics *metrics.Metrics

	Vehicles      *store.VehicleStore
	TrackedTrains *store.TrackedTrainStore

	Digitraffic *feed.DigitrafficFeed
	HSL         *feed.HSLFeed
	Coordinator *tracking.Coordinator

	Spatial *spatial.Index
	Trails  *trail.Recorder

	// TrackDB and Journal are nil when persistence is disabled
	TrackDB *trackdb.Client
	Journal *trackdb.Journal

	unobserve []func()
}

// ObserveStores keeps the store gauges current.
func (app *Application) ObserveStores() {
	if app.Metrics == nil {
		return
	}
	app.Metrics.TrackedVehicles.Set(float64(len(app.Vehicles.Get())))
	app.Metrics.TrackedTrains.Set(float64(len(app.TrackedTrains.Get())))

	app.unobserve = append(app.unobserve,
		store.SubscribeWithSelector(app.Vehicles.Store,
			func(v store.Vehicles) int { return len(v) },
			store.Equal[int],
			func(n int) { app.Metrics.TrackedVehicles.Set(float64(n)) }),
		store.SubscribeWithSelector(app.TrackedTrains.Store,
			func(t store.TrackedTrains) int { return len(t) },
			store.Equal[int],
			func(n int) { app.Metrics.TrackedTrains.Set(float64(n)) }),
	)
}

// Close tears everything down in dependency order: connections first, then
// observers, then storage.
func (app *Application) Close() {
	if app.Coordinator != nil {
		app.Coordinator.Close()
	}
	for _, unsubscribe := range app.unobserve {
		unsubscribe()
	}
	app.unobserve = nil
	if app.Spatial != nil {
		app.Spatial.Close()
	}
	if app.Trails != nil {
		app.Trails.Close()
	}
	if app.Journal != nil {
		app.Journal.Close()
	}
	if app.Metrics != nil {
		app.Metrics.Shutdown()
	}
	if app.TrackDB != nil {
		logging.SafeCloseWithLogging(app.TrackDB, app.Logger, "trackdb")
		app.TrackDB = nil
	}
}
