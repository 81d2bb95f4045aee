package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"tracker.junat.live/internal/app"
	"tracker.junat.live/internal/appconf"
	"tracker.junat.live/internal/clock"
	"tracker.junat.live/internal/feed"
	"tracker.junat.live/internal/logging"
	"tracker.junat.live/internal/metrics"
	"tracker.junat.live/internal/mqttconn"
	"tracker.junat.live/internal/restapi"
	"tracker.junat.live/internal/spatial"
	"tracker.junat.live/internal/store"
	"tracker.junat.live/internal/trackdb"
	"tracker.junat.live/internal/tracking"
	"tracker.junat.live/internal/trail"
	"tracker.junat.live/internal/webui"
)

const (
	recordRetentionDays = 3
	dbStatsInterval     = 15 * time.Second
	shutdownTimeout     = 10 * time.Second
)

// BuildApplication wires the stores, feeds and observers. A nil dial uses
// the MQTT client.
func BuildApplication(ctx context.Context, cfg appconf.Config, dial mqttconn.Dialer, logOutput io.Writer) (*app.Application, error) {
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat, logOutput)
	c := clock.RealClock{}
	m := metrics.NewWithLogger(logger)

	vehicles := store.NewVehicleStore()
	tracked := store.NewTrackedTrainStore()

	coreApp := &app.Application{
		Config:        cfg,
		Logger:        logger,
		Clock:         c,
		Metrics:       m,
		Vehicles:      vehicles,
		TrackedTrains: tracked,
	}

	if cfg.DatabasePath != "" {
		if err := openTrackDB(ctx, coreApp); err != nil {
			m.Shutdown()
			return nil, err
		}
	}

	coreApp.Digitraffic = feed.NewDigitrafficFeed(vehicles, tracked, c)
	coreApp.HSL = feed.NewHSLFeed(vehicles, tracked, c, feed.HSLOptions{HameenlinnaAsTampere: cfg.HameenlinnaAsTampere})

	var trackers []*tracking.Tracker
	if cfg.Digitraffic.Enabled {
		trackers = append(trackers, tracking.NewTracker(coreApp.Digitraffic, dial, connOptions(cfg.Digitraffic), m, logger))
	}
	if cfg.HSL.Enabled {
		trackers = append(trackers, tracking.NewTracker(coreApp.HSL, dial, connOptions(cfg.HSL), m, logger))
	}
	coreApp.Coordinator = tracking.NewCoordinator(trackers...)

	coreApp.Spatial = spatial.NewIndex(vehicles)
	coreApp.Trails = trail.NewRecorder(vehicles, cfg.TrailLength)
	coreApp.ObserveStores()

	logging.LogOperation(logger, "application_built",
		slog.String("env", string(cfg.Env)),
		slog.Int("feeds", len(trackers)),
		slog.Bool("persistence", coreApp.TrackDB != nil))
	return coreApp, nil
}

func openTrackDB(ctx context.Context, coreApp *app.Application) error {
	cfg := coreApp.Config
	client, err := trackdb.NewClient(ctx, trackdb.Config{DBPath: cfg.DatabasePath, Env: cfg.Env})
	if err != nil {
		return fmt.Errorf("failed to open tracked train database: %w", err)
	}

	cutoff := clock.LocalDate(coreApp.Clock.Now().AddDate(0, 0, -recordRetentionDays))
	if removed, err := client.DeleteBefore(ctx, cutoff); err != nil {
		logging.LogError(coreApp.Logger, "failed to prune tracked trains", err)
	} else if removed > 0 {
		logging.LogOperation(coreApp.Logger, "tracked_trains_pruned", slog.Int64("removed", removed))
	}

	journal, err := trackdb.Restore(ctx, client, coreApp.TrackedTrains, coreApp.Clock, coreApp.Logger)
	if err != nil {
		logging.SafeCloseWithLogging(client, coreApp.Logger, "trackdb")
		return fmt.Errorf("failed to restore tracked trains: %w", err)
	}

	coreApp.TrackDB = client
	coreApp.Journal = journal
	coreApp.Metrics.StartDBStatsCollector(client.DB, dbStatsInterval)
	return nil
}

func connOptions(f appconf.FeedConfig) mqttconn.Options {
	return mqttconn.Options{
		BrokerURL:      f.BrokerURL,
		ClientIDPrefix: f.ClientIDPrefix,
		KeepAlive:      f.KeepAlive(),
		ConnectTimeout: f.ConnectTimeout(),
	}
}

// CreateServer builds the HTTP server. The caller must Shutdown the
// returned API.
func CreateServer(coreApp *app.Application, cfg appconf.Config) (*http.Server, *restapi.RestAPI) {
	api := restapi.NewRestAPI(coreApp)

	mux := http.NewServeMux()
	api.SetRoutes(mux)
	(&webui.WebUI{Application: coreApp}).SetWebUIRoutes(mux)

	srv := &http.Server{
		Addr:         net.JoinHostPort("", strconv.Itoa(cfg.Port)),
		Handler:      api.Handler(mux),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10*time.Second + cfg.UnsubscribeTimeout(),
	}
	return srv, api
}

// Run serves until ctx is done, then shuts down the server and tears down
// the application.
func Run(ctx context.Context, srv *http.Server, coreApp *app.Application, api *restapi.RestAPI) error {
	logger := coreApp.Logger

	serveErr := make(chan error, 1)
	go func() {
		logging.LogOperation(logger, "http_server_starting", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	coreApp.Coordinator.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.LogError(logger, "http server shutdown failed", err)
		runErr = errors.Join(runErr, err)
	}
	api.Shutdown()
	coreApp.Close()

	logging.LogOperation(logger, "shutdown_complete")
	return runErr
}
