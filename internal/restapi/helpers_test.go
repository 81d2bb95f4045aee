package restapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"tracker.junat.live/internal/app"
	"tracker.junat.live/internal/appconf"
	"tracker.junat.live/internal/clock"
	"tracker.junat.live/internal/feed"
	"tracker.junat.live/internal/metrics"
	"tracker.junat.live/internal/models"
	"tracker.junat.live/internal/mqttconn"
	"tracker.junat.live/internal/spatial"
	"tracker.junat.live/internal/store"
	"tracker.junat.live/internal/tracking"
	"tracker.junat.live/internal/trail"
)

type testEnv struct {
	api    *RestAPI
	clock  *clock.MockClock
	dt     *mqttconn.MockDialer
	hsl    *mqttconn.MockDialer
	server *httptest.Server
}

func testConfig() appconf.Config {
	cfg := appconf.Default()
	cfg.Env = appconf.Test
	cfg.DatabasePath = ""
	cfg.UnsubscribeTimeoutSeconds = 1
	cfg.ExemptClients = []string{"exempt"}
	return cfg
}

func createTestApi(t *testing.T) *testEnv {
	return createTestApiWithConfig(t, testConfig())
}

func createTestApiWithConfig(t *testing.T, cfg appconf.Config) *testEnv {
	t.Helper()

	c := clock.NewMockClock(time.Date(2023, 3, 11, 10, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	vehicles := store.NewVehicleStore()
	tracked := store.NewTrackedTrainStore()

	dtFeed := feed.NewDigitrafficFeed(vehicles, tracked, c)
	hslFeed := feed.NewHSLFeed(vehicles, tracked, c, feed.HSLOptions{})
	dt := &mqttconn.MockDialer{}
	hsl := &mqttconn.MockDialer{}

	application := &app.Application{
		Config:        cfg,
		Logger:        logger,
		Clock:         c,
		Metrics:       m,
		Vehicles:      vehicles,
		TrackedTrains: tracked,
		Digitraffic:   dtFeed,
		HSL:           hslFeed,
		Coordinator: tracking.NewCoordinator(
			tracking.NewTracker(dtFeed, dt.Dial, mqttconn.Options{BrokerURL: cfg.Digitraffic.BrokerURL}, m, logger),
			tracking.NewTracker(hslFeed, hsl.Dial, mqttconn.Options{BrokerURL: cfg.HSL.BrokerURL}, m, logger),
		),
		Spatial: spatial.NewIndex(vehicles),
		Trails:  trail.NewRecorder(vehicles, cfg.TrailLength),
	}
	application.ObserveStores()

	api := NewRestAPI(application)
	mux := http.NewServeMux()
	api.SetRoutes(mux)
	server := httptest.NewServer(api.Handler(mux))

	t.Cleanup(func() {
		server.Close()
		api.Shutdown()
		application.Close()
	})
	return &testEnv{api: api, clock: c, dt: dt, hsl: hsl, server: server}
}

// do sends a request and decodes the response envelope.
func (env *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, models.ResponseModel) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, env.server.URL+path, reader)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var model models.ResponseModel
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&model))
	return resp, model
}

func listOf(t *testing.T, model models.ResponseModel) []any {
	t.Helper()
	data, ok := model.Data.(map[string]any)
	require.True(t, ok, "data is %T", model.Data)
	list, ok := data["list"].([]any)
	require.True(t, ok, "list is %T", data["list"])
	return list
}

func entryOf(t *testing.T, model models.ResponseModel) map[string]any {
	t.Helper()
	data, ok := model.Data.(map[string]any)
	require.True(t, ok, "data is %T", model.Data)
	entry, ok := data["entry"].(map[string]any)
	require.True(t, ok, "entry is %T", data["entry"])
	return entry
}

func commuterTrain(number int, line, station, at string) models.TrainOfInterest {
	ts, err := time.Parse(time.RFC3339, at)
	if err != nil {
		panic(err)
	}
	return models.TrainOfInterest{
		TrainNumber:    number,
		CommuterLineID: line,
		TimetableRows: []*models.TimetableRow{
			{Type: models.Departure, ScheduledTime: ts, Station: models.Station{ShortCode: station}},
		},
	}
}

func digitrafficPayload(number int, lng, lat float64) []byte {
	data, _ := json.Marshal(map[string]any{
		"trainNumber":   number,
		"departureDate": "2023-03-11",
		"timestamp":     "2023-03-11T10:05:00.000Z",
		"location":      map[string]any{"type": "Point", "coordinates": []float64{lng, lat}},
		"speed":         54,
	})
	return data
}
