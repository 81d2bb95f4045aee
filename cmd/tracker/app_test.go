package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tracker.junat.live/internal/appconf"
	"tracker.junat.live/internal/models"
	"tracker.junat.live/internal/mqttconn"
)

func testConfig() appconf.Config {
	cfg := appconf.Default()
	cfg.Env = appconf.Test
	cfg.Port = 0
	cfg.DatabasePath = ":memory:"
	return cfg
}

func TestBuildApplicationWithMemoryDB(t *testing.T) {
	dialer := &mqttconn.MockDialer{}
	cfg := testConfig()

	coreApp, err := BuildApplication(context.Background(), cfg, dialer.Dial, io.Discard)
	require.NoError(t, err)
	defer coreApp.Close()

	assert.NotNil(t, coreApp.Logger)
	assert.Equal(t, cfg, coreApp.Config)
	assert.NotNil(t, coreApp.TrackDB)
	assert.NotNil(t, coreApp.Journal)
	assert.Len(t, coreApp.Coordinator.Status(), 2)
}

func TestBuildApplicationWithoutPersistence(t *testing.T) {
	cfg := testConfig()
	cfg.DatabasePath = ""
	cfg.HSL.Enabled = false

	coreApp, err := BuildApplication(context.Background(), cfg, (&mqttconn.MockDialer{}).Dial, io.Discard)
	require.NoError(t, err)
	defer coreApp.Close()

	assert.Nil(t, coreApp.TrackDB)
	status := coreApp.Coordinator.Status()
	require.Len(t, status, 1)
	assert.Equal(t, "digitraffic", string(status[0].Feed))
}

func TestBuildApplicationErrorHandling(t *testing.T) {
	cfg := testConfig()
	cfg.DatabasePath = "tracker.db"

	_, err := BuildApplication(context.Background(), cfg, nil, io.Discard)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open tracked train database")
}

func TestCreateServer(t *testing.T) {
	cfg := testConfig()
	cfg.Port = 8080
	coreApp, err := BuildApplication(context.Background(), cfg, (&mqttconn.MockDialer{}).Dial, io.Discard)
	require.NoError(t, err)
	defer coreApp.Close()

	srv, api := CreateServer(coreApp, cfg)
	defer api.Shutdown()

	assert.Equal(t, ":8080", srv.Addr)
	assert.Equal(t, time.Minute, srv.IdleTimeout)
	assert.Equal(t, 5*time.Second, srv.ReadTimeout)
	assert.Equal(t, 20*time.Second, srv.WriteTimeout)
}

func TestCreateServerHandlerResponds(t *testing.T) {
	dialer := &mqttconn.MockDialer{}
	cfg := testConfig()
	coreApp, err := BuildApplication(context.Background(), cfg, dialer.Dial, io.Discard)
	require.NoError(t, err)
	defer coreApp.Close()

	srv, api := CreateServer(coreApp, cfg)
	defer api.Shutdown()

	for _, path := range []string{"/healthz", "/api/status", "/debug?dataType=status", "/metrics"} {
		w := httptest.NewRecorder()
		srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	dialer := &mqttconn.MockDialer{}
	cfg := testConfig()
	coreApp, err := BuildApplication(context.Background(), cfg, dialer.Dial, io.Discard)
	require.NoError(t, err)

	require.NoError(t, coreApp.Coordinator.SetTrains([]models.TrainOfInterest{{
		TrainNumber: 123,
		TimetableRows: []*models.TimetableRow{{
			Type:          models.Departure,
			ScheduledTime: time.Date(2023, 3, 11, 10, 1, 0, 0, time.UTC),
			Station:       models.Station{ShortCode: "HKI"},
		}},
	}}))
	require.Equal(t, 1, dialer.Dials())

	srv, api := CreateServer(coreApp, cfg)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Run(ctx, srv, coreApp, api) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	conn, _ := dialer.Last()
	assert.Equal(t, 1, conn.Ended())
	assert.Equal(t, 0, coreApp.Vehicles.Observers())
}
