package webui

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"tracker.junat.live/internal/app"
	"tracker.junat.live/internal/appconf"
	"tracker.junat.live/internal/models"
	"tracker.junat.live/internal/store"
	"tracker.junat.live/internal/tracking"
)

func newWebUI(env appconf.Environment) *WebUI {
	vehicles := store.NewVehicleStore()
	vehicles.Set(store.Vehicles{
		8: {VehicleID: 8, Feed: "hsl", Timestamp: time.Date(2023, 3, 11, 10, 0, 0, 0, time.UTC)},
	})
	tracked := store.NewTrackedTrainStore()
	tracked.InsertIfAbsent(123, models.TrackedTrain{DepartureDate: "2023-03-11"})

	return &WebUI{Application: &app.Application{
		Config:        appconf.Config{Env: env},
		Vehicles:      vehicles,
		TrackedTrains: tracked,
		Coordinator:   tracking.NewCoordinator(),
	}}
}

func TestDebugIndexHandler_ProductionReturns404(t *testing.T) {
	webUI := newWebUI(appconf.Production)

	rr := httptest.NewRecorder()
	webUI.debugIndexHandler(rr, httptest.NewRequest("GET", "/debug?dataType=vehicles", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDebugIndexHandler_DataTypes(t *testing.T) {
	webUI := newWebUI(appconf.Development)
	mux := http.NewServeMux()
	webUI.SetWebUIRoutes(mux)

	tests := []struct {
		dataType string
		contains string
	}{
		{"vehicles", "VehicleID: (int) 8"},
		{"tracked", "DepartureDate: (string) (len=10)"},
		{"trains", "Trains of interest"},
		{"status", "Feed status"},
		{"", "Choose a data type"},
	}

	for _, tt := range tests {
		t.Run(tt.dataType, func(t *testing.T) {
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, httptest.NewRequest("GET", "/debug?dataType="+tt.dataType, nil))

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
			assert.Contains(t, rr.Body.String(), tt.contains)
		})
	}
}
