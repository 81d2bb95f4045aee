package restapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tracker.junat.live/internal/models"
)

func TestSendResponse(t *testing.T) {
	env := createTestApi(t)

	w := httptest.NewRecorder()
	env.api.sendResponse(w, httptest.NewRequest(http.MethodGet, "/test", nil),
		models.NewOKResponse(map[string]string{"test": "data"}, env.clock))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var decoded models.ResponseModel
	require.NoError(t, json.NewDecoder(w.Body).Decode(&decoded))
	assert.Equal(t, "OK", decoded.Text)
	assert.Equal(t, models.ResponseVersion, decoded.Version)
	assert.Equal(t, env.clock.NowUnixMilli(), decoded.CurrentTime)
}

func TestErrorResponses(t *testing.T) {
	env := createTestApi(t)
	r := httptest.NewRequest(http.MethodGet, "/test", nil)

	tests := []struct {
		name string
		send func(w http.ResponseWriter)
		code int
		text string
	}{
		{"not found", func(w http.ResponseWriter) { env.api.sendNotFound(w, r) }, http.StatusNotFound, "resource not found"},
		{"bad request", func(w http.ResponseWriter) { env.api.badRequest(w, r, "lat is required") }, http.StatusBadRequest, "lat is required"},
		{"server error", func(w http.ResponseWriter) { env.api.serverErrorResponse(w, r, errors.New("disk full")) }, http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.send(w)

			assert.Equal(t, tt.code, w.Code)
			var decoded models.ResponseModel
			require.NoError(t, json.NewDecoder(w.Body).Decode(&decoded))
			assert.Equal(t, tt.code, decoded.Code)
			assert.Equal(t, tt.text, decoded.Text)
			assert.Nil(t, decoded.Data)
		})
	}
}
