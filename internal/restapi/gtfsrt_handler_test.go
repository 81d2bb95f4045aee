package restapi

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestGtfsRealtimeHandler_Protobuf(t *testing.T) {
	env := createTestApi(t)
	feedTrain(t, env, [2]float64{24.94, 60.17})

	resp, body := get(t, env.server.URL+"/api/gtfs-rt/vehicle-positions")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-protobuf", resp.Header.Get("Content-Type"))

	var msg gtfs.FeedMessage
	require.NoError(t, proto.Unmarshal(body, &msg))
	require.Len(t, msg.GetEntity(), 1)

	entity := msg.GetEntity()[0]
	assert.Equal(t, "digitraffic:123", entity.GetId())
	assert.Equal(t, "20230311:123", entity.GetVehicle().GetTrip().GetTripId())
	assert.InDelta(t, 60.17, entity.GetVehicle().GetPosition().GetLatitude(), 1e-5)
}

func TestGtfsRealtimeHandler_JSON(t *testing.T) {
	env := createTestApi(t)

	resp, body := get(t, env.server.URL+"/api/gtfs-rt/vehicle-positions?format=json")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	header := decoded["header"].(map[string]any)
	assert.Equal(t, "2.0", header["gtfsRealtimeVersion"])

	resp, _ = get(t, env.server.URL+"/api/gtfs-rt/vehicle-positions?format=xml")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
