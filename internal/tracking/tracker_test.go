package tracking

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tracker.junat.live/internal/clock"
	"tracker.junat.live/internal/feed"
	"tracker.junat.live/internal/metrics"
	"tracker.junat.live/internal/models"
	"tracker.junat.live/internal/mqttconn"
	"tracker.junat.live/internal/store"
)

func train(number int, line, station, at string) models.TrainOfInterest {
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

type fixture struct {
	tracker  *Tracker
	dialer   *mqttconn.MockDialer
	vehicles *store.VehicleStore
	tracked  *store.TrackedTrainStore
	metrics  *metrics.Metrics
}

func newFixture() *fixture {
	vehicles := store.NewVehicleStore()
	tracked := store.NewTrackedTrainStore()
	c := clock.NewMockClock(time.Date(2023, 3, 11, 10, 0, 0, 0, time.UTC))
	m := metrics.New()
	d := &mqttconn.MockDialer{}
	f := feed.NewDigitrafficFeed(vehicles, tracked, c)
	return &fixture{
		tracker:  NewTracker(f, d.Dial, mqttconn.Options{BrokerURL: "wss://rata.digitraffic.fi:443/mqtt"}, m, nil),
		dialer:   d,
		vehicles: vehicles,
		tracked:  tracked,
		metrics:  m,
	}
}

func (fx *fixture) connect(t *testing.T) *mqttconn.MockConnection {
	t.Helper()
	conn, h := fx.dialer.Last()
	h.OnConnect()
	require.Equal(t, Connected, fx.tracker.State())
	return conn
}

var (
	train123 = train(123, "", "HKI", "2023-03-11T10:01:00Z")
	train456 = train(456, "", "TPE", "2023-03-11T12:00:00Z")
	train789 = train(789, "", "OL", "2023-03-11T14:00:00Z")
	noRows   = models.TrainOfInterest{TrainNumber: 1}
)

func TestTracker_ConnectsLazily(t *testing.T) {
	fx := newFixture()

	require.NoError(t, fx.tracker.SetTrains(nil))
	assert.Equal(t, 0, fx.dialer.Dials())
	assert.Equal(t, Disconnected, fx.tracker.State())

	require.NoError(t, fx.tracker.SetTrains([]models.TrainOfInterest{train123}))
	assert.Equal(t, 1, fx.dialer.Dials())
	assert.Equal(t, Connecting, fx.tracker.State())
	assert.Equal(t, "wss://rata.digitraffic.fi:443/mqtt", fx.dialer.Options(0).BrokerURL)

	require.NoError(t, fx.tracker.SetTrains([]models.TrainOfInterest{train123, train456}))
	assert.Equal(t, 1, fx.dialer.Dials(), "an open connection is reused")

	conn, _ := fx.dialer.Last()
	assert.Empty(t, conn.SubscribeCalls(), "nothing is subscribed before connect")
}

func TestTracker_SubscribesDesiredTopicsOnConnect(t *testing.T) {
	fx := newFixture()
	require.NoError(t, fx.tracker.SetTrains([]models.TrainOfInterest{train456, noRows, train123}))

	conn := fx.connect(t)

	assert.Equal(t, [][]string{{
		"train-locations/2023-03-11/123/#",
		"train-locations/2023-03-11/456/#",
	}}, conn.SubscribeCalls())
	assert.Equal(t, []string{
		"train-locations/2023-03-11/123/#",
		"train-locations/2023-03-11/456/#",
	}, fx.tracker.Topics())
	assert.Equal(t, 2.0, testutil.ToFloat64(fx.metrics.SubscribedTopics.WithLabelValues("digitraffic")))
}

func TestTracker_SubscribesOnlyNewTopics(t *testing.T) {
	fx := newFixture()
	require.NoError(t, fx.tracker.SetTrains([]models.TrainOfInterest{train123}))
	conn := fx.connect(t)

	require.NoError(t, fx.tracker.SetTrains([]models.TrainOfInterest{train123, train456}))
	require.NoError(t, fx.tracker.SetTrains([]models.TrainOfInterest{train123, train456}))
	require.NoError(t, fx.tracker.SetTrains([]models.TrainOfInterest{train456, train789}))

	assert.Equal(t, [][]string{
		{"train-locations/2023-03-11/123/#"},
		{"train-locations/2023-03-11/456/#"},
		{"train-locations/2023-03-11/789/#"},
	}, conn.SubscribeCalls())
	assert.Len(t, fx.tracker.Topics(), 3, "subscriptions only grow")
	assert.Equal(t, 3.0, testutil.ToFloat64(fx.metrics.SubscribeCallsTotal.WithLabelValues("digitraffic")))
}

func TestTracker_ResubscribesEverythingOnReconnect(t *testing.T) {
	fx := newFixture()
	require.NoError(t, fx.tracker.SetTrains([]models.TrainOfInterest{train123}))
	conn, h := fx.dialer.Last()
	h.OnConnect()
	require.NoError(t, fx.tracker.SetTrains([]models.TrainOfInterest{train456}))

	h.OnError(errors.New("connection lost"))
	assert.Equal(t, Errored, fx.tracker.State())
	h.OnConnect()

	calls := conn.SubscribeCalls()
	require.Len(t, calls, 3)
	assert.Equal(t, []string{
		"train-locations/2023-03-11/123/#",
		"train-locations/2023-03-11/456/#",
	}, calls[2])
	assert.Equal(t, 1, fx.dialer.Dials(), "the client reconnects by itself")
}

func TestTracker_RoutesMessagesThroughTopicMap(t *testing.T) {
	fx := newFixture()
	require.NoError(t, fx.tracker.SetTrains([]models.TrainOfInterest{train123}))
	_, h := fx.dialer.Last()
	h.OnConnect()

	payload := []byte(`{"trainNumber":123,"departureDate":"2023-03-11","location":{"type":"Point","coordinates":[24.94,60.17]},"speed":80}`)
	h.OnMessage("train-locations/2023-03-11/123", payload)

	v, ok := fx.vehicles.Vehicle(123)
	require.True(t, ok)
	require.NotNil(t, v.RouteShortName)
	assert.Equal(t, "123", *v.RouteShortName)
	assert.Equal(t, 80.0, v.SpeedKmh)
	assert.True(t, fx.tracked.Has(123))

	h.OnMessage("train-locations/2023-03-11/999", []byte(`{"trainNumber":999,"location":{"coordinates":[25,61]}}`))
	other, ok := fx.vehicles.Vehicle(999)
	require.True(t, ok)
	assert.Nil(t, other.RouteShortName)

	h.OnMessage("train-locations/2023-03-11/123", []byte(`garbage`))
	assert.Equal(t, 3.0, testutil.ToFloat64(fx.metrics.MessagesReceivedTotal.WithLabelValues("digitraffic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.MessagesDroppedTotal.WithLabelValues("digitraffic", "malformed_payload")))
	assert.Len(t, fx.vehicles.Get(), 2)
}

func TestTracker_UpdatesTrainForExistingTopic(t *testing.T) {
	fx := newFixture()
	require.NoError(t, fx.tracker.SetTrains([]models.TrainOfInterest{train123}))
	conn, h := fx.dialer.Last()
	h.OnConnect()

	commuter := train123
	commuter.CommuterLineID = "R"
	require.NoError(t, fx.tracker.SetTrains([]models.TrainOfInterest{commuter}))
	assert.Len(t, conn.SubscribeCalls(), 1)

	h.OnMessage("train-locations/2023-03-11/123", []byte(`{"trainNumber":123,"location":{"coordinates":[24.94,60.17]}}`))
	v, _ := fx.vehicles.Vehicle(123)
	require.NotNil(t, v.RouteShortName)
	assert.Equal(t, "R", *v.RouteShortName)
}

func TestTracker_UnsubscribeAllWithoutConnection(t *testing.T) {
	fx := newFixture()

	called := false
	fx.tracker.UnsubscribeAll(func() { called = true })
	assert.True(t, called, "callback runs before UnsubscribeAll returns")

	fx.tracker.UnsubscribeAll(nil)
}

func TestTracker_UnsubscribeAllWaitsForEveryAck(t *testing.T) {
	fx := newFixture()
	require.NoError(t, fx.tracker.SetTrains([]models.TrainOfInterest{train123, train456}))
	conn := fx.connect(t)

	done := make(chan struct{})
	fx.tracker.UnsubscribeAll(func() { close(done) })

	assert.ElementsMatch(t, []string{
		"train-locations/2023-03-11/123/#",
		"train-locations/2023-03-11/456/#",
	}, conn.Unsubscribed())
	assert.Empty(t, fx.tracker.Topics())

	select {
	case <-done:
		t.Fatal("callback ran before the broker acknowledged")
	default:
	}

	conn.AckAll(nil)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback never ran")
	}

	// a second call has nothing left to unsubscribe
	called := false
	fx.tracker.UnsubscribeAll(func() { called = true })
	assert.True(t, called)
	assert.Len(t, conn.Unsubscribed(), 2)
}

func TestTracker_UnsubscribeAllCountsFailedAcks(t *testing.T) {
	fx := newFixture()
	require.NoError(t, fx.tracker.SetTrains([]models.TrainOfInterest{train123}))
	conn := fx.connect(t)

	called := false
	fx.tracker.UnsubscribeAll(func() { called = true })
	conn.AckAll(errors.New("not connected"))

	assert.True(t, called)
}

func TestTracker_SetTrainsAfterUnsubscribeAllResubscribes(t *testing.T) {
	fx := newFixture()
	require.NoError(t, fx.tracker.SetTrains([]models.TrainOfInterest{train123}))
	conn := fx.connect(t)

	fx.tracker.UnsubscribeAll(nil)
	conn.AckAll(nil)
	require.NoError(t, fx.tracker.SetTrains([]models.TrainOfInterest{train123}))

	assert.Len(t, conn.SubscribeCalls(), 2)
}

func TestTracker_ErrorIsExposed(t *testing.T) {
	fx := newFixture()
	require.NoError(t, fx.tracker.SetTrains([]models.TrainOfInterest{train123}))
	_, h := fx.dialer.Last()

	h.OnError(errors.New("dial tcp: no route to host"))

	assert.EqualError(t, fx.tracker.Err(), "dial tcp: no route to host")
	status := fx.tracker.Status()
	assert.Equal(t, feed.Digitraffic, status.Feed)
	assert.Equal(t, "error", status.State)
	assert.Equal(t, "dial tcp: no route to host", status.LastError)
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.ConnectionErrorsTotal.WithLabelValues("digitraffic")))
}

func TestTracker_RedialsWhenFirstConnectFailed(t *testing.T) {
	fx := newFixture()
	require.NoError(t, fx.tracker.SetTrains([]models.TrainOfInterest{train123}))
	first, h := fx.dialer.Last()
	h.OnError(errors.New("connect refused"))

	require.NoError(t, fx.tracker.SetTrains([]models.TrainOfInterest{train123}))
	assert.Equal(t, 2, fx.dialer.Dials())
	assert.Equal(t, 1, first.Ended())
	assert.Equal(t, Connecting, fx.tracker.State())

	// events of the abandoned connection are ignored
	h.OnConnect()
	assert.Equal(t, Connecting, fx.tracker.State())
	assert.Empty(t, first.SubscribeCalls())
}

func TestTracker_DialFailure(t *testing.T) {
	fx := newFixture()
	fx.dialer.Fail = errors.New("bad url")

	err := fx.tracker.SetTrains([]models.TrainOfInterest{train123})

	assert.EqualError(t, err, "bad url")
	assert.Equal(t, Errored, fx.tracker.State())
	assert.EqualError(t, fx.tracker.Err(), "bad url")
}

func TestTracker_CloseEndsConnectionOnce(t *testing.T) {
	fx := newFixture()
	require.NoError(t, fx.tracker.SetTrains([]models.TrainOfInterest{train123}))
	conn, h := fx.dialer.Last()

	fx.tracker.Close()
	fx.tracker.Close()

	assert.Equal(t, 1, conn.Ended())
	assert.Equal(t, Disconnected, fx.tracker.State())
	assert.ErrorIs(t, fx.tracker.SetTrains([]models.TrainOfInterest{train456}), ErrClosed)

	h.OnConnect()
	assert.Equal(t, Disconnected, fx.tracker.State())
	assert.Empty(t, conn.SubscribeCalls())
}

func TestTracker_CloseWithoutConnection(t *testing.T) {
	fx := newFixture()
	fx.tracker.Close()
	assert.Equal(t, 0, fx.dialer.Dials())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "error", Errored.String())
}
