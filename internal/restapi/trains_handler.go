package restapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"tracker.junat.live/internal/feed"
	"tracker.junat.live/internal/models"
	"tracker.junat.live/internal/tracking"
)

const maxTrainsBodyBytes = 1 << 20

// TrainTracking tells which feeds can follow a train and on which topic.
type TrainTracking struct {
	TrainNumber  int               `json:"trainNumber"`
	CanBeTracked bool              `json:"canBeTracked"`
	Topics       map[string]string `json:"topics"`
}

func (api *RestAPI) setTrainsHandler(w http.ResponseWriter, r *http.Request) {
	var trains []models.TrainOfInterest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTrainsBodyBytes))
	if err := dec.Decode(&trains); err != nil {
		api.badRequest(w, r, "body must be a JSON array of trains")
		return
	}

	if err := api.Coordinator.SetTrains(trains); err != nil {
		if errors.Is(err, tracking.ErrClosed) {
			api.sendError(w, r, http.StatusServiceUnavailable, "tracker is shutting down")
			return
		}
		// a failed dial is retried by the next update; report it and carry on
		api.sendError(w, r, http.StatusBadGateway, err.Error())
		return
	}

	api.sendResponse(w, r, models.NewListResponse(api.Coordinator.Status(), api.Clock))
}

func (api *RestAPI) trainsHandler(w http.ResponseWriter, r *http.Request) {
	api.sendResponse(w, r, models.NewListResponse(api.Coordinator.Trains(), api.Clock))
}

func (api *RestAPI) trainTrackingHandler(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		api.badRequest(w, r, "train number must be an integer")
		return
	}
	train, ok := api.Coordinator.Train(number)
	if !ok {
		api.sendNotFound(w, r)
		return
	}

	info := TrainTracking{TrainNumber: number, Topics: map[string]string{}}
	if api.HSL != nil {
		info.CanBeTracked = api.HSL.CanBeTracked(train)
	}
	for _, name := range []feed.Name{feed.Digitraffic, feed.HSL} {
		t, ok := api.Coordinator.Tracker(name)
		if !ok {
			continue
		}
		if topic, ok := t.ResolveTopic(train); ok {
			info.Topics[string(name)] = topic
		}
	}

	api.sendResponse(w, r, models.NewEntryResponse(info, api.Clock))
}

// unsubscribeAllHandler waits for the brokers to acknowledge every
// unsubscribe, up to the configured timeout.
func (api *RestAPI) unsubscribeAllHandler(w http.ResponseWriter, r *http.Request) {
	done := make(chan struct{})
	api.Coordinator.UnsubscribeAll(func() { close(done) })

	timeout := api.Config.UnsubscribeTimeout()
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-done:
		api.sendResponse(w, r, models.NewListResponse(api.Coordinator.Status(), api.Clock))
	case <-expired:
		api.sendError(w, r, http.StatusGatewayTimeout, "unsubscribe not acknowledged in time")
	case <-r.Context().Done():
	}
}
