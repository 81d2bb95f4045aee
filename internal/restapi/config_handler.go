package restapi

import (
	"net/http"

	"tracker.junat.live/internal/buildinfo"
	"tracker.junat.live/internal/feed"
	"tracker.junat.live/internal/models"
)

func (api *RestAPI) configHandler(w http.ResponseWriter, r *http.Request) {
	cfg := api.Config
	info := models.ServiceInfo{
		ID:          "junat-tracker",
		Name:        "junat.live vehicle tracker",
		Version:     buildinfo.Version,
		Revision:    buildinfo.ShortRevision(),
		Env:         string(cfg.Env),
		TrailLength: cfg.TrailLength,
		Feeds: []models.FeedInfo{
			{Name: string(feed.Digitraffic), BrokerURL: cfg.Digitraffic.BrokerURL, Enabled: cfg.Digitraffic.Enabled},
			{Name: string(feed.HSL), BrokerURL: cfg.HSL.BrokerURL, Enabled: cfg.HSL.Enabled},
		},
	}
	api.sendResponse(w, r, models.NewEntryResponse(info, api.Clock))
}
