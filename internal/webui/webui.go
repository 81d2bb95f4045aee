// Package webui serves developer pages next to the API.
package webui

import (
	"net/http"

	"tracker.junat.live/internal/app"
)

type WebUI struct {
	*app.Application
}

func (webUI *WebUI) SetWebUIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /debug", webUI.debugIndexHandler)
}
