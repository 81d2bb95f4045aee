package webui

import (
	"embed"
	"html/template"
	"net/http"
	"sort"

	"github.com/davecgh/go-spew/spew"

	"tracker.junat.live/internal/appconf"
	"tracker.junat.live/internal/logging"
)

//go:embed debug_index.html
var templateFS embed.FS

var debugTemplate = template.Must(template.ParseFS(templateFS, "debug_index.html"))

var dataTypes = []string{"vehicles", "tracked", "trains", "status"}

type debugData struct {
	Title     string
	Pre       string
	DataTypes []string
}

func (webUI *WebUI) writeDebugData(w http.ResponseWriter, r *http.Request, title string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := debugTemplate.Execute(w, debugData{
		Title:     title,
		Pre:       spew.Sdump(data),
		DataTypes: dataTypes,
	})
	if err != nil {
		logging.LogError(logging.FromContext(r.Context()), "failed to execute debug template", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// debugIndexHandler dumps live state. It is not served in production.
func (webUI *WebUI) debugIndexHandler(w http.ResponseWriter, r *http.Request) {
	if webUI.Config.Env == appconf.Production {
		http.NotFound(w, r)
		return
	}

	var (
		data  any
		title string
	)
	switch r.URL.Query().Get("dataType") {
	case "vehicles":
		vehicles := webUI.Vehicles.Get()
		ids := make([]int, 0, len(vehicles))
		for id := range vehicles {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		list := make([]any, 0, len(ids))
		for _, id := range ids {
			list = append(list, vehicles[id])
		}
		data, title = list, "Vehicles"
	case "tracked":
		data, title = webUI.TrackedTrains.Get(), "Tracked trains"
	case "trains":
		data, title = webUI.Coordinator.Trains(), "Trains of interest"
	case "status":
		data, title = webUI.Coordinator.Status(), "Feed status"
	default:
		data = map[string]any{"error": "Please use one of the following: vehicles, tracked, trains, status."}
		title = "Choose a data type"
	}

	webUI.writeDebugData(w, r, title, data)
}
