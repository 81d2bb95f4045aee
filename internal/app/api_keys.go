package app

import (
	"crypto/subtle"
	"net/http"
)

// ClientKey identifies the caller for rate limiting: the "key" query
// parameter, else the X-API-Key header.
func ClientKey(r *http.Request) string {
	if key := r.URL.Query().Get("key"); key != "" {
		return key
	}
	return r.Header.Get("X-API-Key")
}

// IsExemptClient reports whether key is listed in ExemptClients.
func (app *Application) IsExemptClient(key string) bool {
	if key == "" {
		return false
	}
	for _, exempt := range app.Config.ExemptClients {
		if subtle.ConstantTimeCompare([]byte(key), []byte(exempt)) == 1 {
			return true
		}
	}
	return false
}
