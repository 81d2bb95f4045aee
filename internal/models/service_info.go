package models

// FeedInfo describes one configured position feed.
type FeedInfo struct {
	Name      string `json:"name"`
	BrokerURL string `json:"brokerUrl"`
	Enabled   bool   `json:"enabled"`
}

// ServiceInfo is the entry returned by the config endpoint.
type ServiceInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Version     string     `json:"version"`
	Revision    string     `json:"revision,omitempty"`
	Env         string     `json:"env"`
	TrailLength int        `json:"trailLength"`
	Feeds       []FeedInfo `json:"feeds"`
}
