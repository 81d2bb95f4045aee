package restapi

import (
	"time"

	"tracker.junat.live/internal/models"
)

const defaultStaleThreshold = 5 * time.Minute

// StaleDetector decides whether a vehicle position is too old to show.
type StaleDetector struct {
	threshold time.Duration
}

func NewStaleDetector() *StaleDetector {
	return &StaleDetector{threshold: defaultStaleThreshold}
}

func (d *StaleDetector) WithThreshold(threshold time.Duration) *StaleDetector {
	d.threshold = threshold
	return d
}

// Check reports whether v is stale at now. A vehicle without a timestamp is
// always stale.
func (d *StaleDetector) Check(v models.VehiclePosition, now time.Time) bool {
	if v.Timestamp.IsZero() {
		return true
	}
	return d.Age(v, now) > d.threshold
}

func (d *StaleDetector) Age(v models.VehiclePosition, now time.Time) time.Duration {
	if v.Timestamp.IsZero() {
		return d.threshold + 1
	}
	return now.Sub(v.Timestamp)
}

// Fresh filters out stale vehicles, keeping order.
func (d *StaleDetector) Fresh(vs []models.VehiclePosition, now time.Time) []models.VehiclePosition {
	out := vs[:0:0]
	for _, v := range vs {
		if !d.Check(v, now) {
			out = append(out, v)
		}
	}
	return out
}
