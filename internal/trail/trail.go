// Package trail remembers the last few distinct positions of every vehicle
// and serves them as Google encoded polylines.
package trail

import (
	"sync"

	"github.com/twpayne/go-polyline"

	"tracker.junat.live/internal/models"
	"tracker.junat.live/internal/store"
)

const DefaultLength = 20

// Recorder follows a VehicleStore. A vehicle's trail is dropped when the
// vehicle leaves the store.
type Recorder struct {
	length int

	mu     sync.RWMutex
	trails map[int][]models.LngLat

	unsubscribe func()
}

func NewRecorder(vehicles *store.VehicleStore, length int) *Recorder {
	if length <= 0 {
		length = DefaultLength
	}
	r := &Recorder{length: length, trails: make(map[int][]models.LngLat)}
	r.unsubscribe = vehicles.Subscribe(r.apply)
	r.apply(vehicles.Get())
	return r
}

func (r *Recorder) apply(next store.Vehicles) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id := range r.trails {
		if _, ok := next[id]; !ok {
			delete(r.trails, id)
		}
	}
	for id, v := range next {
		points := r.trails[id]
		if n := len(points); n > 0 && points[n-1] == v.Position {
			continue
		}
		points = append(points, v.Position)
		if len(points) > r.length {
			points = append([]models.LngLat(nil), points[len(points)-r.length:]...)
		}
		r.trails[id] = points
	}
}

// Points returns the trail of vehicle id, oldest first.
func (r *Recorder) Points(id int) ([]models.LngLat, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	points, ok := r.trails[id]
	if !ok {
		return nil, false
	}
	return append([]models.LngLat(nil), points...), true
}

// Polyline encodes the trail of vehicle id.
func (r *Recorder) Polyline(id int) (string, bool) {
	points, ok := r.Points(id)
	if !ok {
		return "", false
	}
	return Encode(points), true
}

// Encode turns positions into an encoded polyline (lat, lng order).
func Encode(points []models.LngLat) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Lat, p.Lng}
	}
	return string(polyline.EncodeCoords(coords))
}

func (r *Recorder) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
}
