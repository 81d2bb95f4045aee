// Package spatial keeps an R-tree of the current vehicle positions so the
// API can answer bounding-box and radius queries.
package spatial

import (
	"sort"
	"sync"

	"github.com/tidwall/rtree"

	"tracker.junat.live/internal/models"
	"tracker.junat.live/internal/store"
	"tracker.junat.live/internal/utils"
)

// Index mirrors a VehicleStore into an R-tree keyed by vehicle id.
// Points are stored as [lng, lat].
type Index struct {
	mu        sync.RWMutex
	tree      rtree.RTreeG[int]
	positions map[int]models.LngLat
	snapshot  store.Vehicles

	unsubscribe func()
}

// NewIndex builds an index from the store's current snapshot and keeps it
// up to date until Close.
func NewIndex(vehicles *store.VehicleStore) *Index {
	idx := &Index{positions: make(map[int]models.LngLat)}
	idx.unsubscribe = vehicles.Subscribe(idx.apply)
	idx.apply(vehicles.Get())
	return idx
}

func point(p models.LngLat) [2]float64 {
	return [2]float64{p.Lng, p.Lat}
}

// apply moves only the points that changed since the previous snapshot.
func (idx *Index) apply(next store.Vehicles) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for id, old := range idx.positions {
		v, ok := next[id]
		if ok && v.Position == old {
			continue
		}
		idx.tree.Delete(point(old), point(old), id)
		delete(idx.positions, id)
	}
	for id, v := range next {
		if _, ok := idx.positions[id]; ok {
			continue
		}
		idx.tree.Insert(point(v.Position), point(v.Position), id)
		idx.positions[id] = v.Position
	}
	idx.snapshot = next
}

// Len returns the number of indexed vehicles.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree.Len()
}

// Within returns the vehicles inside bounds, ordered by vehicle id.
func (idx *Index) Within(bounds utils.CoordinateBounds) []models.VehiclePosition {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []models.VehiclePosition
	idx.tree.Search(
		[2]float64{bounds.MinLon, bounds.MinLat},
		[2]float64{bounds.MaxLon, bounds.MaxLat},
		func(_, _ [2]float64, id int) bool {
			if v, ok := idx.snapshot[id]; ok {
				out = append(out, v)
			}
			return true
		},
	)
	sortByID(out)
	return out
}

// Near returns the vehicles within radius meters of (lat, lon), nearest
// first.
func (idx *Index) Near(lat, lon, radius float64) []models.VehiclePosition {
	candidates := idx.Within(utils.CalculateBounds(lat, lon, radius))

	type hit struct {
		v    models.VehiclePosition
		dist float64
	}
	hits := make([]hit, 0, len(candidates))
	for _, v := range candidates {
		d := utils.Distance(lat, lon, v.Position.Lat, v.Position.Lng)
		if d <= radius {
			hits = append(hits, hit{v: v, dist: d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	out := make([]models.VehiclePosition, len(hits))
	for i, h := range hits {
		out[i] = h.v
	}
	return out
}

// Close stops following the store.
func (idx *Index) Close() {
	if idx.unsubscribe != nil {
		idx.unsubscribe()
	}
}

func sortByID(vs []models.VehiclePosition) {
	sort.Slice(vs, func(i, j int) bool { return vs[i].VehicleID < vs[j].VehicleID })
}
