package store

import (
	"maps"

	"tracker.junat.live/internal/models"
)

// Vehicles maps a vehicle id to its latest position.
type Vehicles map[int]models.VehiclePosition

// VehicleStore is the shared snapshot of every tracked vehicle.
type VehicleStore struct {
	*Store[Vehicles]
}

func NewVehicleStore() *VehicleStore {
	return &VehicleStore{Store: New(Vehicles{})}
}

// Vehicle returns the current position of id.
func (s *VehicleStore) Vehicle(id int) (models.VehiclePosition, bool) {
	v, ok := s.Get()[id]
	return v, ok
}

// Upsert rebuilds the entry for id from its previous value (nil on first
// sighting). When build returns false the snapshot is left untouched.
func (s *VehicleStore) Upsert(id int, build func(prev *models.VehiclePosition) (models.VehiclePosition, bool)) (models.VehiclePosition, bool) {
	var built models.VehiclePosition
	_, changed := s.Mutate(func(prev Vehicles) (Vehicles, bool) {
		var previous *models.VehiclePosition
		if p, ok := prev[id]; ok {
			previous = &p
		}
		next, ok := build(previous)
		if !ok {
			return prev, false
		}
		built = next
		out := cloneVehicles(prev)
		out[id] = next
		return out, true
	})
	return built, changed
}

// Delete removes the given vehicles. Unknown ids are ignored.
func (s *VehicleStore) Delete(ids ...int) {
	s.Mutate(func(prev Vehicles) (Vehicles, bool) {
		out := cloneVehicles(prev)
		for _, id := range ids {
			delete(out, id)
		}
		return out, len(out) != len(prev)
	})
}

// RetainJourney removes every vehicle not linked to journey number jrn.
func (s *VehicleStore) RetainJourney(jrn int) {
	s.Mutate(func(prev Vehicles) (Vehicles, bool) {
		out := make(Vehicles, 1)
		for id, v := range prev {
			if v.HasJourney(jrn) {
				out[id] = v
			}
		}
		return out, len(out) != len(prev)
	})
}

// Clear drops every vehicle.
func (s *VehicleStore) Clear() {
	s.Set(Vehicles{})
}

func cloneVehicles(v Vehicles) Vehicles {
	if v == nil {
		return make(Vehicles, 1)
	}
	return maps.Clone(v)
}
