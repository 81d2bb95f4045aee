package store

import (
	"maps"

	"tracker.junat.live/internal/models"
)

// TrackedTrains maps a train or journey number to its tracked record.
type TrackedTrains map[int]models.TrackedTrain

// TrackedTrainStore keeps the departure date each journey was first seen
// with. Records are never overwritten.
type TrackedTrainStore struct {
	*Store[TrackedTrains]
}

func NewTrackedTrainStore() *TrackedTrainStore {
	return &TrackedTrainStore{Store: New(TrackedTrains{})}
}

// Lookup returns the record for number.
func (s *TrackedTrainStore) Lookup(number int) (models.TrackedTrain, bool) {
	rec, ok := s.Get()[number]
	return rec, ok
}

// Has reports whether number already has a record.
func (s *TrackedTrainStore) Has(number int) bool {
	_, ok := s.Lookup(number)
	return ok
}

// InsertIfAbsent stores rec for number unless a record exists. It returns
// true when rec was stored.
func (s *TrackedTrainStore) InsertIfAbsent(number int, rec models.TrackedTrain) bool {
	_, inserted := s.Mutate(func(prev TrackedTrains) (TrackedTrains, bool) {
		if _, exists := prev[number]; exists {
			return prev, false
		}
		out := cloneTrackedTrains(prev)
		out[number] = rec
		return out, true
	})
	return inserted
}

// Seed inserts every record in recs that is not yet known, in one snapshot.
func (s *TrackedTrainStore) Seed(recs TrackedTrains) int {
	added := 0
	s.Mutate(func(prev TrackedTrains) (TrackedTrains, bool) {
		out := cloneTrackedTrains(prev)
		for number, rec := range recs {
			if _, exists := out[number]; !exists {
				out[number] = rec
				added++
			}
		}
		return out, added > 0
	})
	return added
}

func cloneTrackedTrains(t TrackedTrains) TrackedTrains {
	if t == nil {
		return make(TrackedTrains, 1)
	}
	return maps.Clone(t)
}
