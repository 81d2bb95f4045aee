package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"tracker.junat.live/internal/models"
)

func TestTrackedTrainStore_FirstWriteWins(t *testing.T) {
	s := NewTrackedTrainStore()

	assert.True(t, s.InsertIfAbsent(123, models.TrackedTrain{DepartureDate: "2023-03-11"}))
	assert.False(t, s.InsertIfAbsent(123, models.TrackedTrain{DepartureDate: "2023-03-12"}))

	rec, ok := s.Lookup(123)
	assert.True(t, ok)
	assert.Equal(t, "2023-03-11", rec.DepartureDate)
}

func TestTrackedTrainStore_SecondWriteDoesNotNotify(t *testing.T) {
	s := NewTrackedTrainStore()
	calls := 0
	s.Subscribe(func(TrackedTrains) { calls++ })

	s.InsertIfAbsent(1, models.TrackedTrain{DepartureDate: "2023-03-11"})
	s.InsertIfAbsent(1, models.TrackedTrain{DepartureDate: "2023-03-11"})

	assert.Equal(t, 1, calls)
	assert.True(t, s.Has(1))
	assert.False(t, s.Has(2))
}

func TestTrackedTrainStore_Seed(t *testing.T) {
	s := NewTrackedTrainStore()
	s.InsertIfAbsent(1, models.TrackedTrain{DepartureDate: "2023-03-11"})

	added := s.Seed(TrackedTrains{
		1: {DepartureDate: "1999-01-01"},
		2: {DepartureDate: "2023-03-11"},
	})

	assert.Equal(t, 1, added)
	rec, _ := s.Lookup(1)
	assert.Equal(t, "2023-03-11", rec.DepartureDate)
	assert.True(t, s.Has(2))
}
