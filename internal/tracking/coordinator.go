package tracking

import (
	"errors"
	"sync"
	"sync/atomic"

	"tracker.junat.live/internal/feed"
	"tracker.junat.live/internal/models"
)

// Coordinator drives one Tracker per feed from a single train list.
type Coordinator struct {
	trackers []*Tracker

	mu     sync.RWMutex
	trains []models.TrainOfInterest
}

func NewCoordinator(trackers ...*Tracker) *Coordinator {
	return &Coordinator{trackers: trackers}
}

// SetTrains hands the train list to every feed.
func (c *Coordinator) SetTrains(trains []models.TrainOfInterest) error {
	c.mu.Lock()
	c.trains = trains
	c.mu.Unlock()

	var errs []error
	for _, t := range c.trackers {
		if err := t.SetTrains(trains); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Trains returns the last train list.
func (c *Coordinator) Trains() []models.TrainOfInterest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.trains
}

// Train finds a train of the current list by number.
func (c *Coordinator) Train(number int) (models.TrainOfInterest, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, train := range c.trains {
		if train.TrainNumber == number {
			return train, true
		}
	}
	return models.TrainOfInterest{}, false
}

// UnsubscribeAll unsubscribes every feed and calls done when all of them
// finished.
func (c *Coordinator) UnsubscribeAll(done func()) {
	if done == nil {
		done = func() {}
	}
	if len(c.trackers) == 0 {
		done()
		return
	}

	var pending atomic.Int64
	pending.Store(int64(len(c.trackers)))
	for _, t := range c.trackers {
		t.UnsubscribeAll(func() {
			if pending.Add(-1) == 0 {
				done()
			}
		})
	}
}

// Close ends every feed connection.
func (c *Coordinator) Close() {
	for _, t := range c.trackers {
		t.Close()
	}
}

func (c *Coordinator) Tracker(name feed.Name) (*Tracker, bool) {
	for _, t := range c.trackers {
		if t.Feed() == name {
			return t, true
		}
	}
	return nil, false
}

func (c *Coordinator) Status() []Status {
	out := make([]Status, 0, len(c.trackers))
	for _, t := range c.trackers {
		out = append(out, t.Status())
	}
	return out
}
