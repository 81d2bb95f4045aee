package trackdb

import (
	"context"
	"log/slog"
	"sync"

	"tracker.junat.live/internal/clock"
	"tracker.junat.live/internal/logging"
	"tracker.junat.live/internal/models"
	"tracker.junat.live/internal/store"
)

const journalBuffer = 256

type entry struct {
	number int
	rec    models.TrackedTrain
}

// Journal writes every record that appears in a TrackedTrainStore to the
// database. Writes happen on a background goroutine so store observers
// never wait on disk.
type Journal struct {
	client *Client
	clock  clock.Clock
	logger *slog.Logger

	mu      sync.Mutex
	seen    map[int]struct{}
	pending chan entry

	unsubscribe func()
	done        chan struct{}
	closeOnce   sync.Once
}

// Restore seeds tracked with the persisted records of journeys that may
// still be running, those departing today or yesterday in Helsinki, and
// starts journaling new ones. Records already present in the store win
// over persisted ones.
func Restore(ctx context.Context, client *Client, tracked *store.TrackedTrainStore, c clock.Clock, logger *slog.Logger) (*Journal, error) {
	if c == nil {
		c = clock.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	persisted, err := client.LoadSince(ctx, clock.RolloverStart(c.Now()))
	if err != nil {
		return nil, err
	}
	added := tracked.Seed(persisted)

	j := &Journal{
		client:  client,
		clock:   c,
		logger:  logger.With(slog.String("component", "trackdb")),
		seen:    make(map[int]struct{}, len(persisted)),
		pending: make(chan entry, journalBuffer),
		done:    make(chan struct{}),
	}
	for number := range persisted {
		j.seen[number] = struct{}{}
	}

	j.unsubscribe = tracked.Subscribe(j.observe)
	j.observe(tracked.Get())

	go j.run()
	logging.LogOperation(j.logger, "tracked_trains_restored",
		slog.Int("persisted", len(persisted)), slog.Int("seeded", added))
	return j, nil
}

// observe queues records not written before. When the queue is full the
// record stays unseen and is retried on the next store change.
func (j *Journal) observe(next store.TrackedTrains) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.seen == nil {
		return
	}
	dropped := 0
	for number, rec := range next {
		if _, ok := j.seen[number]; ok {
			continue
		}
		select {
		case j.pending <- entry{number: number, rec: rec}:
			j.seen[number] = struct{}{}
		default:
			dropped++
		}
	}
	if dropped > 0 {
		j.logger.Warn("tracked train journal queue full", slog.Int("deferred", dropped))
	}
}

func (j *Journal) run() {
	defer close(j.done)
	for e := range j.pending {
		if _, err := j.client.Insert(context.Background(), e.number, e.rec, j.clock.Now()); err != nil {
			logging.LogError(j.logger, "failed to journal tracked train", err, slog.Int("journey", e.number))
		}
	}
}

// Close stops observing and waits for queued writes to finish.
func (j *Journal) Close() {
	j.closeOnce.Do(func() {
		j.unsubscribe()
		j.mu.Lock()
		j.seen = nil
		close(j.pending)
		j.mu.Unlock()
		<-j.done
	})
}
