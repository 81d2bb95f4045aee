// Package tracking keeps MQTT subscriptions in step with the trains the
// user is looking at and routes incoming frames to the feed decoders.
package tracking

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"tracker.junat.live/internal/feed"
	"tracker.junat.live/internal/logging"
	"tracker.junat.live/internal/metrics"
	"tracker.junat.live/internal/models"
	"tracker.junat.live/internal/mqttconn"
)

// State is the connection state of one feed.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Errored
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Errored:
		return "error"
	default:
		return "disconnected"
	}
}

// ErrClosed is returned by operations on a closed tracker.
var ErrClosed = errors.New("tracker closed")

// Status is a point-in-time view of a tracker.
type Status struct {
	Feed      feed.Name `json:"feed"`
	State     string    `json:"state"`
	Topics    []string  `json:"topics"`
	LastError string    `json:"lastError,omitempty"`
}

// Tracker owns the connection of one feed.
//
// The connection is opened lazily by the first non-empty SetTrains. Topic
// subscriptions only grow: a train dropping out of the list keeps its
// subscription until UnsubscribeAll.
type Tracker struct {
	feed    feed.Feed
	dial    mqttconn.Dialer
	opts    mqttconn.Options
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu     sync.Mutex
	conn   mqttconn.Connection
	gen    uint64
	state  State
	err    error
	closed bool
	// everConnected is reset on every dial
	everConnected bool
	trains        []models.TrainOfInterest
	// topics maps every subscribed filter to the train it was resolved from
	topics map[string]models.TrainOfInterest
}

func NewTracker(f feed.Feed, dial mqttconn.Dialer, opts mqttconn.Options, m *metrics.Metrics, logger *slog.Logger) *Tracker {
	if dial == nil {
		dial = mqttconn.Dial
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "tracker"), slog.String("feed", string(f.Name())))
	opts.Logger = logger

	t := &Tracker{
		feed:    f,
		dial:    dial,
		opts:    opts,
		metrics: m,
		logger:  logger,
		topics:  make(map[string]models.TrainOfInterest),
	}
	t.setStateLocked(Disconnected)
	return t
}

func (t *Tracker) Feed() feed.Name { return t.feed.Name() }

// SetTrains replaces the trains of interest. When connected, only topics
// not yet subscribed are subscribed.
func (t *Tracker) SetTrains(trains []models.TrainOfInterest) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	t.trains = trains

	if t.conn == nil || (t.state == Errored && !t.everConnected) {
		if len(trains) == 0 {
			return nil
		}
		return t.dialLocked()
	}
	if t.state == Connected {
		t.subscribeLocked(t.desiredLocked(), false)
	}
	return nil
}

// dialLocked opens a new connection, replacing one that never connected.
func (t *Tracker) dialLocked() error {
	if t.conn != nil {
		t.conn.End()
		t.conn = nil
	}

	t.gen++
	gen := t.gen
	t.everConnected = false
	t.setStateLocked(Connecting)

	conn, err := t.dial(t.opts, mqttconn.Handlers{
		OnConnect: func() { t.handleConnect(gen) },
		OnMessage: func(topic string, payload []byte) { t.handleMessage(topic, payload) },
		OnError:   func(err error) { t.handleError(gen, err) },
	})
	if err != nil {
		t.err = err
		t.setStateLocked(Errored)
		t.countError()
		logging.LogError(t.logger, "failed to open feed connection", err)
		return err
	}
	t.conn = conn
	logging.LogOperation(t.logger, "feed_connecting", slog.String("broker", t.opts.BrokerURL))
	return nil
}

// desiredLocked resolves the current train list to topics.
func (t *Tracker) desiredLocked() map[string]models.TrainOfInterest {
	desired := make(map[string]models.TrainOfInterest, len(t.trains))
	for _, train := range t.trains {
		topic, ok := t.feed.ResolveTopic(train)
		if !ok {
			continue
		}
		desired[topic] = train
	}
	return desired
}

// subscribeLocked records desired in the topic map and subscribes to the
// topics that are new, or to every recorded topic when all is set.
func (t *Tracker) subscribeLocked(desired map[string]models.TrainOfInterest, all bool) {
	var pending []string
	for topic, train := range desired {
		if _, ok := t.topics[topic]; !ok && !all {
			pending = append(pending, topic)
		}
		t.topics[topic] = train
	}
	if all {
		for topic := range t.topics {
			pending = append(pending, topic)
		}
	}
	t.setTopicGauge()
	if len(pending) == 0 {
		return
	}

	sort.Strings(pending)
	t.conn.Subscribe(pending)
	if t.metrics != nil {
		t.metrics.SubscribeCallsTotal.WithLabelValues(string(t.feed.Name())).Inc()
	}
	t.logger.Debug("subscribing", slog.Int("topics", len(pending)), slog.Int("total", len(t.topics)))
}

func (t *Tracker) handleConnect(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || gen != t.gen || t.conn == nil {
		return
	}
	t.everConnected = true
	t.setStateLocked(Connected)
	logging.LogOperation(t.logger, "feed_connected")

	// a clean session starts without subscriptions
	t.subscribeLocked(t.desiredLocked(), true)
}

func (t *Tracker) handleMessage(topic string, payload []byte) {
	train := t.trainFor(topic)

	name := string(t.feed.Name())
	if t.metrics != nil {
		t.metrics.MessagesReceivedTotal.WithLabelValues(name).Inc()
	}

	if _, err := t.feed.HandleMessage(topic, payload, train); err != nil {
		if t.metrics != nil {
			t.metrics.MessagesDroppedTotal.WithLabelValues(name, feed.DropReason(err)).Inc()
		}
		t.logger.Debug("dropped frame", slog.String("topic", topic), slog.Any("error", err))
	}
}

// trainFor returns the train whose subscription filter matches topic.
func (t *Tracker) trainFor(topic string) *models.TrainOfInterest {
	t.mu.Lock()
	defer t.mu.Unlock()

	if train, ok := t.topics[topic]; ok {
		return &train
	}
	for filter, train := range t.topics {
		if feed.MatchTopic(filter, topic) {
			return &train
		}
	}
	return nil
}

func (t *Tracker) handleError(gen uint64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || gen != t.gen {
		return
	}
	t.err = err
	t.setStateLocked(Errored)
	t.countError()
}

// UnsubscribeAll unsubscribes every tracked topic and calls done once the
// broker acknowledged all of them. Without a connection or topics, done is
// called before UnsubscribeAll returns. The topic map is cleared either way.
func (t *Tracker) UnsubscribeAll(done func()) {
	if done == nil {
		done = func() {}
	}

	t.mu.Lock()
	topics := make([]string, 0, len(t.topics))
	for topic := range t.topics {
		topics = append(topics, topic)
	}
	conn := t.conn
	connected := t.state == Connected
	clear(t.topics)
	t.setTopicGauge()
	t.mu.Unlock()

	if conn == nil || !connected || len(topics) == 0 {
		done()
		return
	}

	sort.Strings(topics)
	var pending atomic.Int64
	pending.Store(int64(len(topics)))
	for _, topic := range topics {
		conn.Unsubscribe(topic, func(error) {
			if pending.Add(-1) == 0 {
				done()
			}
		})
	}
	if t.metrics != nil {
		t.metrics.UnsubscribeCallsTotal.WithLabelValues(string(t.feed.Name())).Add(float64(len(topics)))
	}
	logging.LogOperation(t.logger, "feed_unsubscribe_all", slog.Int("topics", len(topics)))
}

// Close ends the connection unconditionally. Later calls are no-ops.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	conn := t.conn
	t.conn = nil
	clear(t.topics)
	t.setTopicGauge()
	t.setStateLocked(Disconnected)
	t.mu.Unlock()

	if conn != nil {
		conn.End()
	}
	logging.LogOperation(t.logger, "feed_closed")
}

// Err returns the last connection error, if any.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Topics returns the subscribed filters in sorted order.
func (t *Tracker) Topics() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	topics := make([]string, 0, len(t.topics))
	for topic := range t.topics {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// ResolveTopic exposes the feed's topic for train.
func (t *Tracker) ResolveTopic(train models.TrainOfInterest) (string, bool) {
	return t.feed.ResolveTopic(train)
}

func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Status{Feed: t.feed.Name(), State: t.state.String(), Topics: make([]string, 0, len(t.topics))}
	for topic := range t.topics {
		s.Topics = append(s.Topics, topic)
	}
	sort.Strings(s.Topics)
	if t.err != nil {
		s.LastError = t.err.Error()
	}
	return s
}

func (t *Tracker) setStateLocked(s State) {
	t.state = s
	if t.metrics != nil {
		t.metrics.ConnectionState.WithLabelValues(string(t.feed.Name())).Set(float64(s))
	}
}

func (t *Tracker) setTopicGauge() {
	if t.metrics != nil {
		t.metrics.SubscribedTopics.WithLabelValues(string(t.feed.Name())).Set(float64(len(t.topics)))
	}
}

func (t *Tracker) countError() {
	if t.metrics != nil {
		t.metrics.ConnectionErrorsTotal.WithLabelValues(string(t.feed.Name())).Inc()
	}
}
