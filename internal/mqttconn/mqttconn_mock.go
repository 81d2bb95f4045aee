package mqttconn

import (
	"sync"
)

// MockConnection records calls instead of talking to a broker.
type MockConnection struct {
	mu          sync.Mutex
	subscribed  [][]string
	unsubscribe []string
	acks        []func(error)
	ended       int
}

func (c *MockConnection) Subscribe(topics []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = append(c.subscribed, append([]string(nil), topics...))
}

func (c *MockConnection) Unsubscribe(topic string, ack func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribe = append(c.unsubscribe, topic)
	c.acks = append(c.acks, ack)
}

func (c *MockConnection) End() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ended++
}

// SubscribeCalls returns the topic lists of every Subscribe call.
func (c *MockConnection) SubscribeCalls() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]string(nil), c.subscribed...)
}

// Unsubscribed returns every topic passed to Unsubscribe.
func (c *MockConnection) Unsubscribed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.unsubscribe...)
}

func (c *MockConnection) Ended() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}

// AckAll acknowledges every pending unsubscribe with err.
func (c *MockConnection) AckAll(err error) {
	c.mu.Lock()
	acks := c.acks
	c.acks = nil
	c.mu.Unlock()
	for _, ack := range acks {
		if ack != nil {
			ack(err)
		}
	}
}

// MockDialer hands out MockConnections. Set Fail to make Dial fail.
type MockDialer struct {
	mu       sync.Mutex
	conns    []*MockConnection
	handlers []Handlers
	opts     []Options
	Fail     error
}

func (d *MockDialer) Dial(opts Options, h Handlers) (Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Fail != nil {
		return nil, d.Fail
	}
	conn := &MockConnection{}
	d.conns = append(d.conns, conn)
	d.handlers = append(d.handlers, h)
	d.opts = append(d.opts, opts)
	return conn, nil
}

func (d *MockDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// Options returns the options of the i-th dial.
func (d *MockDialer) Options(i int) Options {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opts[i]
}

// Last returns the most recent connection and its handlers. It panics when
// nothing was dialed.
func (d *MockDialer) Last() (*MockConnection, Handlers) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		panic("mqttconn: no connection dialed")
	}
	return d.conns[len(d.conns)-1], d.handlers[len(d.handlers)-1]
}
