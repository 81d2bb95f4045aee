// Package mqttconn is a thin wrapper around one long-lived MQTT client.
//
// A Connection reports its lifecycle through Handlers and exposes only the
// operations the tracker needs. Every operation returns immediately;
// broker acknowledgements are delivered through callbacks.
package mqttconn

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"tracker.junat.live/internal/logging"
)

// Handlers receive connection events. Message handlers run on the client's
// delivery goroutine in broker order. Any handler may be nil.
type Handlers struct {
	OnConnect func()
	OnMessage func(topic string, payload []byte)
	OnError   func(err error)
}

// Connection is a pub/sub connection to one broker.
type Connection interface {
	// Subscribe subscribes to topics. Failures are reported through OnError.
	Subscribe(topics []string)
	// Unsubscribe removes one subscription. ack, if not nil, is called once
	// the broker acknowledged it or the request failed.
	Unsubscribe(topic string, ack func(error))
	// End disconnects and stops reconnecting. Safe to call more than once.
	End()
}

// Dialer opens a Connection. Connecting continues in the background; no
// handler may run before the Dialer returns.
type Dialer func(opts Options, h Handlers) (Connection, error)

// Options configure a connection.
type Options struct {
	BrokerURL      string
	ClientIDPrefix string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	Logger         *slog.Logger
}

const (
	// quiesce is how long Disconnect waits for in-flight work, in ms
	quiesce    = 250
	defaultQoS = 0
)

type pahoConnection struct {
	client   mqtt.Client
	handlers Handlers
	logger   *slog.Logger
	endOnce  sync.Once
}

// Dial creates a paho client for opts and starts connecting. A failed first
// attempt is reported through h.OnError and not retried; once connected the
// client reconnects on its own and reports every lost connection.
func Dial(opts Options, h Handlers) (Connection, error) {
	if opts.BrokerURL == "" {
		return nil, fmt.Errorf("mqtt: broker url is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &pahoConnection{
		handlers: h,
		logger:   logger.With(slog.String("component", "mqtt_connection"), slog.String("broker", opts.BrokerURL)),
	}
	c.client = mqtt.NewClient(c.clientOptions(opts))

	token := c.client.Connect()
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			c.reportError(fmt.Errorf("mqtt connect: %w", err))
		}
	}()
	return c, nil
}

func (c *pahoConnection) clientOptions(opts Options) *mqtt.ClientOptions {
	clientID := uuid.NewString()
	if opts.ClientIDPrefix != "" {
		clientID = opts.ClientIDPrefix + "-" + clientID
	}

	o := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetOrderMatters(true)
	if opts.KeepAlive > 0 {
		o.SetKeepAlive(opts.KeepAlive)
	}
	if opts.ConnectTimeout > 0 {
		o.SetConnectTimeout(opts.ConnectTimeout)
	}

	o.SetOnConnectHandler(func(mqtt.Client) {
		c.logger.Info("connected")
		if c.handlers.OnConnect != nil {
			c.handlers.OnConnect()
		}
	})
	o.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		c.logger.Debug("reconnecting")
	})
	o.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.reportError(fmt.Errorf("mqtt connection lost: %w", err))
	})
	o.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(msg.Topic(), msg.Payload())
		}
	})
	return o
}

func (c *pahoConnection) reportError(err error) {
	logging.LogError(c.logger, "mqtt error", err)
	if c.handlers.OnError != nil {
		c.handlers.OnError(err)
	}
}

func (c *pahoConnection) Subscribe(topics []string) {
	if len(topics) == 0 {
		return
	}
	filters := make(map[string]byte, len(topics))
	for _, topic := range topics {
		filters[topic] = defaultQoS
	}

	// nil callback routes messages to the default publish handler
	token := c.client.SubscribeMultiple(filters, nil)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			c.reportError(fmt.Errorf("mqtt subscribe %v: %w", topics, err))
			return
		}
		c.logger.Debug("subscribed", slog.Int("topics", len(topics)))
	}()
}

func (c *pahoConnection) Unsubscribe(topic string, ack func(error)) {
	token := c.client.Unsubscribe(topic)
	go func() {
		<-token.Done()
		err := token.Error()
		if err != nil {
			err = fmt.Errorf("mqtt unsubscribe %s: %w", topic, err)
			logging.LogError(c.logger, "unsubscribe failed", err)
		}
		if ack != nil {
			ack(err)
		}
	}()
}

func (c *pahoConnection) End() {
	c.endOnce.Do(func() {
		c.client.Disconnect(quiesce)
		c.logger.Info("disconnected")
	})
}
