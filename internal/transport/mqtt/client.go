// Package mqtt adapts the Eclipse Paho client to the hub's publish and
// delivery contracts and supervises the broker session.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/aetherisstack/aetheris-engine/internal/utils"
)

// QoSAtLeastOnce is used for every publish and subscription.
const QoSAtLeastOnce byte = 1

// ErrNotConnected is returned by Publish while no session is established.
var ErrNotConnected = errors.New("mqtt: not connected")

// Config describes one broker session.
type Config struct {
	BrokerURL            string
	ClientID             string
	Username             string
	Password             string
	KeepAlive            time.Duration
	CleanSession         bool
	ConnectTimeout       time.Duration
	RetryInterval        time.Duration
	MaxReconnectInterval time.Duration
	PublishTimeout       time.Duration
	InboundBuffer        int
	// Subscriptions are (re)established on every successful connect.
	Subscriptions []string
	Will          *Will
}

// Will is the last-will message the broker emits if the session drops.
type Will struct {
	Topic   string
	Payload []byte
}

// Delivery is one inbound broker message.
type Delivery struct {
	Topic   string
	Payload []byte
}

// StateHandler observes connection transitions.
type StateHandler func(connected bool)

// Client is a supervised paho session.
type Client struct {
	cfg        Config
	client     paho.Client
	logger     *slog.Logger
	deliveries chan Delivery
	onState    StateHandler
	connected  atomic.Bool

	closeOnce sync.Once
	done      chan struct{}
}

// Option customises a Client.
type Option func(*Client)

// WithStateHandler registers a callback for connect/disconnect transitions.
func WithStateHandler(fn StateHandler) Option {
	return func(c *Client) { c.onState = fn }
}

// WithPahoClient swaps the underlying paho client. Used by tests.
func WithPahoClient(pc paho.Client) Option {
	return func(c *Client) { c.client = pc }
}

// New builds a Client. Nothing is dialled until Connect.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	normalise(&cfg)
	c := &Client{
		cfg:        cfg,
		logger:     utils.Component(logger, "mqtt"),
		deliveries: make(chan Delivery, cfg.InboundBuffer),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = paho.NewClient(c.clientOptions())
	}
	return c
}

func normalise(cfg *Config) {
	if cfg.BrokerURL == "" {
		cfg.BrokerURL = "tcp://localhost:1883"
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 30 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 5 * time.Second
	}
	if cfg.MaxReconnectInterval <= 0 {
		cfg.MaxReconnectInterval = time.Minute
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if cfg.InboundBuffer <= 0 {
		cfg.InboundBuffer = 1024
	}
}

func (c *Client) clientOptions() *paho.ClientOptions {
	opts := paho.NewClientOptions().
		AddBroker(c.cfg.BrokerURL).
		SetClientID(c.cfg.ClientID).
		SetKeepAlive(c.cfg.KeepAlive).
		SetCleanSession(c.cfg.CleanSession).
		SetConnectTimeout(c.cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(c.cfg.MaxReconnectInterval).
		SetOrderMatters(true).
		SetOnConnectHandler(c.handleConnect).
		SetConnectionLostHandler(c.handleConnectionLost).
		SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
			c.logger.Info("reconnecting to broker", slog.String("broker", c.cfg.BrokerURL))
		})
	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}
	if c.cfg.Will != nil {
		opts.SetBinaryWill(c.cfg.Will.Topic, c.cfg.Will.Payload, QoSAtLeastOnce, false)
	}
	return opts
}

// Connect dials the broker, retrying every RetryInterval until it succeeds
// or ctx ends. Later drops are handled by paho's auto-reconnect.
func (c *Client) Connect(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		err := waitToken(ctx, c.client.Connect(), c.cfg.ConnectTimeout)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Error("broker connection failed, retrying",
			slog.String("broker", c.cfg.BrokerURL),
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", c.cfg.RetryInterval),
			slog.Any("error", err),
		)
		timer := time.NewTimer(c.cfg.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Publish sends payload at QoS 1, non-retained, and waits for the broker ack.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	if !c.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	if err := waitToken(ctx, c.client.Publish(topic, QoSAtLeastOnce, false, payload), c.cfg.PublishTimeout); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Deliveries is the inbound message stream. It is never closed while the
// client is open; consumers should stop on their own context.
func (c *Client) Deliveries() <-chan Delivery {
	return c.deliveries
}

// Connected reports whether a broker session is currently up.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Close disconnects, allowing quiesce for in-flight work.
func (c *Client) Close(quiesce time.Duration) {
	c.closeOnce.Do(func() {
		close(c.done)
		c.client.Disconnect(uint(quiesce.Milliseconds()))
		c.setConnected(false)
	})
}

func (c *Client) handleConnect(pc paho.Client) {
	c.logger.Info("connected to broker", slog.String("broker", c.cfg.BrokerURL))
	c.setConnected(true)
	if len(c.cfg.Subscriptions) == 0 {
		return
	}

	filters := make(map[string]byte, len(c.cfg.Subscriptions))
	for _, topic := range c.cfg.Subscriptions {
		filters[topic] = QoSAtLeastOnce
	}
	// Waiting inside the connect callback would stall paho's router.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
		defer cancel()
		if err := waitToken(ctx, pc.SubscribeMultiple(filters, c.handleMessage), 0); err != nil {
			c.logger.Error("subscribe failed", slog.Any("error", err))
			return
		}
		c.logger.Info("subscribed to fleet topics", slog.Int("filters", len(filters)))
	}()
}

func (c *Client) handleConnectionLost(_ paho.Client, err error) {
	c.logger.Error("broker connection lost", slog.Any("error", err))
	c.setConnected(false)
}

func (c *Client) handleMessage(_ paho.Client, msg paho.Message) {
	d := Delivery{Topic: msg.Topic(), Payload: msg.Payload()}
	select {
	case <-c.done:
	case c.deliveries <- d:
	default:
		c.logger.Warn("inbound buffer full, dropping delivery", slog.String("topic", d.Topic), slog.Int("capacity", cap(c.deliveries)))
	}
}

func (c *Client) setConnected(up bool) {
	if c.connected.Swap(up) == up {
		return
	}
	if c.onState != nil {
		c.onState(up)
	}
}

// waitToken blocks until tok completes, ctx ends or timeout (when > 0) elapses.
func waitToken(ctx context.Context, tok paho.Token, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
