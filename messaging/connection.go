package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/alfredmq/alfred-go/contracts"
	"github.com/alfredmq/alfred-go/serialization"
)

// DefaultSettleDelay is how long a new connection waits before first use so that
// the broker has registered its subscriptions (the pub/sub "slow joiner" problem)
const DefaultSettleDelay = time.Second

// Connection turns a raw transport into a typed message channel with peer discovery
type Connection struct {
	transport   Transport
	publisher   TransportPublisher
	subscriber  TransportSubscriber
	codec       serialization.Codec
	metrics     MetricsCollector
	logger      *slog.Logger
	settleDelay time.Duration

	// the publisher is a single-writer resource
	pubMu  sync.Mutex
	recvMu sync.Mutex
}

// ConnectionOption configures a Connection
type ConnectionOption func(*Connection)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ConnectionOption {
	return func(c *Connection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCodec replaces the wire codec
func WithCodec(codec serialization.Codec) ConnectionOption {
	return func(c *Connection) {
		if codec != nil {
			c.codec = codec
		}
	}
}

// WithMetrics sets the metrics collector
func WithMetrics(metrics MetricsCollector) ConnectionOption {
	return func(c *Connection) {
		if metrics != nil {
			c.metrics = metrics
		}
	}
}

// WithSettleDelay sets the delay waited before the connection is used
func WithSettleDelay(delay time.Duration) ConnectionOption {
	return func(c *Connection) {
		c.settleDelay = delay
	}
}

// NewConnection wraps an already connected transport. It waits for the settle
// delay and subscribes to module.info.request before returning.
func NewConnection(ctx context.Context, transport Transport, options ...ConnectionOption) (*Connection, error) {
	c := &Connection{
		transport:   transport,
		publisher:   transport.Publisher(),
		subscriber:  transport.Subscriber(),
		codec:       serialization.NewBinaryCodec(),
		metrics:     &NoOpMetricsCollector{},
		logger:      slog.Default(),
		settleDelay: DefaultSettleDelay,
	}

	for _, opt := range options {
		opt(c)
	}

	if c.settleDelay > 0 {
		timer := time.NewTimer(c.settleDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	if err := c.Listen(ctx, contracts.ModuleInfoRequestTopic); err != nil {
		return nil, err
	}

	return c, nil
}

// Listen subscribes to topic
func (c *Connection) Listen(ctx context.Context, topic string) error {
	c.logger.Debug("subscribing", "topic", topic)
	if err := c.subscriber.Subscribe(ctx, topic); err != nil {
		c.metrics.RecordError("subscribe")
		return &SubscribeError{Topic: topic, Err: err}
	}
	return nil
}

// Send encodes msg and publishes it on topic
func (c *Connection) Send(ctx context.Context, topic string, msg contracts.Message) error {
	payload, err := c.codec.Encode(msg)
	if err != nil {
		c.metrics.RecordError("encode")
		return err
	}

	c.pubMu.Lock()
	err = c.publisher.Publish(ctx, topic, payload)
	c.pubMu.Unlock()
	if err != nil {
		c.metrics.RecordError("publish")
		return &PublishError{Topic: topic, Payload: payload, Err: err}
	}

	c.metrics.RecordPublished(topic, msg.Type)
	c.logger.Debug("message published",
		"topic", topic,
		"messageType", msg.Type.String(),
		"bytes", len(payload),
	)
	return nil
}

// SendEvent publishes msg on event.<publisherName>.<eventName>
func (c *Connection) SendEvent(ctx context.Context, publisherName, eventName string, msg contracts.Message) error {
	return c.Send(ctx, contracts.EventTopic(publisherName, eventName), msg)
}

// Receive blocks until the next message arrives. Control messages are returned
// like any other; see DiscoveryInterceptor for transparent handling.
func (c *Connection) Receive(ctx context.Context) (string, contracts.Message, error) {
	c.recvMu.Lock()
	frames, err := c.subscriber.Receive(ctx)
	c.recvMu.Unlock()
	if err != nil {
		c.metrics.RecordError("receive")
		return "", contracts.Message{}, &ReceiveError{Err: err}
	}
	if len(frames) < 2 {
		c.metrics.RecordError("receive")
		return "", contracts.Message{}, &ReceiveError{Err: ErrMissingFrame}
	}

	if !utf8.Valid(frames[0]) {
		c.metrics.RecordError("conversion")
		return "", contracts.Message{}, &ConversionError{Frame: 0, Err: ErrInvalidUTF8}
	}
	if !serialization.ValidUTF8Payload(frames[1]) {
		c.metrics.RecordError("conversion")
		return "", contracts.Message{}, &ConversionError{Frame: 1, Err: ErrInvalidUTF8}
	}

	topic := string(frames[0])
	msg, err := c.codec.Decode(frames[1])
	if err != nil {
		c.metrics.RecordError("decode")
		return "", contracts.Message{}, err
	}

	c.metrics.RecordReceived(topic, msg.Type)
	c.logger.Debug("message received", "topic", topic, "messageType", msg.Type.String())
	return topic, msg, nil
}

// ManageModuleInfoRequest answers a discovery request. When topic is
// module.info.request it publishes a ModuleInfo message describing the module
// on module.info.response and reports true; otherwise it does nothing.
func (c *Connection) ManageModuleInfoRequest(ctx context.Context, topic, moduleName string, capabilities map[string]string) (bool, error) {
	if topic != contracts.ModuleInfoRequestTopic {
		return false, nil
	}

	c.logger.Debug("received module info request, replying", "module", moduleName)
	info := contracts.NewModuleInfoMessage(moduleName, capabilities)
	return true, c.Send(ctx, contracts.ModuleInfoResponseTopic, info)
}

// Close closes the underlying transport
func (c *Connection) Close() error {
	return c.transport.Close()
}
