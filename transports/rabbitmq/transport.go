// Package rabbitmq implements the alfred transport over a RabbitMQ topic exchange.
//
// Every transport owns an exclusive auto-delete queue named alfred.<uuid>.
// Topics are routing keys. Listening on a topic binds both the topic itself and
// everything below it (topic.#); listening on the empty topic binds #. Prefix
// matching is therefore per dot-separated segment rather than per byte.
package rabbitmq

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/alfredmq/alfred-go/internal/rabbitmq"
	"github.com/alfredmq/alfred-go/messaging"
)

// QueuePrefix prefixes the private queue of every transport
const QueuePrefix = "alfred."

// Transport implements messaging.Transport for RabbitMQ
type Transport struct {
	manager    *rabbitmq.ConnectionManager
	publisher  *publisher
	subscriber *subscriber
	logger     *slog.Logger
}

// TransportConfig holds configuration for the transport
type TransportConfig struct {
	ConnectionOptions []rabbitmq.ConnectionOption
	Exchange          string
	Logger            *slog.Logger
}

// TransportOption configures the transport
type TransportOption func(*TransportConfig)

// WithConnectionOptions sets connection options
func WithConnectionOptions(opts ...rabbitmq.ConnectionOption) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.ConnectionOptions = append(cfg.ConnectionOptions, opts...)
	}
}

// WithExchange overrides the topic exchange name
func WithExchange(name string) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.Exchange = name
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.Logger = logger
	}
}

// NewTransport connects to the broker, declares the exchange and the private queue
func NewTransport(ctx context.Context, connectionString string, options ...TransportOption) (*Transport, error) {
	cfg := &TransportConfig{
		Exchange: rabbitmq.ExchangeName,
		Logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(cfg)
	}

	connOpts := append([]rabbitmq.ConnectionOption{rabbitmq.WithLogger(cfg.Logger)}, cfg.ConnectionOptions...)
	manager := rabbitmq.NewConnectionManager(connectionString, connOpts...)

	if err := manager.Connect(ctx); err != nil {
		return nil, connectionError("connect", connectionString, err)
	}

	pub, err := newPublisher(manager, cfg.Exchange)
	if err != nil {
		manager.Close()
		return nil, connectionError("declare exchange", connectionString, err)
	}

	sub, err := newSubscriber(manager, cfg.Exchange, QueuePrefix+uuid.NewString())
	if err != nil {
		manager.Close()
		return nil, connectionError("declare queue", connectionString, err)
	}
	cfg.Logger.Debug("consuming", "queue", sub.queue, "exchange", cfg.Exchange)

	return &Transport{
		manager:    manager,
		publisher:  pub,
		subscriber: sub,
		logger:     cfg.Logger,
	}, nil
}

// Publisher implements messaging.Transport
func (t *Transport) Publisher() messaging.TransportPublisher {
	return t.publisher
}

// Subscriber implements messaging.Transport
func (t *Transport) Subscriber() messaging.TransportSubscriber {
	return t.subscriber
}

// Queue returns the name of the private queue
func (t *Transport) Queue() string {
	return t.subscriber.queue
}

// Close closes all resources
func (t *Transport) Close() error {
	return errors.Join(t.publisher.Close(), t.subscriber.Close(), t.manager.Close())
}

func connectionError(op, endpoint string, err error) error {
	return &messaging.ConnectionError{
		Op:        op,
		Endpoint:  rabbitmq.SanitizeURL(endpoint),
		Err:       err,
		Timestamp: time.Now(),
	}
}

type publisher struct {
	ch        *amqp.Channel
	exchange  string
	mu        sync.Mutex
	closeOnce sync.Once
}

func newPublisher(manager *rabbitmq.ConnectionManager, exchange string) (*publisher, error) {
	ch, err := manager.Channel()
	if err != nil {
		return nil, err
	}
	topology := rabbitmq.DefaultTopology()
	topology.Exchanges[0].Name = exchange
	if err := rabbitmq.NewTopologyManager(ch).DeclareTopology(topology); err != nil {
		ch.Close()
		return nil, err
	}
	return &publisher{ch: ch, exchange: exchange}, nil
}

func (p *publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.PublishWithContext(ctx, p.exchange, topic, false, false, amqp.Publishing{
		ContentType: "application/octet-stream",
		Timestamp:   time.Now(),
		Body:        payload,
	})
	if err != nil {
		return &rabbitmq.PublishError{
			Exchange:   p.exchange,
			RoutingKey: topic,
			Err:        err,
			Timestamp:  time.Now(),
		}
	}
	return nil
}

func (p *publisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.ch.Close()
	})
	if errors.Is(err, amqp.ErrClosed) {
		return nil
	}
	return err
}

type subscriber struct {
	ch         *amqp.Channel
	topology   *rabbitmq.TopologyManager
	exchange   string
	queue      string
	deliveries <-chan amqp.Delivery
	mu         sync.Mutex
	bound      map[string]bool
	closeOnce  sync.Once
}

func newSubscriber(manager *rabbitmq.ConnectionManager, exchange, queue string) (*subscriber, error) {
	ch, err := manager.Channel()
	if err != nil {
		return nil, err
	}
	topology := rabbitmq.NewTopologyManager(ch)
	if _, err := topology.DeclareQueue(rabbitmq.SubscriberQueue(queue)); err != nil {
		ch.Close()
		return nil, err
	}

	deliveries, err := ch.Consume(
		queue,
		"",    // consumer tag
		true,  // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		ch.Close()
		return nil, &rabbitmq.ConsumerError{Queue: queue, Op: "consume", Err: err, Timestamp: time.Now()}
	}

	return &subscriber{
		ch:         ch,
		topology:   topology,
		exchange:   exchange,
		queue:      queue,
		deliveries: deliveries,
		bound:      make(map[string]bool),
	}, nil
}

func (s *subscriber) Subscribe(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range rabbitmq.BindingKeys(prefix) {
		if s.bound[key] {
			continue
		}
		err := s.topology.BindQueue(rabbitmq.Binding{
			Queue:      s.queue,
			Exchange:   s.exchange,
			RoutingKey: key,
		})
		if err != nil {
			return err
		}
		s.bound[key] = true
	}
	return nil
}

func (s *subscriber) Receive(ctx context.Context) ([][]byte, error) {
	select {
	case d, ok := <-s.deliveries:
		if !ok {
			return nil, &rabbitmq.ConsumerError{
				Queue:     s.queue,
				Op:        "receive",
				Err:       rabbitmq.ErrConsumerCancelled,
				Timestamp: time.Now(),
			}
		}
		return [][]byte{[]byte(d.RoutingKey), d.Body}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *subscriber) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.ch.Close()
	})
	if errors.Is(err, amqp.ErrClosed) {
		return nil
	}
	return err
}
