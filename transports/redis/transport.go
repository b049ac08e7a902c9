// Package redis implements the alfred transport over Redis PUBLISH and PSUBSCRIBE.
//
// A topic prefix subscription becomes the glob pattern <escaped prefix>*, so matching
// keeps byte-prefix semantics. Redis pub/sub is fire and forget: messages published
// while nobody listens are lost, like on the ZeroMQ broker.
package redis

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alfredmq/alfred-go/messaging"
)

const (
	defaultDialTimeout = 5 * time.Second
	defaultPingTimeout = 5 * time.Second
)

// Transport implements messaging.Transport for Redis
type Transport struct {
	client     *redis.Client
	publisher  *publisher
	subscriber *subscriber
	logger     *slog.Logger
}

// TransportConfig holds configuration for the transport
type TransportConfig struct {
	Logger      *slog.Logger
	DialTimeout time.Duration
	Password    string
	DB          int
}

// TransportOption configures the transport
type TransportOption func(*TransportConfig)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.Logger = logger
	}
}

// WithDialTimeout sets the dial and ping timeout
func WithDialTimeout(timeout time.Duration) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.DialTimeout = timeout
	}
}

// WithPassword overrides the password in the URL
func WithPassword(password string) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.Password = password
	}
}

// WithDB selects the logical database. Pub/sub channels are shared by all databases.
func WithDB(db int) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.DB = db
	}
}

// NewTransport connects to redis://host:port and verifies the server answers
func NewTransport(ctx context.Context, url string, options ...TransportOption) (*Transport, error) {
	cfg := &TransportConfig{
		Logger:      slog.Default(),
		DialTimeout: defaultDialTimeout,
	}
	for _, opt := range options {
		opt(cfg)
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, &messaging.ConnectionError{Op: "parse url", Endpoint: url, Err: err, Timestamp: time.Now()}
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	opts.DialTimeout = cfg.DialTimeout

	client := redis.NewClient(opts)
	endpoint := opts.Addr

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, &messaging.ConnectionError{Op: "ping", Endpoint: endpoint, Err: err, Timestamp: time.Now()}
	}
	cfg.Logger.Debug("connected to redis", "endpoint", endpoint)

	// subscribing with no patterns defers the first SUBSCRIBE until Subscribe
	pubsub := client.PSubscribe(ctx)

	return &Transport{
		client:    client,
		publisher: &publisher{client: client},
		subscriber: &subscriber{
			pubsub:   pubsub,
			messages: pubsub.Channel(),
			done:     make(chan struct{}),
		},
		logger: cfg.Logger,
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

// Close implements messaging.Transport
func (t *Transport) Close() error {
	return errors.Join(t.subscriber.Close(), t.client.Close())
}

type publisher struct {
	client *redis.Client
}

func (p *publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	return p.client.Publish(ctx, topic, payload).Err()
}

// Close is a no-op; the client is owned by the Transport
func (p *publisher) Close() error {
	return nil
}

type subscriber struct {
	pubsub    *redis.PubSub
	messages  <-chan *redis.Message
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.RWMutex
	prefixes []string
}

func (s *subscriber) Subscribe(ctx context.Context, prefix string) error {
	select {
	case <-s.done:
		return messaging.ErrTransportClosed
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.prefixes, prefix) {
		return nil
	}
	if err := s.pubsub.PSubscribe(ctx, PrefixPattern(prefix)); err != nil {
		return err
	}
	s.prefixes = append(s.prefixes, prefix)
	return nil
}

func (s *subscriber) Receive(ctx context.Context) ([][]byte, error) {
	for {
		select {
		case msg, ok := <-s.messages:
			if !ok {
				return nil, messaging.ErrTransportClosed
			}
			if !s.accept(msg) {
				continue
			}
			return [][]byte{[]byte(msg.Channel), []byte(msg.Payload)}, nil
		case <-s.done:
			return nil, messaging.ErrTransportClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// accept keeps one copy of a publish. Redis sends a pmessage for every
// matching pattern; only the one for the shortest matching prefix passes.
func (s *subscriber) accept(msg *redis.Message) bool {
	if msg.Pattern == "" {
		return true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	shortest, found := "", false
	for _, prefix := range s.prefixes {
		if strings.HasPrefix(msg.Channel, prefix) && (!found || len(prefix) < len(shortest)) {
			shortest, found = prefix, true
		}
	}
	return !found || msg.Pattern == PrefixPattern(shortest)
}

func (s *subscriber) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

var patternEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`?`, `\?`,
	`[`, `\[`,
	`]`, `\]`,
)

// PrefixPattern returns the PSUBSCRIBE glob matching every channel that starts with prefix
func PrefixPattern(prefix string) string {
	return patternEscaper.Replace(prefix) + "*"
}
