package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alfredmq/alfred-go/contracts"
	"github.com/alfredmq/alfred-go/interceptors"
)

// DefaultTimeout bounds a request when no timeout is given
const DefaultTimeout = 30 * time.Second

var (
	ErrRequestTimeout = errors.New("bridge: request timed out")
	ErrBridgeClosed   = errors.New("bridge: closed")
)

// RequestError reports a failed request
type RequestError struct {
	Topic      string
	ReplyTopic string
	Err        error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.Topic, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Endpoint is the part of a module a request needs
type Endpoint interface {
	Listen(ctx context.Context, topic string) error
	Send(ctx context.Context, topic string, msg contracts.Message) error
}

// Bridge correlates replies with pending requests
type Bridge struct {
	prefix         string
	defaultTimeout time.Duration
	logger         *slog.Logger

	mu       sync.Mutex
	pending  map[string]chan contracts.Message
	listened bool
	closed   bool
}

// Option configures a Bridge
type Option func(*Bridge)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithDefaultTimeout sets the timeout used when Request gets zero
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(b *Bridge) {
		b.defaultTimeout = timeout
	}
}

// WithReplyPrefix overrides the reply topic prefix, "<name>.reply." by default
func WithReplyPrefix(prefix string) Option {
	return func(b *Bridge) {
		b.prefix = prefix
	}
}

// New creates a bridge for the module called name
func New(name string, opts ...Option) *Bridge {
	b := &Bridge{
		prefix:         name + ".reply.",
		defaultTimeout: DefaultTimeout,
		logger:         slog.Default(),
		pending:        make(map[string]chan contracts.Message),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ReplyPrefix returns the prefix every reply topic starts with
func (b *Bridge) ReplyPrefix() string {
	return b.prefix
}

// Request sends msg on topic and waits for the first reply to it.
// A zero timeout means the default.
func (b *Bridge) Request(ctx context.Context, endpoint Endpoint, topic string, msg contracts.Message, timeout time.Duration) (contracts.Message, error) {
	if timeout <= 0 {
		timeout = b.defaultTimeout
	}

	if err := b.listen(ctx, endpoint); err != nil {
		return contracts.Message{}, &RequestError{Topic: topic, Err: err}
	}

	replyTopic := b.prefix + uuid.NewString()
	ch, err := b.register(replyTopic)
	if err != nil {
		return contracts.Message{}, &RequestError{Topic: topic, ReplyTopic: replyTopic, Err: err}
	}
	defer b.unregister(replyTopic)

	msg.ResponseTopics = msg.ResponseTopics.Push(replyTopic)
	if err := endpoint.Send(ctx, topic, msg); err != nil {
		return contracts.Message{}, &RequestError{Topic: topic, ReplyTopic: replyTopic, Err: err}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply, ok := <-ch:
		if !ok {
			return contracts.Message{}, &RequestError{Topic: topic, ReplyTopic: replyTopic, Err: ErrBridgeClosed}
		}
		return reply, nil
	case <-timer.C:
		return contracts.Message{}, &RequestError{Topic: topic, ReplyTopic: replyTopic, Err: ErrRequestTimeout}
	case <-ctx.Done():
		return contracts.Message{}, &RequestError{Topic: topic, ReplyTopic: replyTopic, Err: ctx.Err()}
	}
}

func (b *Bridge) listen(ctx context.Context, endpoint Endpoint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listened {
		return nil
	}
	if err := endpoint.Listen(ctx, b.prefix); err != nil {
		return err
	}
	b.listened = true
	return nil
}

func (b *Bridge) register(replyTopic string) (chan contracts.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBridgeClosed
	}
	ch := make(chan contracts.Message, 1)
	b.pending[replyTopic] = ch
	return ch, nil
}

func (b *Bridge) unregister(replyTopic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, replyTopic)
}

// Pending returns the number of requests waiting for a reply
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Intercept implements interceptors.Interceptor. Replies are consumed; a reply
// nobody waits for any more is dropped.
func (b *Bridge) Intercept(ctx context.Context, d interceptors.Delivery, next interceptors.MessageHandler) error {
	if !strings.HasPrefix(d.Topic, b.prefix) {
		return next.Handle(ctx, d)
	}

	b.mu.Lock()
	ch, ok := b.pending[d.Topic]
	delete(b.pending, d.Topic)
	b.mu.Unlock()

	if !ok {
		b.logger.Debug("dropping late reply", "topic", d.Topic, "sender", d.Message.Sender)
		return nil
	}
	ch <- d.Message
	return nil
}

// Name implements interceptors.Interceptor
func (b *Bridge) Name() string {
	return "bridge"
}

// Close fails every pending request
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for topic, ch := range b.pending {
		close(ch)
		delete(b.pending, topic)
	}
	return nil
}
