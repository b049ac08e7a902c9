package zeromq

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/alfredmq/alfred-go/messaging"
)

// Transport implements messaging.Transport with a SUB and a PUB socket
type Transport struct {
	cancel     context.CancelFunc
	publisher  *publisher
	subscriber *subscriber
	logger     *slog.Logger
}

// TransportConfig holds configuration for the transport
type TransportConfig struct {
	Logger        *slog.Logger
	SocketOptions []zmq4.Option
}

// TransportOption configures the transport
type TransportOption func(*TransportConfig)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) TransportOption {
	return func(cfg *TransportConfig) {
		if logger != nil {
			cfg.Logger = logger
		}
	}
}

// WithSocketOptions passes options to both sockets
func WithSocketOptions(opts ...zmq4.Option) TransportOption {
	return func(cfg *TransportConfig) {
		cfg.SocketOptions = append(cfg.SocketOptions, opts...)
	}
}

// NewTransport dials the broker. subEndpoint is where messages are received
// from, pubEndpoint is where they are published to (e.g. "tcp://localhost:5556").
func NewTransport(subEndpoint, pubEndpoint string, options ...TransportOption) (*Transport, error) {
	cfg := &TransportConfig{Logger: slog.Default()}
	for _, opt := range options {
		opt(cfg)
	}

	// sockets outlive any request context; Close cancels them
	ctx, cancel := context.WithCancel(context.Background())

	sub := zmq4.NewSub(ctx, cfg.SocketOptions...)
	if err := sub.Dial(subEndpoint); err != nil {
		cancel()
		sub.Close()
		return nil, &messaging.ConnectionError{Op: "dial subscriber", Endpoint: subEndpoint, Err: err, Timestamp: time.Now()}
	}
	cfg.Logger.Debug("connected as subscriber", "endpoint", subEndpoint)

	pub := zmq4.NewPub(ctx, cfg.SocketOptions...)
	if err := pub.Dial(pubEndpoint); err != nil {
		cancel()
		sub.Close()
		pub.Close()
		return nil, &messaging.ConnectionError{Op: "dial publisher", Endpoint: pubEndpoint, Err: err, Timestamp: time.Now()}
	}
	cfg.Logger.Debug("connected as publisher", "endpoint", pubEndpoint)

	s := &subscriber{
		sock:       sub,
		deliveries: make(chan zmq4.Msg),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	go s.run()

	return &Transport{
		cancel:     cancel,
		publisher:  &publisher{sock: pub},
		subscriber: s,
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

// Close implements messaging.Transport
func (t *Transport) Close() error {
	err := errors.Join(t.publisher.Close(), t.subscriber.Close())
	t.cancel()
	return err
}

type publisher struct {
	sock      zmq4.Socket
	closeOnce sync.Once
}

func (p *publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.sock.Send(zmq4.NewMsgFrom([]byte(topic), payload))
}

func (p *publisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.sock.Close()
	})
	return err
}

type subscriber struct {
	sock       zmq4.Socket
	deliveries chan zmq4.Msg
	done       chan struct{}
	stopped    chan struct{}
	err        error // written before stopped is closed
	closeOnce  sync.Once
}

// run pumps messages from the socket so that Receive can honour its context
func (s *subscriber) run() {
	defer close(s.stopped)
	for {
		msg, err := s.sock.Recv()
		if err != nil {
			select {
			case <-s.done:
				s.err = messaging.ErrTransportClosed
			default:
				s.err = err
			}
			return
		}
		select {
		case s.deliveries <- msg:
		case <-s.done:
			s.err = messaging.ErrTransportClosed
			return
		}
	}
}

func (s *subscriber) Subscribe(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.done:
		return messaging.ErrTransportClosed
	default:
	}
	return s.sock.SetOption(zmq4.OptionSubscribe, prefix)
}

func (s *subscriber) Receive(ctx context.Context) ([][]byte, error) {
	select {
	case msg := <-s.deliveries:
		return msg.Frames, nil
	case <-s.stopped:
		return nil, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *subscriber) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.sock.Close()
	})
	return err
}
