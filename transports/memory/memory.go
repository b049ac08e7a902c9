// Package memory provides an in-process broker and transport.
//
// It follows the same prefix subscription rules as the ZeroMQ broker and is
// meant for tests and for running several modules inside one process.
package memory

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/alfredmq/alfred-go/messaging"
)

// Broker fans published units out to every matching subscriber
type Broker struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
}

// NewBroker creates an empty broker
func NewBroker() *Broker {
	return &Broker{subscribers: make(map[*subscriber]struct{})}
}

// Transport creates a new transport attached to the broker
func (b *Broker) Transport() *Transport {
	sub := &subscriber{
		broker: b,
		notify: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()

	return &Transport{
		pub: &publisher{broker: b},
		sub: sub,
	}
}

func (b *Broker) publish(topic string, payload []byte) {
	frames := [][]byte{[]byte(topic), bytes.Clone(payload)}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subscribers {
		if sub.matches(topic) {
			sub.deliver(frames)
		}
	}
}

func (b *Broker) remove(sub *subscriber) {
	b.mu.Lock()
	delete(b.subscribers, sub)
	b.mu.Unlock()
}

// Transport implements messaging.Transport on top of a Broker
type Transport struct {
	pub *publisher
	sub *subscriber
}

// Publisher implements messaging.Transport
func (t *Transport) Publisher() messaging.TransportPublisher {
	return t.pub
}

// Subscriber implements messaging.Transport
func (t *Transport) Subscriber() messaging.TransportSubscriber {
	return t.sub
}

// Close implements messaging.Transport
func (t *Transport) Close() error {
	t.pub.Close()
	return t.sub.Close()
}

// Deliver queues raw frames on this transport's subscriber as if the broker had sent them
func (t *Transport) Deliver(frames ...[]byte) {
	t.sub.deliver(frames)
}

// FailPublish makes every following Publish return err. A nil err restores normal behaviour.
func (t *Transport) FailPublish(err error) {
	t.pub.mu.Lock()
	t.pub.failure = err
	t.pub.mu.Unlock()
}

// FailSubscribe makes every following Subscribe return err
func (t *Transport) FailSubscribe(err error) {
	t.sub.mu.Lock()
	t.sub.failure = err
	t.sub.mu.Unlock()
}

// Subscriptions returns the prefixes subscribed so far
func (t *Transport) Subscriptions() []string {
	t.sub.mu.Lock()
	defer t.sub.mu.Unlock()
	return slices.Clone(t.sub.prefixes)
}

type publisher struct {
	broker  *Broker
	mu      sync.Mutex
	failure error
	closed  bool
}

func (p *publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	closed, failure := p.closed, p.failure
	p.mu.Unlock()

	if closed {
		return messaging.ErrTransportClosed
	}
	if failure != nil {
		return failure
	}

	p.broker.publish(topic, payload)
	return nil
}

func (p *publisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

type subscriber struct {
	broker    *Broker
	mu        sync.Mutex
	prefixes  []string
	queue     [][][]byte
	failure   error
	notify    chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *subscriber) Subscribe(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case <-s.closed:
		return messaging.ErrTransportClosed
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	if !slices.Contains(s.prefixes, prefix) {
		s.prefixes = append(s.prefixes, prefix)
	}
	return nil
}

func (s *subscriber) matches(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.prefixes {
		if strings.HasPrefix(topic, p) {
			return true
		}
	}
	return false
}

func (s *subscriber) deliver(frames [][]byte) {
	s.mu.Lock()
	s.queue = append(s.queue, frames)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber) Receive(ctx context.Context) ([][]byte, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			frames := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return frames, nil
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-s.closed:
			return nil, messaging.ErrTransportClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *subscriber) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.broker.remove(s)
	})
	return nil
}
