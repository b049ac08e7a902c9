package messaging

import (
	"context"
)

// TransportPublisher defines the publishing half of a transport
type TransportPublisher interface {
	// Publish sends one two-frame unit: the topic and the encoded payload
	Publish(ctx context.Context, topic string, payload []byte) error

	// Close closes the publisher
	Close() error
}

// TransportSubscriber defines the subscribing half of a transport.
// Subscribe may be called while another goroutine is blocked in Receive.
type TransportSubscriber interface {
	// Subscribe registers interest in every topic starting with prefix.
	// The empty prefix matches all topics.
	Subscribe(ctx context.Context, prefix string) error

	// Receive blocks until the next unit arrives and returns its frames
	Receive(ctx context.Context) ([][]byte, error)

	// Close closes the subscriber
	Close() error
}

// Transport provides both halves of a broker connection
type Transport interface {
	// Publisher returns the transport publisher
	Publisher() TransportPublisher

	// Subscriber returns the transport subscriber
	Subscriber() TransportSubscriber

	// Close closes all resources
	Close() error
}
