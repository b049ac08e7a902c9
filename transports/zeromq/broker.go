package zeromq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-zeromq/zmq4"
)

// Broker is a passive forwarding proxy: publishers connect to its XSUB
// endpoint and subscribers to its XPUB endpoint
type Broker struct {
	pubEndpoint string
	subEndpoint string
	logger      *slog.Logger
}

// BrokerOption configures a Broker
type BrokerOption func(*Broker)

// WithBrokerLogger sets the broker logger
func WithBrokerLogger(logger *slog.Logger) BrokerOption {
	return func(b *Broker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBroker creates a broker bound on all interfaces at the given ports
func NewBroker(pubPort, subPort int, options ...BrokerOption) *Broker {
	return NewBrokerWithEndpoints(
		fmt.Sprintf("tcp://*:%d", pubPort),
		fmt.Sprintf("tcp://*:%d", subPort),
		options...,
	)
}

// NewBrokerWithEndpoints creates a broker bound to explicit endpoints
func NewBrokerWithEndpoints(pubEndpoint, subEndpoint string, options ...BrokerOption) *Broker {
	b := &Broker{
		pubEndpoint: pubEndpoint,
		subEndpoint: subEndpoint,
		logger:      slog.Default(),
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Run binds both endpoints and forwards traffic until ctx is cancelled
func (b *Broker) Run(ctx context.Context) error {
	xsub := zmq4.NewXSub(ctx)
	defer xsub.Close()
	xpub := zmq4.NewXPub(ctx)
	defer xpub.Close()

	b.logger.Info("binding publish endpoint", "endpoint", b.pubEndpoint)
	if err := xsub.Listen(b.pubEndpoint); err != nil {
		return fmt.Errorf("failed to bind %s: %w", b.pubEndpoint, err)
	}
	b.logger.Info("binding subscribe endpoint", "endpoint", b.subEndpoint)
	if err := xpub.Listen(b.subEndpoint); err != nil {
		return fmt.Errorf("failed to bind %s: %w", b.subEndpoint, err)
	}

	proxy := zmq4.NewProxy(ctx, xsub, xpub, nil)
	err := proxy.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
