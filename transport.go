package alfred

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alfredmq/alfred-go/config"
	"github.com/alfredmq/alfred-go/messaging"
	rabbitmqTransport "github.com/alfredmq/alfred-go/transports/rabbitmq"
	redisTransport "github.com/alfredmq/alfred-go/transports/redis"
	"github.com/alfredmq/alfred-go/transports/zeromq"
)

// NewTransport connects the transport selected by cfg.Alfred.Transport
func NewTransport(ctx context.Context, cfg *config.Config, logger *slog.Logger) (messaging.Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Alfred.Transport {
	case config.TransportZeroMQ, "":
		return zeromq.NewTransport(cfg.SubEndpoint(), cfg.PubEndpoint(), zeromq.WithLogger(logger))
	case config.TransportAMQP:
		return rabbitmqTransport.NewTransport(ctx, cfg.Alfred.URL, rabbitmqTransport.WithLogger(logger))
	case config.TransportRedis:
		return redisTransport.NewTransport(ctx, cfg.Alfred.URL, redisTransport.WithLogger(logger))
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownTransport, cfg.Alfred.Transport)
	}
}
