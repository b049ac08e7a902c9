package interceptors

import (
	"context"
	"log/slog"

	"github.com/alfredmq/alfred-go/contracts"
)

// Delivery is a message together with the topic it arrived on
type Delivery struct {
	Topic   string
	Message contracts.Message
}

// Source yields raw deliveries
type Source interface {
	Receive(ctx context.Context) (string, contracts.Message, error)
}

// MessageHandler represents a handler in the interceptor chain
type MessageHandler interface {
	Handle(ctx context.Context, d Delivery) error
}

// MessageHandlerFunc is a function adapter for MessageHandler
type MessageHandlerFunc func(ctx context.Context, d Delivery) error

// Handle implements MessageHandler
func (f MessageHandlerFunc) Handle(ctx context.Context, d Delivery) error {
	return f(ctx, d)
}

// Interceptor inspects a delivery before it reaches the application
type Interceptor interface {
	// Intercept processes a delivery and calls next to pass it on
	Intercept(ctx context.Context, d Delivery, next MessageHandler) error

	// Name returns the interceptor name for logging and debugging
	Name() string
}

// InterceptorFunc is a function adapter for Interceptor
type InterceptorFunc struct {
	name string
	fn   func(ctx context.Context, d Delivery, next MessageHandler) error
}

// NewInterceptorFunc creates a new function-based interceptor
func NewInterceptorFunc(name string, fn func(ctx context.Context, d Delivery, next MessageHandler) error) *InterceptorFunc {
	return &InterceptorFunc{name: name, fn: fn}
}

// Intercept implements Interceptor
func (i *InterceptorFunc) Intercept(ctx context.Context, d Delivery, next MessageHandler) error {
	return i.fn(ctx, d, next)
}

// Name implements Interceptor
func (i *InterceptorFunc) Name() string {
	return i.name
}

// InterceptorChain manages a chain of interceptors
type InterceptorChain struct {
	interceptors []Interceptor
	logger       *slog.Logger
}

// NewInterceptorChain creates a new interceptor chain
func NewInterceptorChain(logger *slog.Logger) *InterceptorChain {
	if logger == nil {
		logger = slog.Default()
	}

	return &InterceptorChain{
		interceptors: make([]Interceptor, 0),
		logger:       logger,
	}
}

// Add adds an interceptor to the chain
func (c *InterceptorChain) Add(interceptor Interceptor) *InterceptorChain {
	c.interceptors = append(c.interceptors, interceptor)
	return c
}

// Len returns the number of interceptors
func (c *InterceptorChain) Len() int {
	return len(c.interceptors)
}

// Execute runs d through the chain, ending at finalHandler
func (c *InterceptorChain) Execute(ctx context.Context, d Delivery, finalHandler MessageHandler) error {
	if len(c.interceptors) == 0 {
		return finalHandler.Handle(ctx, d)
	}

	// Build the chain in reverse order
	handler := finalHandler
	for i := len(c.interceptors) - 1; i >= 0; i-- {
		interceptor := c.interceptors[i]
		currentHandler := handler
		handler = MessageHandlerFunc(func(ctx context.Context, d Delivery) error {
			return interceptor.Intercept(ctx, d, currentHandler)
		})
	}

	return handler.Handle(ctx, d)
}

// Receive pulls deliveries from source until one passes the whole chain.
// Consumed deliveries are skipped silently; errors from the source or from
// an interceptor end the call.
func (c *InterceptorChain) Receive(ctx context.Context, source Source) (string, contracts.Message, error) {
	for {
		topic, msg, err := source.Receive(ctx)
		if err != nil {
			return "", contracts.Message{}, err
		}

		var (
			out       Delivery
			delivered bool
		)
		final := MessageHandlerFunc(func(_ context.Context, d Delivery) error {
			out = d
			delivered = true
			return nil
		})

		if err := c.Execute(ctx, Delivery{Topic: topic, Message: msg}, final); err != nil {
			return "", contracts.Message{}, err
		}
		if delivered {
			return out.Topic, out.Message, nil
		}
		c.logger.Debug("delivery consumed by interceptor", "topic", topic)
	}
}

// LoggingInterceptor logs every delivery
type LoggingInterceptor struct {
	logger *slog.Logger
}

// NewLoggingInterceptor creates a new logging interceptor
func NewLoggingInterceptor(logger *slog.Logger) *LoggingInterceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return &LoggingInterceptor{logger: logger}
}

// Intercept implements Interceptor
func (i *LoggingInterceptor) Intercept(ctx context.Context, d Delivery, next MessageHandler) error {
	i.logger.Debug("message received",
		"topic", d.Topic,
		"messageType", d.Message.Type.String(),
		"sender", d.Message.Sender,
	)

	err := next.Handle(ctx, d)
	if err != nil {
		i.logger.Error("message interception failed",
			"topic", d.Topic,
			"error", err,
		)
	}
	return err
}

// Name implements Interceptor
func (i *LoggingInterceptor) Name() string {
	return "LoggingInterceptor"
}
