package routing

import (
	"context"
	"log/slog"

	"github.com/alfredmq/alfred-go/contracts"
)

// Endpoint is the part of a module the router needs
type Endpoint interface {
	Listen(ctx context.Context, topic string) error
	Receive(ctx context.Context) (string, contracts.Message, error)
	Send(ctx context.Context, topic string, msg contracts.Message) error
}

// Router runs a Table against an endpoint
type Router struct {
	endpoint Endpoint
	table    *Table
	logger   *slog.Logger
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRouter builds the table and subscribes endpoint to every source topic
func NewRouter(ctx context.Context, endpoint Endpoint, rules []Rule, options ...RouterOption) (*Router, error) {
	table, err := NewTable(rules)
	if err != nil {
		return nil, err
	}

	r := &Router{
		endpoint: endpoint,
		table:    table,
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(r)
	}

	for _, topic := range table.Topics() {
		for _, rule := range table.rules[topic] {
			r.logger.Debug("route", "from", rule.FromTopic, "to", rule.ToTopic, "template", rule.Message != nil)
		}
		if err := endpoint.Listen(ctx, topic); err != nil {
			return nil, err
		}
	}
	r.logger.Info("routing loaded", "rules", table.Len(), "topics", len(table.Topics()))
	return r, nil
}

// Table returns the routing table
func (r *Router) Table() *Table {
	return r.table
}

// Run dispatches received messages until ctx is done or an error occurs
func (r *Router) Run(ctx context.Context) error {
	for {
		topic, msg, err := r.endpoint.Receive(ctx)
		if err != nil {
			return err
		}
		if _, err := r.Dispatch(ctx, topic, msg); err != nil {
			return err
		}
	}
}

// Dispatch sends every output of one message and reports how many were sent
func (r *Router) Dispatch(ctx context.Context, topic string, msg contracts.Message) (int, error) {
	outputs := r.table.Resolve(topic, msg)
	if len(outputs) == 0 {
		r.logger.Debug("no route", "topic", topic)
		return 0, nil
	}
	for i, out := range outputs {
		if err := r.endpoint.Send(ctx, out.Topic, out.Message); err != nil {
			r.logger.Error("failed to forward", "from", topic, "to", out.Topic, "error", err)
			return i, err
		}
		r.logger.Debug("forwarded", "from", topic, "to", out.Topic)
	}
	return len(outputs), nil
}
