package interceptors

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alfredmq/alfred-go/contracts"
)

// DeliveryFilter decides whether a delivery should reach the application
type DeliveryFilter interface {
	ShouldProcess(ctx context.Context, d Delivery) (bool, error)
}

// DeliveryFilterFunc is a function adapter for DeliveryFilter
type DeliveryFilterFunc func(ctx context.Context, d Delivery) (bool, error)

// ShouldProcess implements DeliveryFilter
func (f DeliveryFilterFunc) ShouldProcess(ctx context.Context, d Delivery) (bool, error) {
	return f(ctx, d)
}

// SkipBehavior defines what happens when a delivery is filtered out
type SkipBehavior int

const (
	// SkipSilently drops the delivery
	SkipSilently SkipBehavior = iota
	// SkipWithError returns an error when a delivery is filtered
	SkipWithError
	// SkipWithLog logs that the delivery was dropped
	SkipWithLog
)

// FilteringInterceptor drops deliveries rejected by its filter
type FilteringInterceptor struct {
	filter       DeliveryFilter
	skipBehavior SkipBehavior
	logger       *slog.Logger
}

// NewFilteringInterceptor creates a new filtering interceptor
func NewFilteringInterceptor(filter DeliveryFilter, skipBehavior SkipBehavior) *FilteringInterceptor {
	return &FilteringInterceptor{
		filter:       filter,
		skipBehavior: skipBehavior,
		logger:       slog.Default(),
	}
}

// WithLogger sets the logger used by SkipWithLog
func (i *FilteringInterceptor) WithLogger(logger *slog.Logger) *FilteringInterceptor {
	if logger != nil {
		i.logger = logger
	}
	return i
}

// Intercept implements Interceptor
func (i *FilteringInterceptor) Intercept(ctx context.Context, d Delivery, next MessageHandler) error {
	shouldProcess, err := i.filter.ShouldProcess(ctx, d)
	if err != nil {
		return fmt.Errorf("filter error: %w", err)
	}

	if !shouldProcess {
		switch i.skipBehavior {
		case SkipWithError:
			return fmt.Errorf("delivery filtered: topic=%s, type=%s", d.Topic, d.Message.Type)
		case SkipWithLog:
			i.logger.Info("delivery filtered", "topic", d.Topic, "messageType", d.Message.Type.String())
			return nil
		default:
			return nil
		}
	}

	return next.Handle(ctx, d)
}

// Name implements Interceptor
func (i *FilteringInterceptor) Name() string {
	return "FilteringInterceptor"
}

// TopicPrefixFilter accepts deliveries whose topic starts with one of its prefixes
type TopicPrefixFilter struct {
	prefixes []string
}

// NewTopicPrefixFilter creates a topic filter
func NewTopicPrefixFilter(prefixes ...string) *TopicPrefixFilter {
	return &TopicPrefixFilter{prefixes: prefixes}
}

// ShouldProcess implements DeliveryFilter
func (f *TopicPrefixFilter) ShouldProcess(_ context.Context, d Delivery) (bool, error) {
	for _, p := range f.prefixes {
		if strings.HasPrefix(d.Topic, p) {
			return true, nil
		}
	}
	return false, nil
}

// MessageTypeFilter accepts only the given message types
type MessageTypeFilter struct {
	allowedTypes map[contracts.MessageType]bool
}

// NewMessageTypeFilter creates a filter that only allows specific message types
func NewMessageTypeFilter(allowedTypes ...contracts.MessageType) *MessageTypeFilter {
	typeMap := make(map[contracts.MessageType]bool)
	for _, t := range allowedTypes {
		typeMap[t] = true
	}
	return &MessageTypeFilter{allowedTypes: typeMap}
}

// ShouldProcess implements DeliveryFilter
func (f *MessageTypeFilter) ShouldProcess(_ context.Context, d Delivery) (bool, error) {
	return f.allowedTypes[d.Message.Type], nil
}

// NotFilter inverts another filter
type NotFilter struct {
	filter DeliveryFilter
}

// NewNotFilter creates a filter that accepts what filter rejects
func NewNotFilter(filter DeliveryFilter) *NotFilter {
	return &NotFilter{filter: filter}
}

// ShouldProcess implements DeliveryFilter
func (f *NotFilter) ShouldProcess(ctx context.Context, d Delivery) (bool, error) {
	ok, err := f.filter.ShouldProcess(ctx, d)
	if err != nil {
		return false, err
	}
	return !ok, nil
}
