package messaging

import (
	"github.com/alfredmq/alfred-go/contracts"
)

// MetricsCollector collects connection metrics
type MetricsCollector interface {
	// RecordReceived records a decoded inbound message
	RecordReceived(topic string, messageType contracts.MessageType)

	// RecordPublished records an outbound message
	RecordPublished(topic string, messageType contracts.MessageType)

	// RecordError records a failure in the given operation
	RecordError(op string)
}

// NoOpMetricsCollector is a no-op implementation of MetricsCollector
type NoOpMetricsCollector struct{}

// RecordReceived does nothing
func (n *NoOpMetricsCollector) RecordReceived(topic string, messageType contracts.MessageType) {}

// RecordPublished does nothing
func (n *NoOpMetricsCollector) RecordPublished(topic string, messageType contracts.MessageType) {}

// RecordError does nothing
func (n *NoOpMetricsCollector) RecordError(op string) {}

// ModuleInfo describes the module a connection speaks for
type ModuleInfo interface {
	Name() string
	Capabilities() map[string]string
}
