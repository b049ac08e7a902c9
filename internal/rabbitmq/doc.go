// Package rabbitmq provides the AMQP plumbing behind the alfred RabbitMQ transport.
//
// This package includes:
//   - ConnectionManager: dials the broker with a timeout and hands out channels
//   - TopologyManager: declares exchanges, queues and bindings
//   - Typed errors carrying the failing operation and a sanitized URL
//
// There is no automatic reconnection. A lost connection is logged and every
// later operation fails with ErrConnectionClosed.
package rabbitmq
