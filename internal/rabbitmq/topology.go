package rabbitmq

import (
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ExchangeName is the topic exchange every alfred message goes through
const ExchangeName = "alfred"

// ExchangeDeclaration defines an exchange to be declared
type ExchangeDeclaration struct {
	Name       string
	Type       string
	Durable    bool
	AutoDelete bool
	Arguments  amqp.Table
}

// QueueDeclaration defines a queue to be declared
type QueueDeclaration struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
	Arguments  amqp.Table
}

// Binding defines a queue-to-exchange binding
type Binding struct {
	Queue      string
	Exchange   string
	RoutingKey string
	Arguments  amqp.Table
}

// Topology represents the complete messaging topology
type Topology struct {
	Exchanges []ExchangeDeclaration
	Queues    []QueueDeclaration
	Bindings  []Binding
}

// TopologyManager declares topology on a channel
type TopologyManager struct {
	ch *amqp.Channel
}

// NewTopologyManager creates a new topology manager
func NewTopologyManager(ch *amqp.Channel) *TopologyManager {
	return &TopologyManager{ch: ch}
}

// DeclareTopology declares the complete topology
func (tm *TopologyManager) DeclareTopology(topology Topology) error {
	for _, exchange := range topology.Exchanges {
		if err := tm.DeclareExchange(exchange); err != nil {
			return err
		}
	}

	for _, queue := range topology.Queues {
		if _, err := tm.DeclareQueue(queue); err != nil {
			return err
		}
	}

	for _, binding := range topology.Bindings {
		if err := tm.BindQueue(binding); err != nil {
			return err
		}
	}

	return nil
}

// DeclareExchange declares a single exchange
func (tm *TopologyManager) DeclareExchange(exchange ExchangeDeclaration) error {
	if exchange.Name == "" || exchange.Type == "" {
		return topologyError("exchange", exchange.Name, "declare", ErrInvalidTopology)
	}
	err := tm.ch.ExchangeDeclare(
		exchange.Name,
		exchange.Type,
		exchange.Durable,
		exchange.AutoDelete,
		false, // internal
		false, // no-wait
		exchange.Arguments,
	)
	if err != nil {
		return topologyError("exchange", exchange.Name, "declare", err)
	}
	return nil
}

// DeclareQueue declares a single queue. An empty name lets the broker pick one.
func (tm *TopologyManager) DeclareQueue(queue QueueDeclaration) (amqp.Queue, error) {
	q, err := tm.ch.QueueDeclare(
		queue.Name,
		queue.Durable,
		queue.AutoDelete,
		queue.Exclusive,
		false, // no-wait
		queue.Arguments,
	)
	if err != nil {
		return q, topologyError("queue", queue.Name, "declare", err)
	}
	return q, nil
}

// BindQueue creates a queue binding
func (tm *TopologyManager) BindQueue(binding Binding) error {
	err := tm.ch.QueueBind(
		binding.Queue,
		binding.RoutingKey,
		binding.Exchange,
		false, // no-wait
		binding.Arguments,
	)
	if err != nil {
		return topologyError("binding", fmt.Sprintf("%s->%s", binding.RoutingKey, binding.Queue), "declare", err)
	}
	return nil
}

// DefaultTopology returns the exchange alfred publishes to
func DefaultTopology() Topology {
	return Topology{
		Exchanges: []ExchangeDeclaration{
			{
				Name:    ExchangeName,
				Type:    amqp.ExchangeTopic,
				Durable: true,
			},
		},
	}
}

// SubscriberQueue returns the private queue of one subscriber
func SubscriberQueue(name string) QueueDeclaration {
	return QueueDeclaration{
		Name:       name,
		AutoDelete: true,
		Exclusive:  true,
	}
}

// BindingKeys maps a topic prefix to topic exchange binding keys.
// The empty prefix matches everything and a prefix ending in a dot matches
// every topic below it.
func BindingKeys(prefix string) []string {
	if prefix == "" {
		return []string{"#"}
	}
	if strings.HasSuffix(prefix, ".") {
		return []string{prefix + "#"}
	}
	return []string{prefix, prefix + ".#"}
}

func topologyError(component, name, op string, err error) error {
	return &TopologyError{
		Component: component,
		Name:      name,
		Op:        op,
		Err:       err,
		Timestamp: time.Now(),
	}
}
