package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alfredmq/alfred-go/contracts"
)

// PrometheusCollector implements messaging.MetricsCollector with Prometheus counters
type PrometheusCollector struct {
	received  *prometheus.CounterVec
	published *prometheus.CounterVec
	errors    *prometheus.CounterVec
	peers     prometheus.Gauge
}

// NewPrometheusCollector registers the alfred metrics on reg
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	c := &PrometheusCollector{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alfred",
			Name:      "messages_received_total",
			Help:      "Messages decoded from the bus.",
		}, []string{"topic", "type"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alfred",
			Name:      "messages_published_total",
			Help:      "Messages published to the bus.",
		}, []string{"topic", "type"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alfred",
			Name:      "errors_total",
			Help:      "Connection failures by operation.",
		}, []string{"op"}),
		peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "alfred",
			Name:      "peers",
			Help:      "Modules known from discovery.",
		}),
	}

	for _, collector := range []prometheus.Collector{c.received, c.published, c.errors, c.peers} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RecordReceived implements messaging.MetricsCollector
func (c *PrometheusCollector) RecordReceived(topic string, messageType contracts.MessageType) {
	c.received.WithLabelValues(topic, messageType.String()).Inc()
}

// RecordPublished implements messaging.MetricsCollector
func (c *PrometheusCollector) RecordPublished(topic string, messageType contracts.MessageType) {
	c.published.WithLabelValues(topic, messageType.String()).Inc()
}

// RecordError implements messaging.MetricsCollector
func (c *PrometheusCollector) RecordError(op string) {
	c.errors.WithLabelValues(op).Inc()
}

// SetPeers records the size of a peer directory
func (c *PrometheusCollector) SetPeers(n int) {
	c.peers.Set(float64(n))
}

// MetricsHandler serves the metrics gathered by g
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
