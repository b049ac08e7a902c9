package alfred

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/alfredmq/alfred-go/config"
	"github.com/alfredmq/alfred-go/contracts"
	"github.com/alfredmq/alfred-go/interceptors"
	"github.com/alfredmq/alfred-go/messaging"
)

// ListenCapability is the capability key listing every topic the module listens to
const ListenCapability = contracts.ListenCapability

// Module is a named participant on the bus
type Module struct {
	name    string
	version string
	config  *config.Config
	conn    *messaging.Connection
	chain   *interceptors.InterceptorChain
	logger  *slog.Logger

	capMu        sync.RWMutex
	capabilities map[string]string
	listened     []string
}

// NewModule connects a module and announces it on module.info.response.
// Without WithConfig the configuration is loaded from config.toml and the
// environment; without WithTransport the transport is built from it.
func NewModule(ctx context.Context, name string, options ...ModuleOption) (*Module, error) {
	cfg := &moduleConfig{
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(cfg)
	}

	if cfg.config == nil {
		loaded, err := config.Load(config.WithModule(name))
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg.config = loaded
	}

	transport := cfg.transport
	if transport == nil {
		var err error
		transport, err = NewTransport(ctx, cfg.config, cfg.logger)
		if err != nil {
			return nil, err
		}
	}

	connOpts := []messaging.ConnectionOption{messaging.WithLogger(cfg.logger)}
	if cfg.metrics != nil {
		connOpts = append(connOpts, messaging.WithMetrics(cfg.metrics))
	}
	if cfg.settleDelay != nil {
		connOpts = append(connOpts, messaging.WithSettleDelay(*cfg.settleDelay))
	}

	conn, err := messaging.NewConnection(ctx, transport, connOpts...)
	if err != nil {
		transport.Close()
		return nil, err
	}

	m := &Module{
		name:         name,
		version:      cfg.version,
		config:       cfg.config,
		conn:         conn,
		logger:       cfg.logger.With("module", name),
		capabilities: maps.Clone(cfg.capabilities),
	}
	if m.capabilities == nil {
		m.capabilities = make(map[string]string)
	}

	m.chain = interceptors.NewInterceptorChain(m.logger)
	m.chain.Add(messaging.NewDiscoveryInterceptor(conn, m))
	for _, interceptor := range cfg.interceptors {
		m.chain.Add(interceptor)
	}

	if err := conn.Send(ctx, contracts.ModuleInfoResponseTopic, m.InfoMessage()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to announce module: %w", err)
	}

	m.logger.Info("module started", "version", m.version)
	return m, nil
}

// Name implements messaging.ModuleInfo
func (m *Module) Name() string {
	return m.name
}

// Version returns the version given with WithVersion
func (m *Module) Version() string {
	return m.version
}

// Config returns the resolved configuration
func (m *Module) Config() *config.Config {
	return m.config
}

// Capabilities implements messaging.ModuleInfo. The returned map is a copy.
func (m *Module) Capabilities() map[string]string {
	m.capMu.RLock()
	defer m.capMu.RUnlock()
	return maps.Clone(m.capabilities)
}

// SetCapability advertises key=value in discovery announcements.
// ListenCapability is managed by Listen and cannot be set.
func (m *Module) SetCapability(key, value string) error {
	if key == ListenCapability {
		return fmt.Errorf("capability %q is reserved", key)
	}
	m.capMu.Lock()
	m.capabilities[key] = value
	m.capMu.Unlock()
	return nil
}

// InfoMessage returns the ModuleInfo message describing the module
func (m *Module) InfoMessage() contracts.Message {
	return contracts.NewModuleInfoMessage(m.name, m.Capabilities())
}

// Listen subscribes to topic and records it under ListenCapability
func (m *Module) Listen(ctx context.Context, topic string) error {
	if err := m.conn.Listen(ctx, topic); err != nil {
		return err
	}

	m.capMu.Lock()
	defer m.capMu.Unlock()
	if !slices.Contains(m.listened, topic) {
		m.listened = append(m.listened, topic)
		m.capabilities[ListenCapability] = strings.Join(m.listened, ",")
	}
	return nil
}

// Receive blocks until the next application message. Discovery requests are
// answered and skipped.
func (m *Module) Receive(ctx context.Context) (string, contracts.Message, error) {
	return m.chain.Receive(ctx, m.conn)
}

// ReceiveAll blocks until the next message, control messages included
func (m *Module) ReceiveAll(ctx context.Context) (string, contracts.Message, error) {
	return m.conn.Receive(ctx)
}

// Send publishes msg on topic
func (m *Module) Send(ctx context.Context, topic string, msg contracts.Message) error {
	return m.conn.Send(ctx, topic, msg)
}

// SendEvent publishes msg on event.<publisherName>.<eventName>
func (m *Module) SendEvent(ctx context.Context, publisherName, eventName string, msg contracts.Message) error {
	return m.conn.SendEvent(ctx, publisherName, eventName, msg)
}

// Reply answers msg on the front of its response chain
func (m *Module) Reply(ctx context.Context, msg contracts.Message, text string, messageType contracts.MessageType) error {
	topic, reply, err := msg.Reply(text, messageType)
	if err != nil {
		return err
	}
	return m.Send(ctx, topic, reply)
}

// Close closes the connection
func (m *Module) Close() error {
	m.logger.Debug("closing module")
	return m.conn.Close()
}

// ModuleOption configures a Module
type ModuleOption func(*moduleConfig)

type moduleConfig struct {
	logger       *slog.Logger
	config       *config.Config
	transport    messaging.Transport
	capabilities map[string]string
	interceptors []interceptors.Interceptor
	settleDelay  *time.Duration
	metrics      messaging.MetricsCollector
	version      string
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ModuleOption {
	return func(cfg *moduleConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithConfig uses cfg instead of loading config.toml
func WithConfig(c *config.Config) ModuleOption {
	return func(cfg *moduleConfig) {
		cfg.config = c
	}
}

// WithTransport uses an already connected transport
func WithTransport(transport messaging.Transport) ModuleOption {
	return func(cfg *moduleConfig) {
		cfg.transport = transport
	}
}

// WithCapabilities sets the initial capabilities
func WithCapabilities(capabilities map[string]string) ModuleOption {
	return func(cfg *moduleConfig) {
		cfg.capabilities = capabilities
	}
}

// WithInterceptors appends receive interceptors after discovery handling
func WithInterceptors(list ...interceptors.Interceptor) ModuleOption {
	return func(cfg *moduleConfig) {
		cfg.interceptors = append(cfg.interceptors, list...)
	}
}

// WithSettleDelay overrides messaging.DefaultSettleDelay
func WithSettleDelay(delay time.Duration) ModuleOption {
	return func(cfg *moduleConfig) {
		cfg.settleDelay = &delay
	}
}

// WithMetrics sets the metrics collector
func WithMetrics(metrics messaging.MetricsCollector) ModuleOption {
	return func(cfg *moduleConfig) {
		cfg.metrics = metrics
	}
}

// WithVersion sets the version reported in logs
func WithVersion(version string) ModuleOption {
	return func(cfg *moduleConfig) {
		cfg.version = version
	}
}
