// Package config resolves the alfred configuration.
//
// Values come from a TOML file (config.toml, or the path in ALFRED_CONFIG when that
// file exists) and from ALFRED_* environment variables, which take precedence:
//
//	[alfred]
//	url = "tcp://localhost"
//	pub_port = 5556
//	sub_port = 5555
//	modules = ["routing", "cron"]
//
//	[telegram]
//	bot_token = "..."
//
// The table named after a module holds its own settings, read with Config.ModuleValue.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	// DefaultFilename is read from the working directory
	DefaultFilename = "config.toml"
	// DefaultTmpDir is used when tmp_dir is not configured
	DefaultTmpDir = "/tmp"
	// ConfigPathEnv names an alternative config file
	ConfigPathEnv = "ALFRED_CONFIG"
)

// Supported transports
const (
	TransportZeroMQ = "zeromq"
	TransportAMQP   = "amqp"
	TransportRedis  = "redis"
)

const (
	keyURL       = "alfred.url"
	keyPubPort   = "alfred.pub_port"
	keySubPort   = "alfred.sub_port"
	keyTmpDir    = "alfred.tmp_dir"
	keyTransport = "alfred.transport"
	keyModules   = "alfred.modules"
)

var envBindings = map[string]string{
	keyURL:       "ALFRED_URL",
	keyPubPort:   "ALFRED_PUB_PORT",
	keySubPort:   "ALFRED_SUB_PORT",
	keyTmpDir:    "ALFRED_TMP_DIR",
	keyTransport: "ALFRED_TRANSPORT",
}

// AlfredConfig is the [alfred] table
type AlfredConfig struct {
	URL       string
	PubPort   int
	SubPort   int
	TmpDir    string
	Transport string
	Modules   []string
}

// Config is the resolved configuration of one process
type Config struct {
	Alfred AlfredConfig
	module map[string]string
}

// New builds a Config without reading files or the environment
func New(alfred AlfredConfig, module map[string]string) *Config {
	if alfred.TmpDir == "" {
		alfred.TmpDir = DefaultTmpDir
	}
	if alfred.Transport == "" {
		alfred.Transport = TransportZeroMQ
	}
	return &Config{Alfred: alfred, module: maps.Clone(module)}
}

type loader struct {
	path   string
	module string
}

// Option configures Load
type Option func(*loader)

// WithFile reads the given file instead of the default lookup
func WithFile(path string) Option {
	return func(l *loader) {
		l.path = path
	}
}

// WithModule selects the module table to expose through ModuleValue
func WithModule(name string) Option {
	return func(l *loader) {
		l.module = name
	}
}

// Load resolves the configuration. A missing file is not an error as long as the
// environment supplies the required values.
func Load(opts ...Option) (*Config, error) {
	l := &loader{}
	for _, opt := range opts {
		opt(l)
	}
	if l.path == "" {
		l.path = filename()
	}

	v := viper.New()
	v.SetConfigFile(l.path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", l.path, err)
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	v.SetDefault(keyTmpDir, DefaultTmpDir)
	v.SetDefault(keyTransport, TransportZeroMQ)

	alfred, err := readAlfred(v)
	if err != nil {
		return nil, err
	}

	cfg := &Config{Alfred: alfred, module: map[string]string{}}
	if l.module != "" {
		for k, raw := range v.GetStringMap(l.module) {
			cfg.module[k] = cast.ToString(raw)
		}
	}
	return cfg, nil
}

func filename() string {
	if path := os.Getenv(ConfigPathEnv); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return DefaultFilename
}

func readAlfred(v *viper.Viper) (AlfredConfig, error) {
	cfg := AlfredConfig{
		URL:       cast.ToString(v.Get(keyURL)),
		TmpDir:    cast.ToString(v.Get(keyTmpDir)),
		Transport: strings.ToLower(cast.ToString(v.Get(keyTransport))),
	}
	if cfg.URL == "" {
		return cfg, &ConfigError{Key: keyURL, Err: ErrMissingValue}
	}

	switch cfg.Transport {
	case TransportZeroMQ, TransportAMQP, TransportRedis:
	default:
		return cfg, &ConfigError{Key: keyTransport, Err: fmt.Errorf("%w: %q", ErrUnknownTransport, cfg.Transport)}
	}

	var err error
	if cfg.PubPort, err = readPort(v, keyPubPort, cfg.Transport == TransportZeroMQ); err != nil {
		return cfg, err
	}
	if cfg.SubPort, err = readPort(v, keySubPort, cfg.Transport == TransportZeroMQ); err != nil {
		return cfg, err
	}

	if raw := v.Get(keyModules); raw != nil {
		modules, err := cast.ToStringSliceE(raw)
		if err != nil {
			return cfg, &ConfigError{Key: keyModules, Err: fmt.Errorf("%w: %v", ErrInvalidValue, err)}
		}
		cfg.Modules = modules
	}
	return cfg, nil
}

func readPort(v *viper.Viper, key string, required bool) (int, error) {
	raw := v.Get(key)
	if raw == nil || raw == "" {
		if required {
			return 0, &ConfigError{Key: key, Err: ErrMissingValue}
		}
		return 0, nil
	}
	port, err := cast.ToIntE(raw)
	if err != nil || port <= 0 || port > 65535 {
		return 0, &ConfigError{Key: key, Err: fmt.Errorf("%w: %v", ErrInvalidValue, raw)}
	}
	return port, nil
}

// PubEndpoint is where messages are published (url:pub_port)
func (c *Config) PubEndpoint() string {
	return fmt.Sprintf("%s:%d", c.Alfred.URL, c.Alfred.PubPort)
}

// SubEndpoint is where messages are received from (url:sub_port)
func (c *Config) SubEndpoint() string {
	return fmt.Sprintf("%s:%d", c.Alfred.URL, c.Alfred.SubPort)
}

// ModuleValue returns a setting from the module's own table
func (c *Config) ModuleValue(key string) (string, bool) {
	v, ok := c.module[strings.ToLower(key)]
	return v, ok
}

// ModuleValues returns a copy of the module's table
func (c *Config) ModuleValues() map[string]string {
	return maps.Clone(c.module)
}
