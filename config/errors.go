package config

import (
	"errors"
	"fmt"
)

var (
	ErrMissingValue     = errors.New("config: missing value")
	ErrInvalidValue     = errors.New("config: invalid value")
	ErrUnknownTransport = errors.New("config: unknown transport")
)

// ConfigError reports the configuration key that could not be resolved
type ConfigError struct {
	Key string // Dotted key, e.g. alfred.url
	Err error  // Underlying error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
