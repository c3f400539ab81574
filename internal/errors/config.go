package errors

import (
	stdErrors "errors"
	"fmt"
)

// ConfigError represents a configuration value that could not be parsed or
// is out of range. The run cannot continue with it.
type ConfigError struct {
	Key    string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s=%v: %s", e.Key, e.Value, e.Reason)
}

// NewConfigError creates a ConfigError for key.
func NewConfigError(key string, value any, reason string) *ConfigError {
	return &ConfigError{Key: key, Value: value, Reason: reason}
}

// IsConfigError reports whether err is a ConfigError (even when wrapped).
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return stdErrors.As(err, &cfgErr)
}
