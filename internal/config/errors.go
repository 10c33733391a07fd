package config

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingSecret marks a required credential that was not supplied.
	ErrMissingSecret = errors.New("missing required secret")
	// ErrInvalidConfig marks a value that is present but unusable.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ConfigurationError describes one configuration problem. Any
// ConfigurationError is fatal at startup.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func missing(field, env string) error {
	return &ConfigurationError{
		Field: field,
		Err:   fmt.Errorf("%w (set %s)", ErrMissingSecret, env),
	}
}

func invalid(field, format string, args ...any) error {
	return &ConfigurationError{
		Field: field,
		Err:   fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)),
	}
}
