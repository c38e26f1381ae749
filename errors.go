package spl

import (
	"errors"
	"fmt"
)

// ErrState is returned when a thruster is propagated without having been commanded on that step.
var ErrState = errors.New("propagate called before any command was set")

// ConfigurationError reports an invalid or missing numeric parameter.
type ConfigurationError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s (%g): %s", e.Field, e.Value, e.Reason)
}

// UnsupportedProfileError is returned for burn shapes which have no closed form without lag.
type UnsupportedProfileError struct {
	Shape BurnShape
}

func (e *UnsupportedProfileError) Error() string {
	return fmt.Sprintf("%s burn shape requires a non zero lag time", e.Shape)
}

func newConfigurationError(field string, value float64, reason string) error {
	return &ConfigurationError{Field: field, Value: value, Reason: reason}
}
