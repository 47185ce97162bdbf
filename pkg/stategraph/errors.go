package stategraph

import (
	"errors"
	"fmt"
)

// ErrGraphNotFound is returned when no graph is registered for an entity type.
var ErrGraphNotFound = errors.New("no state graph registered for entity type")

// ConfigError reports a structural defect in a graph definition. It is
// fatal at startup and never produced at runtime.
type ConfigError struct {
	EntityType string
	Reason     string
}

func (e *ConfigError) Error() string {
	if e.EntityType == "" {
		return fmt.Sprintf("invalid state graph: %s", e.Reason)
	}
	return fmt.Sprintf("invalid state graph for %q: %s", e.EntityType, e.Reason)
}

func newConfigError(entityType, reason string) *ConfigError {
	return &ConfigError{EntityType: entityType, Reason: reason}
}

// IsConfigError reports whether err is a graph configuration error.
func IsConfigError(err error) bool {
	var e *ConfigError
	return errors.As(err, &e)
}
