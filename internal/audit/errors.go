package audit

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches invalid scheduler or engine settings.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvariant matches contract violations by the caller, such as a
	// report requested for a path that has no outcome.
	ErrInvariant = errors.New("invariant violation")
)

// ConfigurationError names the offending setting.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

func invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}
