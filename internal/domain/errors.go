package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingSeparator = errors.New("missing separator")
	ErrBadTimestamp     = errors.New("invalid timestamp")
	ErrLineTooLong      = errors.New("line exceeds maximum length")
	ErrArchiveExists    = errors.New("archive already exists")
	ErrNoBanMarker      = errors.New("ban list marker not found")
	ErrFiltered         = errors.New("message matches denylist")
)

// ParseError is a raw line that could not become an Event. It is recorded,
// never fatal.
type ParseError struct {
	Line   string
	Reason error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %v: %q", e.Reason, e.Line)
}

func (e *ParseError) Unwrap() error { return e.Reason }

// Sink names carried by PersistenceError.
const (
	SinkIndex    = "index"
	SinkSnapshot = "snapshot"
	SinkBanState = "banstate"
)

// PersistenceError is a failure of one sink. The other sink is still attempted.
type PersistenceError struct {
	Sink string
	Op   string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s sink: %s: %v", e.Sink, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// RotationError aborts a rotation; the live file is left untouched.
type RotationError struct {
	Path  string
	Stage string
	Err   error
}

func (e *RotationError) Error() string {
	return fmt.Sprintf("rotate %s: %s: %v", e.Path, e.Stage, e.Err)
}

func (e *RotationError) Unwrap() error { return e.Err }

// ProviderError is an unreachable or malformed external collaborator.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ConfigError lists every missing or invalid setting found at startup.
type ConfigError struct {
	Missing []string
	Invalid []error
}

func (e *ConfigError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required settings: "+strings.Join(e.Missing, ", "))
	}
	for _, err := range e.Invalid {
		parts = append(parts, err.Error())
	}
	return "config error: " + strings.Join(parts, "; ")
}

func (e *ConfigError) Unwrap() []error { return e.Invalid }

// ErrorClass names the taxonomy bucket of err for log fields and metrics.
func ErrorClass(err error) string {
	var (
		pe  *ParseError
		per *PersistenceError
		re  *RotationError
		pre *ProviderError
		ce  *ConfigError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		return "parse"
	case errors.As(err, &per):
		return "persistence"
	case errors.As(err, &re):
		return "rotation"
	case errors.As(err, &pre):
		return "provider"
	case errors.As(err, &ce):
		return "config"
	default:
		return "internal"
	}
}
