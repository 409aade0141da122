package pipeline

import (
	"errors"
	"fmt"
)

// ErrExhausted is returned by a Source after its final event. It is not
// a failure: the chain reacts by draining deferred work and shutting
// down cleanly.
var ErrExhausted = errors.New("source exhausted")

// ErrStop may be returned (possibly wrapped) by a Sink to request a
// graceful chain stop, e.g. after capturing a target number of events.
var ErrStop = errors.New("stop requested")

// ConfigError reports an invalid chain topology or binding layout,
// surfaced at build time before Run.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "chain config: " + e.Msg }

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// SinkError wraps an emission failure. It is recoverable: the chain
// logs it and the tick continues, unless strict sink mode is set.
type SinkError struct {
	Err error
}

func (e *SinkError) Error() string { return "sink emit: " + e.Err.Error() }
func (e *SinkError) Unwrap() error { return e.Err }
