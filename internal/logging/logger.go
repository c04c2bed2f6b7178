// Package logging defines the pluggable logger contract shared by the
// routing, host-connection, and discovery components. It mirrors the
// Printf-style interface the hypercache lineage exposes to its middleware
// so any logger tested against that shape (logrus, zap's SugaredLogger,
// stdlib log.Logger) can be dropped in unchanged.
package logging

import "log"

// Logger is the narrow interface every component logs through. Only a
// single method is required; callers distinguish severity by prefixing the
// format string (e.g. "warn: %s"), matching the convention already used by
// the disconnect/reconnect warnings this client emits.
type Logger interface {
	Printf(format string, v ...any)
}

// Nop discards every message. Used when no logger is configured and the
// caller has not opted into the stdlib default.
type Nop struct{}

// Printf implements Logger by discarding the message.
func (Nop) Printf(string, ...any) {}

// Std adapts the standard library's *log.Logger to the Logger interface.
// Callers opt into it with dache.WithLogger(logging.NewStd()).
type Std struct {
	*log.Logger
}

// NewStd returns a Logger backed by log.Default().
func NewStd() Std {
	return Std{Logger: log.Default()}
}
