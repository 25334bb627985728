// Package log provides the logging interface used across Planora.
//
// Components receive a Logger instead of a concrete logging library so
// tests can run silent and the binary can pick the backend. Use Noop to
// disable logging.
package log

// Kv is a helper type for structured logging key-value pairs.
type Kv = map[string]any

// Logger is the interface that all loggers in Planora must satisfy.
type Logger interface {
	Infof(format string, args ...any)
	Warningf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)

	// WithValues returns a new Logger that will log the received
	// key-values on every line.
	WithValues(values Kv) Logger
}

// Noop is a logger that discards everything.
var Noop Logger = noop{}

type noop struct{}

func (noop) Infof(format string, args ...any)     {}
func (noop) Warningf(format string, args ...any)  {}
func (noop) Errorf(format string, args ...any)    {}
func (noop) Debugf(format string, args ...any)    {}
func (n noop) WithValues(values Kv) Logger        { return n }
