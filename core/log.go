package core

import "github.com/rs/zerolog"

// Log is the logging surface of the core state transitions, so callers can
// pass a *zerolog.Logger or a contextual child of one.
type Log interface {
	Debug() *zerolog.Event
	Info() *zerolog.Event
	Warn() *zerolog.Event
	Error() *zerolog.Event
}

var _ Log = (*zerolog.Logger)(nil)
