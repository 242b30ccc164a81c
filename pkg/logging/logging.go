// Package logging provides the chaining Event/Logger API used throughout the
// decoders, backed by zerolog.
//
// API inspired by the chaining logger in this module's ancestor, rebacked by
// zerolog instead of a SQLite sink since telemetry extraction has no
// persistence layer of its own.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger and exposes the Event-chaining entry points.
type Logger struct {
	zl zerolog.Logger
}

// New returns a Logger writing to w. Pass nil for a console-pretty writer on
// stderr, matching the teacher's default of a human-readable sink.
func New(w io.Writer) *Logger {
	if w == nil {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	}
	return &Logger{zl: zerolog.New(w).With().Timestamp().Logger()}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// Event wraps a zerolog.Event, adding the field setters decoders use.
type Event struct {
	ev *zerolog.Event
}

// Debug starts a debug-level event.
func (l *Logger) Debug() *Event { return &Event{ev: l.zl.Debug()} }

// Info starts an info-level event.
func (l *Logger) Info() *Event { return &Event{ev: l.zl.Info()} }

// Warn starts a warning-level event.
func (l *Logger) Warn() *Event { return &Event{ev: l.zl.Warn()} }

// Error starts an error-level event, attaching err.
func (l *Logger) Error(err error) *Event { return &Event{ev: l.zl.Error().Err(err)} }

// Decoder tags the event with the vendor decoder that emitted it.
func (e *Event) Decoder(name string) *Event {
	e.ev = e.ev.Str("decoder", name)
	return e
}

// Track tags the event with an MP4 track ID.
func (e *Event) Track(id uint32) *Event {
	e.ev = e.ev.Uint32("track", id)
	return e
}

// Offset tags the event with a byte offset into the input.
func (e *Event) Offset(o int64) *Event {
	e.ev = e.ev.Int64("offset", o)
	return e
}

// Sample tags the event with a sample index.
func (e *Event) Sample(i int) *Event {
	e.ev = e.ev.Int("sample", i)
	return e
}

// Str adds an arbitrary string field.
func (e *Event) Str(key, val string) *Event {
	e.ev = e.ev.Str(key, val)
	return e
}

// Msg finalizes and emits the event.
func (e *Event) Msg(msg string) { e.ev.Msg(msg) }

// Msgf finalizes and emits the event with a formatted message.
func (e *Event) Msgf(format string, v ...interface{}) { e.ev.Msgf(format, v...) }
