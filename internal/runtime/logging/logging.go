// Package logging adapts slog and Watermill loggers to the ServiceLogger used
// across reportflow.
package logging

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
)

// LogFields represents structured logging key/value pairs.
type LogFields map[string]any

// ServiceLogger is the logging contract shared by the dispatch core, the
// reporting consumer and the Watermill router. Its shape matches
// watermill.LoggerAdapter so a single logger can serve all of them.
type ServiceLogger interface {
	With(fields LogFields) ServiceLogger
	Debug(msg string, fields LogFields)
	Info(msg string, fields LogFields)
	Error(msg string, err error, fields LogFields)
	Trace(msg string, fields LogFields)
}

// slog has no trace level; Watermill maps trace onto debug unless told otherwise.
var slogLevels = map[slog.Level]slog.Level{
	slog.LevelDebug: slog.LevelDebug,
	slog.LevelInfo:  slog.LevelInfo,
	slog.LevelWarn:  slog.LevelWarn,
	slog.LevelError: slog.LevelError,
}

// NewSlogServiceLogger wraps a slog.Logger.
func NewSlogServiceLogger(log *slog.Logger) ServiceLogger {
	if log == nil {
		panic("reportflow: slog logger cannot be nil")
	}
	return wrapped{watermill.NewSlogLoggerWithLevelMapping(log, slogLevels)}
}

// NewWatermillServiceLogger wraps an existing Watermill LoggerAdapter.
func NewWatermillServiceLogger(logger watermill.LoggerAdapter) ServiceLogger {
	if logger == nil {
		panic("reportflow: watermill logger cannot be nil")
	}
	return wrapped{logger}
}

// NewNopServiceLogger discards every entry.
func NewNopServiceLogger() ServiceLogger {
	return wrapped{watermill.NopLogger{}}
}

// OrNop returns log, or a discarding logger when log is nil.
func OrNop(log ServiceLogger) ServiceLogger {
	if log == nil {
		return NewNopServiceLogger()
	}
	return log
}

// NewWatermillAdapter exposes log to the router and the transports.
func NewWatermillAdapter(log ServiceLogger) watermill.LoggerAdapter {
	if log == nil {
		panic("reportflow: ServiceLogger cannot be nil")
	}
	if w, ok := log.(wrapped); ok {
		return w.adapter
	}
	return exposed{log}
}

// wrapped presents a Watermill adapter as a ServiceLogger.
type wrapped struct {
	adapter watermill.LoggerAdapter
}

func (w wrapped) With(fields LogFields) ServiceLogger {
	return wrapped{w.adapter.With(watermill.LogFields(orNil(fields)))}
}

func (w wrapped) Debug(msg string, fields LogFields) {
	w.adapter.Debug(msg, watermill.LogFields(orNil(fields)))
}

func (w wrapped) Info(msg string, fields LogFields) {
	w.adapter.Info(msg, watermill.LogFields(orNil(fields)))
}

func (w wrapped) Error(msg string, err error, fields LogFields) {
	w.adapter.Error(msg, err, watermill.LogFields(orNil(fields)))
}

func (w wrapped) Trace(msg string, fields LogFields) {
	w.adapter.Trace(msg, watermill.LogFields(orNil(fields)))
}

// exposed presents a ServiceLogger as a Watermill adapter.
type exposed struct {
	base ServiceLogger
}

func (e exposed) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return exposed{e.base.With(LogFields(orNil(fields)))}
}

func (e exposed) Debug(msg string, fields watermill.LogFields) {
	e.base.Debug(msg, LogFields(orNil(fields)))
}

func (e exposed) Info(msg string, fields watermill.LogFields) {
	e.base.Info(msg, LogFields(orNil(fields)))
}

func (e exposed) Error(msg string, err error, fields watermill.LogFields) {
	e.base.Error(msg, err, LogFields(orNil(fields)))
}

func (e exposed) Trace(msg string, fields watermill.LogFields) {
	e.base.Trace(msg, LogFields(orNil(fields)))
}

func orNil[M ~map[string]any](fields M) M {
	if len(fields) == 0 {
		return nil
	}
	return fields
}
