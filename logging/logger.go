package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// GlobalLogger is the root Logger for the whole process. It is disabled by default; an
// application enables it once and every package derives its own sub-logger from it so log
// output stays grep-able by module.
var GlobalLogger = NewLogger(zerolog.Disabled)

// Logger wraps zerolog with two sinks: a multi-writer logger for structured output to arbitrary
// channels and a console logger with human-oriented formatting. Either may be disabled.
type Logger struct {
	// level is the current log level applied to both sinks.
	level zerolog.Level

	// multiLogger emits structured output to every registered writer.
	multiLogger zerolog.Logger

	// consoleLogger emits unstructured output to stdout when console logging is enabled.
	consoleLogger zerolog.Logger

	// writers is the list of sinks backing multiLogger.
	writers []io.Writer

	// fields holds the key-value pairs stamped on every message, in derivation order.
	fields [][2]string

	// children tracks loggers derived from this one so configuration changes reach them.
	children []*Logger
}

// StructuredLogInfo carries key-value context attached to a single log message.
type StructuredLogInfo map[string]any

// NewLogger creates a Logger at the given level. Writers, if any, receive structured output;
// console output stays disabled until EnableConsole is called.
func NewLogger(level zerolog.Level, writers ...io.Writer) *Logger {
	multiLogger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	if len(writers) > 0 {
		multiLogger = zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).With().Timestamp().Logger()
	}

	return &Logger{
		level:         level,
		multiLogger:   multiLogger,
		consoleLogger: zerolog.New(os.Stdout).Level(zerolog.Disabled),
		writers:       writers,
	}
}

// EnableConsole turns on unstructured console output at the logger's current level, for this
// logger and every logger derived from it.
func (l *Logger) EnableConsole() {
	l.rebuildConsole(zerolog.ConsoleWriter{Out: os.Stdout})
}

// rebuildConsole points the console sink at the given writer, reapplying the logger's derived
// fields, and recurses into children.
func (l *Logger) rebuildConsole(writer io.Writer) {
	ctx := zerolog.New(writer).Level(l.level).With()
	for _, field := range l.fields {
		ctx = ctx.Str(field[0], field[1])
	}
	l.consoleLogger = ctx.Logger()
	for _, child := range l.children {
		child.rebuildConsole(writer)
	}
}

// NewSubLogger derives a Logger whose every message carries the given key-value pair. Each
// package is expected to hold its own sub-logger. Level, console, and writer changes made to
// this logger afterwards propagate to the derived one.
func (l *Logger) NewSubLogger(key string, value string) *Logger {
	sub := &Logger{
		level:         l.level,
		multiLogger:   l.multiLogger.With().Str(key, value).Logger(),
		consoleLogger: l.consoleLogger.With().Str(key, value).Logger(),
		writers:       l.writers,
		fields:        append(append([][2]string{}, l.fields...), [2]string{key, value}),
	}
	l.children = append(l.children, sub)
	return sub
}

// AddWriter registers another structured output sink on this logger and every logger derived
// from it. Adding a writer twice is a no-op.
func (l *Logger) AddWriter(writer io.Writer) {
	for _, w := range l.writers {
		if writer == w {
			return
		}
	}
	l.rebuildWriters(append(l.writers, writer))
}

// rebuildWriters replaces the multi-writer sink with one backed by the given writers,
// reapplying the logger's derived fields, and recurses into children.
func (l *Logger) rebuildWriters(writers []io.Writer) {
	l.writers = writers
	ctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(l.level).With().Timestamp()
	for _, field := range l.fields {
		ctx = ctx.Str(field[0], field[1])
	}
	l.multiLogger = ctx.Logger()
	for _, child := range l.children {
		child.rebuildWriters(writers)
	}
}

// Level returns the logger's current level.
func (l *Logger) Level() zerolog.Level {
	return l.level
}

// SetLevel updates the level on both sinks, for this logger and every logger derived from it.
func (l *Logger) SetLevel(level zerolog.Level) {
	l.level = level
	l.multiLogger = l.multiLogger.Level(level)
	l.consoleLogger = l.consoleLogger.Level(level)
	for _, child := range l.children {
		child.SetLevel(level)
	}
}

// Trace logs a trace event.
func (l *Logger) Trace(args ...any) {
	l.emit(l.consoleLogger.Trace(), l.multiLogger.Trace(), args...)
}

// Debug logs a debug event.
func (l *Logger) Debug(args ...any) {
	l.emit(l.consoleLogger.Debug(), l.multiLogger.Debug(), args...)
}

// Info logs an info event.
func (l *Logger) Info(args ...any) {
	l.emit(l.consoleLogger.Info(), l.multiLogger.Info(), args...)
}

// Warn logs a warning event.
func (l *Logger) Warn(args ...any) {
	l.emit(l.consoleLogger.Warn(), l.multiLogger.Warn(), args...)
}

// Error logs an error event.
func (l *Logger) Error(args ...any) {
	l.emit(l.consoleLogger.Error(), l.multiLogger.Error(), args...)
}

// Panic logs a panic event and then panics.
func (l *Logger) Panic(args ...any) {
	l.emit(l.consoleLogger.Panic(), l.multiLogger.Panic(), args...)
}

// emit builds one message out of the variadic arguments and sends it to both sinks. An error
// argument is chained onto the events with a stack trace; a StructuredLogInfo argument is
// attached as structured context. Everything else is stringified into the message body.
func (l *Logger) emit(consoleLog *zerolog.Event, multiLog *zerolog.Event, args ...any) {
	var (
		parts []string
		info  StructuredLogInfo
		err   error
	)
	for _, arg := range args {
		switch t := arg.(type) {
		case StructuredLogInfo:
			info = t
		case error:
			err = t
		default:
			parts = append(parts, fmt.Sprintf("%v", t))
		}
	}

	if err != nil {
		consoleLog.Err(err)
		multiLog.Err(err).Stack()
	}
	if info != nil {
		consoleLog.Any("info", info)
		multiLog.Any("info", info)
	}

	msg := strings.Join(parts, " ")
	consoleLog.Msg(msg)
	multiLog.Msg(msg)
}
