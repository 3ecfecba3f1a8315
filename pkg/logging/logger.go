package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level represents the logging level
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format represents the logging output format
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config contains logger configuration
type Config struct {
	Level  Level
	Format Format
	Output io.Writer
}

// Logger provides structured logging
type Logger struct {
	logger zerolog.Logger
}

// New creates a new structured logger
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	var output io.Writer = cfg.Output
	if cfg.Format == FormatText {
		output = zerolog.ConsoleWriter{
			Out:        cfg.Output,
			TimeFormat: time.RFC3339,
			NoColor:    false,
		}
	}

	zlog := zerolog.New(output).With().Timestamp().Logger()

	switch cfg.Level {
	case LevelDebug:
		zlog = zlog.Level(zerolog.DebugLevel)
	case LevelInfo:
		zlog = zlog.Level(zerolog.InfoLevel)
	case LevelWarn:
		zlog = zlog.Level(zerolog.WarnLevel)
	case LevelError:
		zlog = zlog.Level(zerolog.ErrorLevel)
	default:
		zlog = zlog.Level(zerolog.InfoLevel)
	}

	return &Logger{logger: zlog}
}

// Nop returns a logger that discards everything. Used in tests.
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...interface{}) {
	event := l.logger.Debug()
	l.addFields(event, fields...)
	event.Msg(msg)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...interface{}) {
	event := l.logger.Info()
	l.addFields(event, fields...)
	event.Msg(msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...interface{}) {
	event := l.logger.Warn()
	l.addFields(event, fields...)
	event.Msg(msg)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...interface{}) {
	event := l.logger.Error()
	l.addFields(event, fields...)
	event.Msg(msg)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string, fields ...interface{}) {
	event := l.logger.Fatal()
	l.addFields(event, fields...)
	event.Msg(msg)
}

// WithField creates a child logger with an additional field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{
		logger: l.logger.With().Interface(key, value).Logger(),
	}
}

// WithFields creates a child logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{
		logger: ctx.Logger(),
	}
}

// addFields adds key-value pairs to a log event
func (l *Logger) addFields(event *zerolog.Event, fields ...interface{}) {
	if len(fields)%2 != 0 {
		event.Str("error", "odd number of fields")
		return
	}

	for i := 0; i < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			event.Str("error", fmt.Sprintf("field key at index %d is not a string", i))
			continue
		}

		event.Interface(key, fields[i+1])
	}
}
