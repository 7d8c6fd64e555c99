package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var log = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init configures the process-wide logger. Console output is used outside production.
func Init(level string, pretty bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	var out io.Writer = os.Stdout
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	log = New(out)
	SetLevel(level)
}

// New builds a logger writing to w. Used by tests to capture output.
func New(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Caller().Logger()
}

// SetOutput swaps the underlying logger.
func SetOutput(l zerolog.Logger) {
	log = l
}

func SetLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// Info logs msg with optional key/value pairs: Info("booted", "port", 8080).
func Info(msg string, kv ...any) {
	withPairs(log.Info(), kv).Msg(msg)
}

func Infof(format string, v ...any) {
	log.Info().Msg(fmt.Sprintf(format, v...))
}

func Warn(msg string, kv ...any) {
	withPairs(log.Warn(), kv).Msg(msg)
}

func Warnf(format string, v ...any) {
	log.Warn().Msg(fmt.Sprintf(format, v...))
}

func Error(msg string, kv ...any) {
	withPairs(log.Error(), kv).Msg(msg)
}

func Errorf(format string, v ...any) {
	log.Error().Msg(fmt.Sprintf(format, v...))
}

func Debug(msg string, kv ...any) {
	withPairs(log.Debug(), kv).Msg(msg)
}

func Debugf(format string, v ...any) {
	log.Debug().Msg(fmt.Sprintf(format, v...))
}

func Fatal(msg string, kv ...any) {
	withPairs(log.Fatal(), kv).Msg(msg)
}

func Fatalf(format string, v ...any) {
	log.Fatal().Msg(fmt.Sprintf(format, v...))
}

// Entry is a logger carrying preset fields.
type Entry struct {
	l zerolog.Logger
}

func WithError(err error) *Entry {
	return &Entry{l: log.With().Err(err).Logger()}
}

func WithFields(fields map[string]any) *Entry {
	return &Entry{l: log.With().Fields(fields).Logger()}
}

func (e *Entry) WithField(key string, value any) *Entry {
	return &Entry{l: e.l.With().Interface(key, value).Logger()}
}

func (e *Entry) Info(msg string)  { e.l.Info().Msg(msg) }
func (e *Entry) Warn(msg string)  { e.l.Warn().Msg(msg) }
func (e *Entry) Error(msg string) { e.l.Error().Msg(msg) }
func (e *Entry) Debug(msg string) { e.l.Debug().Msg(msg) }

func withPairs(ev *zerolog.Event, kv []any) *zerolog.Event {
	if len(kv) == 0 {
		return ev
	}
	if len(kv)%2 != 0 {
		kv = append(kv, "(MISSING)")
	}
	return ev.Fields(kv)
}
