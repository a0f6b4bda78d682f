// Package logging builds the zerolog loggers used across the scheduler.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/RezaEskandarii/cronfire/types/config"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// New returns a logger writing to w, or stdout when w is nil.
func New(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if strings.EqualFold(cfg.Format, "console") || cfg.Format == "" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
	}
	return zerolog.New(w).
		Level(ParseLevel(cfg.Level, zerolog.InfoLevel)).
		With().Timestamp().
		Logger()
}

// ParseLevel returns def when s is empty or unknown.
func ParseLevel(s string, def zerolog.Level) zerolog.Level {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return def
	}
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return def
	}
	return lvl
}

// Component derives a child logger tagged with component=name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// CronLogger adapts zerolog to robfig/cron's Logger interface.
type CronLogger struct {
	log zerolog.Logger
}

func NewCronLogger(l zerolog.Logger) CronLogger {
	return CronLogger{log: Component(l, "cron")}
}

// Info logs at debug; cron reports every wake up and schedule at this level.
func (c CronLogger) Info(msg string, keysAndValues ...interface{}) {
	withFields(c.log.Debug(), keysAndValues).Msg(msg)
}

func (c CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	withFields(c.log.Error().Err(err), keysAndValues).Msg(msg)
}

func withFields(e *zerolog.Event, kv []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		e = e.Interface(fmt.Sprint(kv[i]), kv[i+1])
	}
	return e
}
