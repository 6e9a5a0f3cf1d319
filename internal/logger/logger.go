package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

var defaultLogger = newLogger(os.Stdout, zerolog.InfoLevel, false)

// Init configures the process-wide logger. It is meant to be called once from
// main before any goroutines start.
func Init(level string, json bool) {
	defaultLogger = newLogger(os.Stdout, parseLevel(level), json)
	zlog.Logger = defaultLogger
}

func newLogger(out io.Writer, level zerolog.Level, json bool) zerolog.Logger {
	w := out
	if !json {
		w = zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get returns the configured logger.
func Get() *zerolog.Logger {
	return &defaultLogger
}

// With returns a child logger carrying the component name.
func With(component string) zerolog.Logger {
	return defaultLogger.With().Str("component", component).Logger()
}

func Debug() *zerolog.Event { return defaultLogger.Debug() }

func Info() *zerolog.Event { return defaultLogger.Info() }

func Warn() *zerolog.Event { return defaultLogger.Warn() }

func Error() *zerolog.Event { return defaultLogger.Error() }

// Printer adapts a zerolog logger to printf-style sinks such as the gorm logger.
type Printer struct {
	Logger zerolog.Logger
	Level  zerolog.Level
}

func (p Printer) Printf(format string, args ...interface{}) {
	p.Logger.WithLevel(p.Level).Msgf(format, args...)
}
