package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger
type Logger struct {
	zerolog.Logger
}

// New creates a new logger instance. When console is true the output is
// human-readable; otherwise structured JSON. Stdio transports must pass
// os.Stderr as out so the protocol owns stdout.
func New(out io.Writer, level string, console bool) *Logger {
	if out == nil {
		out = os.Stderr
	}

	if console {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(out).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Str("service", "template-engine").
		Logger()

	return &Logger{Logger: logger}
}

// Nop returns a logger that discards everything; used by tests
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// WithComponent returns a logger with the component name attached
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With().Str("component", component).Logger(),
	}
}

// WithDocument returns a logger with the document path attached
func (l *Logger) WithDocument(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With().Str("document", path).Logger(),
	}
}

// WithTemplate returns a logger with the template id attached
func (l *Logger) WithTemplate(templateID string) *Logger {
	return &Logger{
		Logger: l.Logger.With().Str("template_id", templateID).Logger(),
	}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
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
