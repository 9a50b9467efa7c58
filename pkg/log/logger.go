package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New creates a configured logrus.Logger. An unparseable level falls back
// to info with a warning; format "json" selects the JSON formatter.
func New(levelStr, format string) *logrus.Logger {
	return NewWithOutput(os.Stderr, levelStr, format)
}

// NewWithOutput is New writing to w
func NewWithOutput(w io.Writer, levelStr, format string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	}
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", levelStr, err)
	} else {
		log.SetLevel(level)
		log.Debugf("Setting log level to: %s", level.String())
	}
	return log
}

// Component returns an entry tagged with the component name
func Component(log *logrus.Logger, name string) *logrus.Entry {
	return log.WithField("component", name)
}

// Discard returns a logger that drops all output, for tests and library callers
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
