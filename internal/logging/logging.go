// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mohammad-safakhou/newsdigest/config"
)

// New returns a logrus logger configured from the general config section.
// When LogFile is set, output goes to both stderr and a rotated file.
func New(cfg config.GeneralConfig) *logrus.Logger {
	logger := logrus.New()

	switch strings.ToLower(cfg.LogFormat) {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		})
	}
	logger.SetOutput(out)
	return logger
}

// Component returns an entry tagged with the component name.
func Component(l logrus.FieldLogger, name string) *logrus.Entry {
	if l == nil {
		l = Discard()
	}
	return l.WithField("component", name)
}

// Discard returns a logger that drops everything; useful in tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
