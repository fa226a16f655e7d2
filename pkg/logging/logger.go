package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus with the service defaults (JSON, stdout).
type Logger struct {
	*logrus.Logger
}

// New creates a logger at the given level; unknown levels fall back to info.
func New(level string) *Logger {
	return NewWithOutput(level, os.Stdout)
}

// NewWithOutput is New with a caller-supplied sink.
func NewWithOutput(level string, out io.Writer) *Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return &Logger{Logger: l}
}

// Default returns a logger with default settings
func Default() *Logger {
	return New("info")
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWithOutput("panic", io.Discard)
}
