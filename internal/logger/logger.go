package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Stderr as a log file name sends log output to the standard error stream.
const Stderr = "-"

var base = &logrus.Logger{
	Out:   io.Discard,
	Level: logrus.DebugLevel,
	Hooks: make(logrus.LevelHooks),
	Formatter: &logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	},
}

type Options struct {
	File       string
	Level      string
	MaxSizeMB  int
	MaxBackups int
}

// Setup points every Logger at the configured destination and level. The
// returned func flushes and closes the log file.
func Setup(opts Options) (func() error, error) {
	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	base.SetLevel(level)

	if opts.File == "" || opts.File == Stderr {
		base.SetOutput(os.Stderr)
		return func() error { return nil }, nil
	}

	if dir := filepath.Dir(opts.File); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
	}

	lumber := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
	}

	base.SetOutput(lumber)

	return func() error {
		base.SetOutput(io.Discard)
		return lumber.Close()
	}, nil
}

type Logger struct {
	entry *logrus.Entry
}

func NewLogger(module string) *Logger {
	return &Logger{
		entry: base.WithField("module", module),
	}
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

// With returns a child logger carrying an extra field.
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{
		entry: l.entry.WithField(key, value),
	}
}
