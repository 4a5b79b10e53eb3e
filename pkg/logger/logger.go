// Package logger provides the application-facing logging wrapper used for
// everything except the security audit boundary (see pkg/auditlog for that).
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger so callers depend on this package rather than
// logrus directly.
type Logger struct {
	*logrus.Logger
}

// LoggingConfig controls level, format, and destination for application logs.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePrefix string `mapstructure:"file_prefix"`
}

const defaultFilePrefix = "keymanager"

// New builds a logger from cfg, falling back to info/text/stdout for any
// field it can't parse rather than failing startup over a bad log setting.
func New(cfg LoggingConfig) *Logger {
	base := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{})
	default:
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	base.SetOutput(resolveOutput(base, cfg))

	return &Logger{Logger: base}
}

func resolveOutput(base *logrus.Logger, cfg LoggingConfig) io.Writer {
	if strings.ToLower(cfg.Output) != "file" {
		return os.Stdout
	}

	prefix := cfg.FilePrefix
	if prefix == "" {
		prefix = defaultFilePrefix
	}

	const logDir = "logs"
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		base.Errorf("create log directory %s: %v", logDir, err)
		return os.Stdout
	}

	path := filepath.Join(logDir, prefix+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		base.Errorf("open log file %s: %v", path, err)
		return os.Stdout
	}
	return io.MultiWriter(os.Stdout, file)
}

// NewDefault returns an info-level stdout/text logger for tests and small
// standalone tools that have no configuration to load. name is logged as a
// "component" field on a single debug-level line; the returned logger does
// not add it to later entries.
func NewDefault(name string) *Logger {
	base := logrus.New()
	base.SetLevel(logrus.InfoLevel)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	base.SetOutput(os.Stdout)

	l := &Logger{Logger: base}
	if name != "" {
		l.WithField("component", name).Debug("logger initialized")
	}
	return l
}

// WithField returns a new log entry carrying key=value.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField(key, value)
}

// WithFields returns a new log entry carrying the given fields.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.Logger.WithFields(fields)
}
