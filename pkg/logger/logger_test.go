package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewSetsLevelAndFormat(t *testing.T) {
	log := New(LoggingConfig{Level: "debug", Format: "json", Output: "stdout"})
	if log.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected level debug, got %s", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("expected JSON formatter, got %T", log.Formatter)
	}
}

func TestNewFallsBackOnInvalidLevel(t *testing.T) {
	log := New(LoggingConfig{Level: "not-a-level"})
	if log.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected fallback to info level, got %s", log.GetLevel())
	}
}

func TestNewWritesToLogFileWithDefaultPrefix(t *testing.T) {
	originalWD, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(originalWD) })

	temp := t.TempDir()
	if err := os.Chdir(temp); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	log := New(LoggingConfig{Level: "info", Format: "text", Output: "file"})
	log.Info("hello")

	data, err := os.ReadFile(filepath.Join("logs", defaultFilePrefix+".log"))
	if err != nil {
		t.Fatalf("expected default-named log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected log file to contain data")
	}
}

func TestNewDefaultLogsComponentTag(t *testing.T) {
	var buf bytes.Buffer
	log := NewDefault("resolver")
	log.SetOutput(&buf)
	log.SetLevel(logrus.DebugLevel)
	log.WithField("component", "resolver").Info("ready")

	if buf.Len() == 0 {
		t.Fatalf("expected output to be written")
	}
}
