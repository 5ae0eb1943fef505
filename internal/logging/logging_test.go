package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/fiber-gauge-mcp/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logrus.Level
		wantErr bool
	}{
		{"", logrus.InfoLevel, false},
		{"debug", logrus.DebugLevel, false},
		{"WARN", logrus.WarnLevel, false},
		{" error ", logrus.ErrorLevel, false},
		{"verbose", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseLevel(%q) should fail", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLevel(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q): got %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(config.Logging{Level: "info"}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter failed: %v", err)
	}

	logger.WithField(RunIDKey, "abc123").Info("analysis complete")
	logger.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "analysis complete") || !strings.Contains(out, "abc123") {
		t.Errorf("log line missing message or field: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("debug line written at info level")
	}
}

func TestNewWithWriter_InvalidLevel(t *testing.T) {
	if _, err := NewWithWriter(config.Logging{Level: "chatty"}, &bytes.Buffer{}); err == nil {
		t.Error("invalid level should fail")
	}
}

func TestNewWithWriter_FileSink(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "fiber-gauge.log")
	var console bytes.Buffer

	logger, err := NewWithWriter(config.Logging{Level: "debug", File: logPath, MaxSizeMB: 1}, &console)
	if err != nil {
		t.Fatalf("NewWithWriter failed: %v", err)
	}
	logger.Warn("scale bar not found")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "scale bar not found") {
		t.Errorf("file sink missing message: %q", data)
	}
	if !strings.Contains(console.String(), "scale bar not found") {
		t.Error("console sink missing message")
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	// Must not panic or write anywhere
	logger.Info("dropped")
	if logger.IsLevelEnabled(logrus.InfoLevel) {
		t.Error("Discard logger should not enable info")
	}
}
