// Package logging builds the logrus logger shared by the server, the CLI and
// the analyzer.
//
// Console output always goes to stderr: in server mode stdout carries the
// JSON-RPC stream and must not be interleaved with log lines.
package logging

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ironsheep/fiber-gauge-mcp/internal/config"
)

// Fields is an alias so callers don't need to import logrus for field maps.
type Fields = logrus.Fields

// Common field keys.
const (
	RunIDKey    = "run_id"
	QuadrantKey = "quadrant"
	ToolKey     = "tool"
)

// New builds a logger from the logging section of the config. Console
// output goes to stderr; when cfg.File is set a rotating file sink is added.
func New(cfg config.Logging) (*logrus.Logger, error) {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter is New with an explicit console writer.
func NewWithWriter(cfg config.Logging, console io.Writer) (*logrus.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&formatter.Formatter{
		NoColors:        true,
		TimestampFormat: "02 Jan 06 - 15:04:05",
		HideKeys:        false,
		CallerFirst:     true,
		FieldsOrder:     []string{RunIDKey, ToolKey, QuadrantKey},
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			funcName := s[len(s)-1]
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, funcName)
		},
	})
	logger.SetReportCaller(level >= logrus.DebugLevel)

	writers := []io.Writer{console}
	if cfg.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    cfg.MaxSizeMB,
			MaxAge:     cfg.MaxAgeDays,
			MaxBackups: cfg.MaxBackups,
		})
	}
	logger.SetOutput(io.MultiWriter(writers...))

	return logger, nil
}

// ParseLevel accepts the logrus level names, case-insensitively. An empty
// string means info.
func ParseLevel(s string) (logrus.Level, error) {
	if strings.TrimSpace(s) == "" {
		return logrus.InfoLevel, nil
	}
	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// Discard returns a logger that drops everything. Tests and library callers
// that don't care about logs use it.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.PanicLevel)
	return logger
}
