// Package logging configures the process-wide slog loggers.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// Rotation policies understood by Init.
const (
	RotationDaily  = "daily"
	RotationWeekly = "weekly"
	RotationSize   = "size"
)

// Add trace and fatal level names.
var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

// Config describes where and how logs are written.
type Config struct {
	Level     string // trace, debug, info, warn, error
	Format    string // json or text
	FilePath  string // empty disables file output
	Rotation  string // daily, weekly or size
	MaxSizeMB int
}

var (
	mu         sync.RWMutex
	levelVar   = new(slog.LevelVar)
	rootLogger *slog.Logger
	fileWriter *lumberjack.Logger
)

func replaceLevelNames(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level, ok := a.Value.Any().(slog.Level)
		if !ok {
			return a
		}
		levelLabel, exists := levelNames[level]
		if !exists {
			levelLabel = level.String()
		}
		a.Value = slog.StringValue(levelLabel)
	}
	return a
}

// Init initializes the structured logger, writing to stdout and optionally to a
// rotating log file. It replaces the slog default logger.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	levelVar.Set(ParseLevel(cfg.Level))

	var out io.Writer = os.Stdout
	if cfg.FilePath != "" {
		w, err := newRotatingWriter(cfg)
		if err != nil {
			return err
		}
		if fileWriter != nil {
			_ = fileWriter.Close()
		}
		fileWriter = w
		out = io.MultiWriter(os.Stdout, w)
	}

	opts := &slog.HandlerOptions{Level: levelVar, ReplaceAttr: replaceLevelNames}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	rootLogger = slog.New(handler)
	slog.SetDefault(rootLogger)
	return nil
}

// newRotatingWriter builds a lumberjack writer from the rotation policy.
func newRotatingWriter(cfg Config) (*lumberjack.Logger, error) {
	// lumberjack doesn't create directories
	if logDir := filepath.Dir(cfg.FilePath); logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	maxSizeMB := 100
	maxBackups := 3
	maxAge := 28 // days
	if cfg.MaxSizeMB > 0 {
		maxSizeMB = cfg.MaxSizeMB
	}

	switch cfg.Rotation {
	case RotationDaily:
		maxAge = 1
		maxBackups = 30
	case RotationWeekly:
		maxAge = 7
		maxBackups = 4
	case RotationSize, "":
	default:
		slog.Warn("Unknown log rotation type in config, using size-based defaults", "configuredType", cfg.Rotation)
	}

	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
	}, nil
}

// ParseLevel maps a configured level name to a slog level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the minimum level of the root logger at runtime.
func SetLevel(level slog.Level) {
	levelVar.Set(level)
}

// ForService returns a logger tagged with the 'service' attribute.
// Before Init it derives from the slog default logger.
func ForService(serviceName string) *slog.Logger {
	mu.RLock()
	base := rootLogger
	mu.RUnlock()
	if base == nil {
		base = slog.Default()
	}
	return base.With("service", serviceName)
}

// Close flushes and closes the rotating log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if fileWriter == nil {
		return nil
	}
	err := fileWriter.Close()
	fileWriter = nil
	return err
}

// Fatal logs a fatal message using the custom Fatal level and then exits.
func Fatal(msg string, args ...any) {
	slog.Log(context.Background(), LevelFatal, msg, args...)
	os.Exit(1)
}

// Trace logs a trace message using the custom Trace level.
func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}
