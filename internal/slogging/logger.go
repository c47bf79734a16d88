// Package slogging provides the service's structured logger built on log/slog
// with rotating file output.
package slogging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents logging verbosity.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// Logger is the slog-based logging component.
type Logger struct {
	slogger    *slog.Logger
	level      LogLevel
	fileLogger *lumberjack.Logger
}

// Config holds configuration options for the logger.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel
	// IsDev selects the text handler instead of JSON.
	IsDev bool
	// LogDir is the directory for rotated log files. Empty disables file output.
	LogDir string
	// FileName is the log file name inside LogDir.
	FileName   string
	MaxAgeDays int
	MaxSizeMB  int
	MaxBackups int
	// AlsoLogToConsole mirrors log output to stdout.
	AlsoLogToConsole bool
}

// ParseLogLevel converts a string log level to LogLevel.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) toSlogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a new logger instance.
func NewLogger(config Config) (*Logger, error) {
	if config.MaxAgeDays <= 0 {
		config.MaxAgeDays = 7
	}
	if config.MaxSizeMB <= 0 {
		config.MaxSizeMB = 100
	}
	if config.MaxBackups <= 0 {
		config.MaxBackups = 10
	}
	if config.FileName == "" {
		config.FileName = "study-assistant.log"
	}

	var writers []io.Writer
	var fileLogger *lumberjack.Logger
	if config.LogDir != "" {
		if err := os.MkdirAll(config.LogDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		fileLogger = &lumberjack.Logger{
			Filename:   filepath.Join(config.LogDir, config.FileName),
			MaxSize:    config.MaxSizeMB,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAgeDays,
			Compress:   true,
		}
		writers = append(writers, fileLogger)
	}
	if config.AlsoLogToConsole || len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	return newLogger(io.MultiWriter(writers...), config.Level, config.IsDev, fileLogger), nil
}

func newLogger(w io.Writer, level LogLevel, isDev bool, fileLogger *lumberjack.Logger) *Logger {
	opts := &slog.HandlerOptions{
		Level: level.toSlogLevel(),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if isDev {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{
		slogger:    slog.New(handler),
		level:      level,
		fileLogger: fileLogger,
	}
}

// NewWriterLogger creates a logger writing JSON records to w. Used by tests
// that inspect log output.
func NewWriterLogger(w io.Writer, level LogLevel) *Logger {
	return newLogger(w, level, false, nil)
}

// Initialize sets up the global logger.
func Initialize(config Config) error {
	logger, err := NewLogger(config)
	if err != nil {
		return err
	}

	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()

	slog.SetDefault(logger.slogger)
	return nil
}

// Get returns the global logger, falling back to a console logger when
// Initialize has not been called.
func Get() *Logger {
	globalMu.RLock()
	logger := globalLogger
	globalMu.RUnlock()
	if logger != nil {
		return logger
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = newLogger(os.Stdout, LogLevelInfo, true, nil)
	}
	return globalLogger
}

// Close flushes and closes the rotated log file, if any.
func (l *Logger) Close() error {
	if l.fileLogger != nil {
		if err := l.fileLogger.Close(); err != nil {
			return fmt.Errorf("file logger close: %w", err)
		}
	}
	return nil
}

// Level returns the configured minimum level.
func (l *Logger) Level() LogLevel {
	return l.level
}

func (l *Logger) logf(level LogLevel, format string, args ...any) {
	if l.level > level {
		return
	}
	message := format
	if len(args) > 0 {
		message = fmt.Sprintf(format, args...)
	}
	l.slogger.Log(context.Background(), level.toSlogLevel(), SanitizeLogMessage(message))
}

// Debug logs a debug-level message.
func (l *Logger) Debug(format string, args ...any) { l.logf(LogLevelDebug, format, args...) }

// Info logs an info-level message.
func (l *Logger) Info(format string, args ...any) { l.logf(LogLevelInfo, format, args...) }

// Warn logs a warning-level message.
func (l *Logger) Warn(format string, args ...any) { l.logf(LogLevelWarn, format, args...) }

// Error logs an error-level message.
func (l *Logger) Error(format string, args ...any) { l.logf(LogLevelError, format, args...) }

// DebugCtx logs a debug message with structured attributes.
func (l *Logger) DebugCtx(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.slogger.LogAttrs(ctx, slog.LevelDebug, SanitizeLogMessage(msg), attrs...)
}

// InfoCtx logs an info message with structured attributes.
func (l *Logger) InfoCtx(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.slogger.LogAttrs(ctx, slog.LevelInfo, SanitizeLogMessage(msg), attrs...)
}

// WarnCtx logs a warning message with structured attributes.
func (l *Logger) WarnCtx(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.slogger.LogAttrs(ctx, slog.LevelWarn, SanitizeLogMessage(msg), attrs...)
}

// ErrorCtx logs an error message with structured attributes.
func (l *Logger) ErrorCtx(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.slogger.LogAttrs(ctx, slog.LevelError, SanitizeLogMessage(msg), attrs...)
}

// GetSlogger returns the underlying slog.Logger.
func (l *Logger) GetSlogger() *slog.Logger {
	return l.slogger
}

// SanitizeLogMessage collapses control whitespace so user-supplied values
// cannot forge additional log lines.
func SanitizeLogMessage(message string) string {
	message = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ").Replace(message)
	return strings.TrimSpace(strings.Join(strings.Fields(message), " "))
}
