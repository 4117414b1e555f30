// Package logging provides a tiny abstraction over slog so downstream code can
// depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a richer StructuredLogger with contextual
// helpers (component, thread) and domain specific logging helpers for graph
// steps, model calls, tool calls and checkpoint writes.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

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

// ParseLevel maps a case-insensitive level name to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "", "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger defines the minimal logging interface used across the module.
// Arguments after the message are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// StructuredLogger wraps slog.Logger adding contextual cloning helpers and
// component and thread scoping. It is cheap to copy via the With* methods.
type StructuredLogger struct {
	logger    *slog.Logger
	level     LogLevel
	component string
	threadID  string
}

// LoggerConfig configures construction of a StructuredLogger.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // json or text
	Output    io.Writer
	AddSource bool
	Component string
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stderr}
}

// NewLogger builds a StructuredLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *StructuredLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return &StructuredLogger{logger: slog.New(handler), level: cfg.Level, component: cfg.Component}
}

func slogLevel(l LogLevel) slog.Level {
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

func (l *StructuredLogger) clone() *StructuredLogger {
	nl := *l
	return &nl
}

// WithComponent sets the logical component (graph, runner, checkpoint, ...).
func (l *StructuredLogger) WithComponent(c string) *StructuredLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

// WithThread attaches a conversation thread identifier.
func (l *StructuredLogger) WithThread(threadID string) *StructuredLogger {
	nl := l.clone()
	nl.threadID = threadID
	return nl
}

func (l *StructuredLogger) buildAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, 2)
	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}
	if l.threadID != "" {
		attrs = append(attrs, slog.String("thread_id", l.threadID))
	}
	return attrs
}

func (l *StructuredLogger) log(level slog.Level, msg string, args ...any) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}
	r := slog.NewRecord(time.Now(), level, msg, 0)
	r.AddAttrs(l.buildAttrs()...)
	r.Add(args...)
	_ = l.logger.Handler().Handle(ctx, r)
}

// Debug logs at debug level.
func (l *StructuredLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }

// Info logs at info level.
func (l *StructuredLogger) Info(msg string, args ...any) { l.log(slog.LevelInfo, msg, args...) }

// Warn logs at warn level.
func (l *StructuredLogger) Warn(msg string, args ...any) { l.log(slog.LevelWarn, msg, args...) }

// Error logs at error level.
func (l *StructuredLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

// With returns a Logger that adds args to every entry written through l.
func With(l Logger, args ...any) Logger {
	switch t := l.(type) {
	case nil:
		return NoOpLogger{}
	case NoOpLogger:
		return t
	}
	return scoped{Logger: l, args: args}
}

// WithThread scopes l to one conversation thread. A StructuredLogger keeps
// the id as a dedicated attribute; any other Logger gets a thread_id pair.
func WithThread(l Logger, threadID string) Logger {
	if sl, ok := l.(*StructuredLogger); ok {
		return sl.WithThread(threadID)
	}
	return With(l, "thread_id", threadID)
}

type scoped struct {
	Logger
	args []any
}

func (s scoped) with(args []any) []any {
	return append(slices.Clip(s.args), args...)
}

func (s scoped) Debug(msg string, args ...any) { s.Logger.Debug(msg, s.with(args)...) }
func (s scoped) Info(msg string, args ...any)  { s.Logger.Info(msg, s.with(args)...) }
func (s scoped) Warn(msg string, args ...any)  { s.Logger.Warn(msg, s.with(args)...) }
func (s scoped) Error(msg string, args ...any) { s.Logger.Error(msg, s.with(args)...) }

// NodeStep records one executed graph step.
func NodeStep(l Logger, node string, step int, dur time.Duration, err error) {
	args := []any{"node", node, "step", step, "duration_ms", dur.Milliseconds()}
	if err != nil {
		l.Error("graph.step.failed", append(args, "error", err.Error())...)
		return
	}
	l.Debug("graph.step.complete", args...)
}

// ModelCall records model call latency and outcome.
func ModelCall(l Logger, node, model string, dur time.Duration, err error, args ...any) {
	args = append([]any{"node", node, "model", model, "duration_ms", dur.Milliseconds()}, args...)
	if err != nil {
		l.Error("model.call.failed", append(args, "error", err.Error())...)
		return
	}
	l.Debug("model.call.complete", args...)
}

// ToolCall records the execution of one tool call.
func ToolCall(l Logger, tool, callID string, dur time.Duration, err error) {
	args := []any{"tool", tool, "tool_call_id", callID, "duration_ms", dur.Milliseconds()}
	if err != nil {
		l.Error("tool.call.failed", append(args, "error", err.Error())...)
		return
	}
	l.Info("tool.call.complete", args...)
}

// Checkpoint records a checkpoint store operation. The thread id is
// expected to be part of l's scope, see WithThread.
func Checkpoint(l Logger, op string, err error, args ...any) {
	if err != nil {
		l.Error("checkpoint."+op+".failed", append(args, "error", err.Error())...)
		return
	}
	l.Debug("checkpoint."+op, args...)
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// NewSlogLogger creates a new StructuredLogger with the specified configuration.
func NewSlogLogger(level LogLevel, format string, addSource bool) *StructuredLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	if format != "" {
		cfg.Format = format
	}
	cfg.AddSource = addSource
	return NewLogger(cfg)
}
