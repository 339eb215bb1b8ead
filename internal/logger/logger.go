// Package logger provides the structured logging setup shared by the
// multipart planner, the remote store client, and the s3fs-mpctl CLI.
package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Level is a logging verbosity level, independent of slog.Level so that
// configuration files and flags can use plain strings.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// ParseLevel parses a case-insensitive level name, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Format selects the rendering used for log records.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// ParseFormat parses a case-insensitive format name, defaulting to text.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

// Config controls the global logger.
type Config struct {
	Level  Level
	Format Format
	Output *os.File
}

var (
	currentLevel  atomic.Int32
	currentFormat atomic.Int32
	logger        atomic.Value // *slog.Logger
)

func init() {
	currentLevel.Store(int32(LevelInfo))
	currentFormat.Store(int32(FormatText))
	logger.Store(newLogger(LevelInfo, FormatText, os.Stderr))
}

// Init (re)configures the global logger. Safe to call multiple times.
func Init(cfg Config) error {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	currentLevel.Store(int32(cfg.Level))
	currentFormat.Store(int32(cfg.Format))
	logger.Store(newLogger(cfg.Level, cfg.Format, out))
	return nil
}

func newLogger(level Level, format Format, out *os.File) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level.toSlogLevel()}

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(out, opts)
	default:
		handler = NewColorTextHandler(out, opts, isTerminal(out.Fd()))
	}
	return slog.New(handler)
}

// L returns the current global logger.
func L() *slog.Logger {
	return logger.Load().(*slog.Logger)
}
