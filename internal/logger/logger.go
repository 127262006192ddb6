// Package logger configures the process-wide slog handler and hands out
// module-scoped loggers.
package logger

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	gormlogger "gorm.io/gorm/logger"
)

var (
	mu   sync.RWMutex
	base = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
)

// Init replaces the root logger. format is "text" or "json".
func Init(w io.Writer, level, format string) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	mu.Lock()
	base = slog.New(h)
	mu.Unlock()
	slog.SetDefault(base)
}

// Module returns a logger tagged with module=name.
func Module(name string) *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.With(slog.String("module", name))
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Gorm builds the GORM logger. Queries slower than 100ms are always reported.
func Gorm(level string) gormlogger.Interface {
	gormLevel := gormlogger.Warn
	switch ParseLevel(level) {
	case slog.LevelDebug:
		gormLevel = gormlogger.Info
	case slog.LevelError:
		gormLevel = gormlogger.Error
	}

	mu.RLock()
	h := base.Handler()
	mu.RUnlock()

	return gormlogger.New(
		slog.NewLogLogger(h, slog.LevelInfo),
		gormlogger.Config{
			SlowThreshold:             100 * time.Millisecond,
			LogLevel:                  gormLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// Discard silences all logging; used by tests.
func Discard() {
	Init(io.Discard, "error", "text")
	log.SetOutput(io.Discard)
}
