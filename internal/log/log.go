// Package log provides structured logging for jsonpartial.
// Entries carry a level, a category and key=value fields, and are written to
// a file only when logging has been enabled via --debug or JSONPARTIAL_DEBUG.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
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
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string to a Level. Unknown values yield LevelDebug.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelDebug
	}
}

// Category groups related log messages.
type Category string

const (
	CatLexer    Category = "lexer"    // Reference scanning
	CatRender   Category = "render"   // Fragment parse/render pipeline
	CatRegistry Category = "registry" // Registration, lookup, invalidation
	CatLoader   Category = "loader"   // Reading partials from disk
	CatWatcher  Category = "watcher"  // File watcher events
	CatConfig   Category = "config"   // Configuration loading/saving
	CatCache    Category = "cache"    // cache operations
	CatTrace    Category = "trace"    // Tracing provider lifecycle
)

// Logger provides structured logging.
type Logger struct {
	mu       sync.Mutex
	file     *os.File
	writer   io.Writer
	enabled  bool
	minLevel Level
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Init initializes the global logger writing to the file at path.
// Returns a cleanup function to close the log file.
func Init(path string) (func(), error) {
	var initErr error
	once.Do(func() {
		defaultLogger, initErr = newLogger(path)
	})
	if initErr != nil {
		return nil, initErr
	}
	// Check if logger was initialized (handles case where once.Do already ran)
	if defaultLogger == nil {
		return nil, fmt.Errorf("logger initialization failed or already attempted")
	}
	return func() {
		if defaultLogger != nil && defaultLogger.file != nil {
			_ = defaultLogger.file.Close()
		}
	}, nil
}

// InitWriter installs a logger that writes to w. It replaces any existing
// logger and is mainly used by tests and for logging to stderr.
func InitWriter(w io.Writer, minLevel Level) {
	defaultLogger = &Logger{
		writer:   w,
		enabled:  true,
		minLevel: minLevel,
	}
}

// Reset removes the global logger, disabling all output.
func Reset() {
	defaultLogger = nil
}

func newLogger(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644) //nolint:gosec // G304: path is user-controlled debug log path
	if err != nil {
		return nil, err
	}

	return &Logger{
		file:     f,
		writer:   f,
		enabled:  true,
		minLevel: LevelDebug,
	}, nil
}

// SetEnabled toggles logging on/off.
func SetEnabled(enabled bool) {
	if defaultLogger != nil {
		defaultLogger.mu.Lock()
		defaultLogger.enabled = enabled
		defaultLogger.mu.Unlock()
	}
}

// SetMinLevel sets the minimum log level.
func SetMinLevel(level Level) {
	if defaultLogger != nil {
		defaultLogger.mu.Lock()
		defaultLogger.minLevel = level
		defaultLogger.mu.Unlock()
	}
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) {
	log(LevelDebug, cat, msg, fields...)
}

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) {
	log(LevelInfo, cat, msg, fields...)
}

// Warn logs at warning level.
func Warn(cat Category, msg string, fields ...any) {
	log(LevelWarn, cat, msg, fields...)
}

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) {
	log(LevelError, cat, msg, fields...)
}

// ErrorErr logs an error with the error value.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	if err != nil {
		fields = append(fields, "error", err.Error())
	} else {
		fields = append(fields, "error", "<nil>")
	}
	log(LevelError, cat, msg, fields...)
}

func log(level Level, cat Category, msg string, fields ...any) {
	if defaultLogger == nil || !defaultLogger.enabled {
		return
	}
	if level < defaultLogger.minLevel {
		return
	}

	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()

	// Format: 2025-12-06T10:45:00 [DEBUG] [render] message key=value key2=value2
	var sb strings.Builder
	sb.WriteString(time.Now().Format("2006-01-02T15:04:05"))
	fmt.Fprintf(&sb, " [%s] [%s] %s", level, cat, msg)

	for i := 0; i+1 < len(fields); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", fields[i], fields[i+1])
	}
	// Handle odd field count - append orphan key with no value
	if len(fields)%2 != 0 {
		fmt.Fprintf(&sb, " %v=<missing>", fields[len(fields)-1])
	}
	sb.WriteString("\n")

	if defaultLogger.writer != nil {
		_, _ = io.WriteString(defaultLogger.writer, sb.String())
	}
}
