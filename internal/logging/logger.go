// Package logging provides config-driven categorized file-based logging
// for the codegov control plane. Logs are written to <store>/logs/ with
// separate files per category. When debug mode is off, no files are
// written. Log lines never contain un-redacted payload content; callers
// log metadata and redacted previews only.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/system.
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup and wiring
	CategoryServer    Category = "server"    // HTTP surface
	CategoryMission   Category = "mission"   // Mission lifecycle, batches, rollback
	CategoryTransform Category = "transform" // AST parse/apply/verify
	CategoryRedact    Category = "redact"    // Policy scans and findings
	CategoryFinops    Category = "finops"    // Budgets, usage, routing
	CategoryEvidence  Category = "evidence"  // Event store, audit packs
	CategoryExec      Category = "exec"      // External command execution
)

// Options controls logger behavior. They are threaded explicitly from the
// config layer at startup; the package holds no config-file knowledge.
type Options struct {
	DebugMode  bool
	Level      string          // debug, info, warn, error
	Categories map[string]bool // nil means all categories enabled
}

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Logger writes to a single category file.
type Logger struct {
	category Category
	file     *os.File
	logger   *log.Logger
	mu       sync.Mutex
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex

	logsDir  string
	opts     Options
	optsMu   sync.RWMutex
	logLevel int
)

// Initialize sets up the logging directory. Should be called once at
// startup with the store path and the options resolved by the config
// layer.
func Initialize(storePath string, o Options) error {
	if storePath == "" {
		return fmt.Errorf("store path required")
	}

	optsMu.Lock()
	opts = o
	switch o.Level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	optsMu.Unlock()

	if !o.DebugMode {
		return nil // Silent no-op in production mode
	}

	logsDir = filepath.Join(storePath, "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== codegov logging initialized ===")
	boot.Info("Logs directory: %s", logsDir)
	boot.Info("Level: %s", o.Level)
	return nil
}

// Reset tears down open files. Tests use this between scenarios.
func Reset() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
	logsDir = ""
}

// IsDebugMode returns whether debug logging is enabled.
func IsDebugMode() bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	return opts.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled.
func IsCategoryEnabled(category Category) bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	if !opts.DebugMode {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category. Returns a
// no-op logger if debug mode or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) || logsDir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	// Date prefix keeps rotation a matter of deleting old files.
	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

func (l *Logger) write(level int, levelName, format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	optsMu.RLock()
	min := logLevel
	optsMu.RUnlock()
	if level < min {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Printf("[%s] %s", levelName, fmt.Sprintf(format, args...))
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.write(LevelDebug, "DEBUG", format, args...)
}

// Info logs at info level.
func (l *Logger) Info(format string, args ...interface{}) {
	l.write(LevelInfo, "INFO", format, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write(LevelWarn, "WARN", format, args...)
}

// Error logs at error level.
func (l *Logger) Error(format string, args ...interface{}) {
	l.write(LevelError, "ERROR", format, args...)
}

// Convenience helpers for the common categories.

func MissionDebug(format string, args ...interface{})   { Get(CategoryMission).Debug(format, args...) }
func MissionInfo(format string, args ...interface{})    { Get(CategoryMission).Info(format, args...) }
func TransformDebug(format string, args ...interface{}) { Get(CategoryTransform).Debug(format, args...) }
func TransformWarn(format string, args ...interface{})  { Get(CategoryTransform).Warn(format, args...) }
func RedactInfo(format string, args ...interface{})     { Get(CategoryRedact).Info(format, args...) }
func FinopsInfo(format string, args ...interface{})     { Get(CategoryFinops).Info(format, args...) }
func EvidenceDebug(format string, args ...interface{})  { Get(CategoryEvidence).Debug(format, args...) }
func ExecDebug(format string, args ...interface{})      { Get(CategoryExec).Debug(format, args...) }
func Boot(format string, args ...interface{})           { Get(CategoryBoot).Info(format, args...) }
