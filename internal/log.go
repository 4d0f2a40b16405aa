package internal

import (
	"log"
	"os"
)

// LogLevel orders verbosity; messages above the configured level are dropped.
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
)

// Logger is the leveled logger every engine component takes as a dependency,
// so tests can silence it and runs can tune it without touching the stages.
type Logger struct {
	level LogLevel
}

// NewLogger creates a logger at a fixed level.
func NewLogger(level LogLevel) *Logger {
	return &Logger{level: level}
}

// NewDefaultLogger reads LOG_LEVEL (ERROR, WARN, INFO); unset means INFO.
func NewDefaultLogger() *Logger {
	level := LogLevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "ERROR":
		level = LogLevelError
	case "WARN":
		level = LogLevelWarn
	case "INFO":
		level = LogLevelInfo
	}
	return &Logger{level: level}
}

// Error logs abort diagnostics.
func (l *Logger) Error(format string, args ...interface{}) {
	if l.level >= LogLevelError {
		log.Printf("[ERROR] "+format, args...)
	}
}

// Warn logs violated checks and degraded-path decisions.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.level >= LogLevelWarn {
		log.Printf("[WARN] "+format, args...)
	}
}

// Info logs run progress and the effective thresholds.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.level >= LogLevelInfo {
		log.Printf("[INFO] "+format, args...)
	}
}

// DefaultLogger is the process-wide fallback for components wired without an
// explicit logger.
var DefaultLogger = NewDefaultLogger()
