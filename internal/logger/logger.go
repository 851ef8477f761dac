// Package logger provides leveled logging on top of the standard log
// package. Messages below the configured level are dropped; everything else
// goes to stderr with a level tag.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Level orders log severities from most to least verbose.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) tag() string {
	switch l {
	case DebugLevel:
		return "[DEBUG]"
	case InfoLevel:
		return "[INFO]"
	case WarnLevel:
		return "[WARN]"
	default:
		return "[ERROR]"
	}
}

type leveledLogger struct {
	level Level
	out   *log.Logger
}

var defaultLogger *leveledLogger

// Init configures the package-level logger. An unknown level falls back to
// info; the "text" format adds caller locations for local debugging.
func Init(level string, format string) {
	parsed := InfoLevel
	switch strings.ToLower(level) {
	case "debug":
		parsed = DebugLevel
	case "info":
		parsed = InfoLevel
	case "warn":
		parsed = WarnLevel
	case "error":
		parsed = ErrorLevel
	}

	flags := log.LstdFlags | log.Lmicroseconds
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}

	defaultLogger = &leveledLogger{
		level: parsed,
		out:   log.New(os.Stderr, "", flags),
	}
}

func emit(level Level, format string, args ...any) {
	if defaultLogger == nil || defaultLogger.level > level {
		return
	}
	_ = defaultLogger.out.Output(3, level.tag()+" "+fmt.Sprintf(format, args...))
}

// Debug logs a message at DebugLevel.
func Debug(format string, args ...any) {
	emit(DebugLevel, format, args...)
}

// Info logs a message at InfoLevel.
func Info(format string, args ...any) {
	emit(InfoLevel, format, args...)
}

// Warn logs a message at WarnLevel.
func Warn(format string, args ...any) {
	emit(WarnLevel, format, args...)
}

// Error logs a message at ErrorLevel.
func Error(format string, args ...any) {
	emit(ErrorLevel, format, args...)
}

// Fatal logs a message and exits.
func Fatal(format string, args ...any) {
	msg := "[FATAL] " + fmt.Sprintf(format, args...)
	if defaultLogger != nil {
		_ = defaultLogger.out.Output(2, msg)
		os.Exit(1)
	}
	log.Fatal(msg)
}
