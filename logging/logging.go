// Package logging provides real-time log output for the memory pipeline.
// Extraction is a best-effort enrichment path: failures never reach the
// end user, so the log stream is the only place they surface.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logger provides structured logging to stdout.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	userID    string
}

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// New creates a new Logger.
func New() *Logger {
	return &Logger{
		output:   os.Stdout,
		minLevel: LevelInfo,
	}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
		userID:    l.userID,
	}
}

// WithUser returns a new logger scoped to a user identity.
func (l *Logger) WithUser(userID string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		userID:    userID,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats a map of fields as key=value pairs.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	var parts []string
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return " " + strings.Join(parts, " ")
}

// log writes a log entry in traditional format: LEVEL TIMESTAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	l.mu.Lock()
	minLevel, output := l.minLevel, l.output
	l.mu.Unlock()

	if levelPriority[level] < levelPriority[minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		fieldStr = formatFields(fields[0])
	}
	if l.userID != "" {
		fieldStr = fmt.Sprintf(" user=%s%s", l.userID, fieldStr)
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	output.Write([]byte(line))
}

// --- Pipeline-derived logging methods ---
// Convenience wrappers used by the extraction service so stage events
// share one vocabulary in the log stream.

// ExtractionStart logs the start of an extraction run.
func (l *Logger) ExtractionStart(conversationID string, messageCount int) {
	l.Info("extraction_start", map[string]interface{}{
		"conversation": conversationID,
		"messages":     messageCount,
	})
}

// ExtractionSkipped logs a gated or short-circuited extraction.
func (l *Logger) ExtractionSkipped(conversationID, reason string) {
	l.Debug("extraction_skipped", map[string]interface{}{
		"conversation": conversationID,
		"reason":       reason,
	})
}

// ExtractionComplete logs a successful extraction run.
func (l *Logger) ExtractionComplete(conversationID string, duration time.Duration, score int) {
	l.Info("extraction_complete", map[string]interface{}{
		"conversation": conversationID,
		"duration":     duration.String(),
		"score":        score,
	})
}

// ExtractionFailed logs a failed extraction run. The failure stays
// internal; chat continues without the memory update.
func (l *Logger) ExtractionFailed(conversationID string, stage string, err error) {
	l.Error("extraction_failed", map[string]interface{}{
		"conversation": conversationID,
		"stage":        stage,
		"error":        err.Error(),
	})
}

// VersionMismatch logs a forward-compatible envelope version read.
func (l *Logger) VersionMismatch(key string, got, want int) {
	l.Warn("memory_version_mismatch", map[string]interface{}{
		"key":  key,
		"got":  got,
		"want": want,
	})
}
