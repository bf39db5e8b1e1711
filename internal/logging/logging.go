// Package logging provides the structured logger used across tbnexplorer2's
// components: cache hits/misses, subprocess invocations, and IBOT iteration
// progress. Loggers carry an optional component tag so a run's log stream
// can be filtered the same way internal/errors.TBNError tags its errors.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel string

const (
	// DebugLevel for debug messages
	DebugLevel LogLevel = "debug"
	// InfoLevel for informational messages
	InfoLevel LogLevel = "info"
	// WarnLevel for warning messages
	WarnLevel LogLevel = "warn"
	// ErrorLevel for error messages
	ErrorLevel LogLevel = "error"
)

var logLevelPriority = map[LogLevel]int{
	DebugLevel: 0,
	InfoLevel:  1,
	WarnLevel:  2,
	ErrorLevel: 3,
}

// Format represents the output format for logs
type Format string

const (
	// JSONFormat outputs logs as JSON
	JSONFormat Format = "json"
	// HumanFormat outputs logs in human-readable format
	HumanFormat Format = "human"
)

// Config holds logger configuration
type Config struct {
	Format Format
	Level  LogLevel
	Output io.Writer // Optional, defaults to stdout
}

// Logger provides structured logging, optionally scoped to one pipeline
// component (e.g. "polymerbasis", "ibot", "cache" — the same tags
// internal/errors.TBNError uses) via WithComponent.
type Logger struct {
	config    Config
	writer    io.Writer
	component string
}

// NewLogger creates a new logger with the given configuration
func NewLogger(config Config) *Logger {
	writer := config.Output
	if writer == nil {
		writer = os.Stdout
	}

	return &Logger{
		config: config,
		writer: writer,
	}
}

// WithComponent returns a derived Logger sharing this logger's config and
// writer but tagging every subsequent entry's fields with
// "component": name, so e.g. the ibot or polymerbasis driver path doesn't
// need to repeat its own tag on each call site.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{config: l.config, writer: l.writer, component: component}
}

// logEntry represents a single log entry
type logEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func (l *Logger) shouldLog(level LogLevel) bool {
	configPriority := logLevelPriority[l.config.Level]
	messagePriority := logLevelPriority[level]
	return messagePriority >= configPriority
}

// withComponentTag merges l.component into fields under the "component"
// key, copying rather than mutating the caller's map.
func (l *Logger) withComponentTag(fields map[string]interface{}) map[string]interface{} {
	if l.component == "" {
		return fields
	}
	tagged := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		tagged[k] = v
	}
	tagged["component"] = l.component
	return tagged
}

func (l *Logger) log(level LogLevel, message string, fields map[string]interface{}) {
	if !l.shouldLog(level) {
		return
	}

	entry := logEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     string(level),
		Message:   message,
		Fields:    l.withComponentTag(fields),
	}

	if l.config.Format == JSONFormat {
		l.logJSON(entry)
	} else {
		l.logHuman(entry)
	}
}

func (l *Logger) logJSON(entry logEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to marshal log entry: %v\n", err)
		return
	}
	_, _ = fmt.Fprintln(l.writer, string(data))
}

func (l *Logger) logHuman(entry logEntry) {
	levelStr := fmt.Sprintf("[%s]", entry.Level)
	_, _ = fmt.Fprintf(l.writer, "%s %s %s", entry.Timestamp, levelStr, entry.Message)

	if len(entry.Fields) > 0 {
		_, _ = fmt.Fprintf(l.writer, " | ")
		first := true
		for k, v := range entry.Fields {
			if !first {
				_, _ = fmt.Fprintf(l.writer, ", ")
			}
			_, _ = fmt.Fprintf(l.writer, "%s=%v", k, v)
			first = false
		}
	}
	_, _ = fmt.Fprintln(l.writer)
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.log(DebugLevel, message, fields)
}

// Info logs an info message
func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.log(InfoLevel, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.log(WarnLevel, message, fields)
}

// Error logs an error message
func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.log(ErrorLevel, message, fields)
}

// LogIteration logs one IBOT scheduler iteration (spec.md §4.7): the
// iteration number and selected mu_min are merged into fields ahead of
// whatever the caller supplies, so callers only need to pass the
// iteration-specific extras (e.g. how many polymers were newly assigned).
func (l *Logger) LogIteration(iteration int, muMin fmt.Stringer, fields map[string]interface{}) {
	tagged := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		tagged[k] = v
	}
	tagged["iteration"] = iteration
	tagged["mu_min"] = muMin.String()
	l.log(DebugLevel, "ibot iteration", tagged)
}
