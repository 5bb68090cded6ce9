// Package logger provides leveled logging in text or JSON lines.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "FATAL"
	}
}

// ParseLevel maps a config string to a Level, defaulting to InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger writes leveled messages for one component.
type Logger struct {
	component string
}

type sink struct {
	mu     sync.Mutex
	level  Level
	json   bool
	out    io.Writer
	logger *log.Logger
}

var std = newSink(InfoLevel, "text", os.Stderr)

func newSink(level Level, format string, out io.Writer) *sink {
	s := &sink{level: level, out: out}
	if strings.ToLower(format) == "json" {
		s.json = true
		return s
	}
	s.logger = log.New(out, "", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return s
}

// Init configures the default logger with the specified level and format
// ("text" or "json").
func Init(level string, format string) {
	std = newSink(ParseLevel(level), format, os.Stderr)
}

// SetOutput redirects log output; used by tests.
func SetOutput(w io.Writer, level string, format string) {
	std = newSink(ParseLevel(level), format, w)
}

// Named returns a logger whose messages are tagged with component.
func Named(component string) *Logger {
	return &Logger{component: component}
}

func (s *sink) write(level Level, component, format string, args ...interface{}) {
	if level < s.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if !s.json {
		if component != "" {
			msg = "[" + component + "] " + msg
		}
		_ = s.logger.Output(3, "["+level.String()+"] "+msg)
		return
	}

	entry := struct {
		Time      string `json:"time"`
		Level     string `json:"level"`
		Component string `json:"component,omitempty"`
		Message   string `json:"msg"`
	}{
		Time:      time.Now().Format(time.RFC3339Nano),
		Level:     strings.ToLower(level.String()),
		Component: component,
		Message:   msg,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.out.Write(append(line, '\n'))
}

func (l *Logger) Debug(format string, args ...interface{}) {
	std.write(DebugLevel, l.component, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	std.write(InfoLevel, l.component, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	std.write(WarnLevel, l.component, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	std.write(ErrorLevel, l.component, format, args...)
}

func Debug(format string, args ...interface{}) {
	std.write(DebugLevel, "", format, args...)
}

func Info(format string, args ...interface{}) {
	std.write(InfoLevel, "", format, args...)
}

func Warn(format string, args ...interface{}) {
	std.write(WarnLevel, "", format, args...)
}

func Error(format string, args ...interface{}) {
	std.write(ErrorLevel, "", format, args...)
}

func Fatal(format string, args ...interface{}) {
	std.write(FatalLevel, "", format, args...)
	os.Exit(1)
}
