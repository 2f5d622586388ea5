package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogLevel represents different logging levels
type LogLevel int

const (
	// LevelError only logs errors
	LevelError LogLevel = iota
	// LevelWarn logs warnings and errors
	LevelWarn
	// LevelInfo logs general information, warnings and errors
	LevelInfo
	// LevelDebug logs detailed debug information and all above
	LevelDebug
	// LevelTrace logs every request handled by the filesystem
	LevelTrace
)

var levelNames = map[LogLevel]string{
	LevelError: "ERROR",
	LevelWarn:  "WARN",
	LevelInfo:  "INFO",
	LevelDebug: "DEBUG",
	LevelTrace: "TRACE",
}

var logrusLevels = map[LogLevel]logrus.Level{
	LevelError: logrus.ErrorLevel,
	LevelWarn:  logrus.WarnLevel,
	LevelInfo:  logrus.InfoLevel,
	LevelDebug: logrus.DebugLevel,
	LevelTrace: logrus.TraceLevel,
}

// String returns the upper case name of the level.
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel converts a case-insensitive level name into a LogLevel.
func ParseLevel(name string) (LogLevel, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for level, levelName := range levelNames {
		if levelName == upper {
			return level, nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// Logger provides leveled, prefixed logging on top of a shared logrus
// instance. Loggers derived with WithPrefix share level and output with
// their parent.
type Logger struct {
	base  *logrus.Logger
	entry *logrus.Entry
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// GetLogger returns the default logger instance
func GetLogger() *Logger {
	once.Do(func() {
		defaultLogger = NewLogger("PASSFS")
		defaultLogger.SetLevel(EnvLevel())
	})
	return defaultLogger
}

// EnvLevel returns the level requested by the environment: DEBUG when
// FUSE_DEBUG is set, otherwise LOG_LEVEL if it names a level, otherwise
// INFO.
func EnvLevel() LogLevel {
	if os.Getenv("FUSE_DEBUG") != "" {
		return LevelDebug
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		if parsed, err := ParseLevel(level); err == nil {
			return parsed
		}
	}
	return LevelInfo
}

// NewLogger creates a new logger with the given prefix, writing text
// records to stdout at INFO level.
func NewLogger(prefix string) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stdout)
	base.SetLevel(logrus.InfoLevel)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000000Z07:00",
	})
	if os.Getenv("LOG_CALLER") != "" {
		base.SetReportCaller(true)
	}

	return &Logger{
		base:  base,
		entry: base.WithField("component", prefix),
	}
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level LogLevel) {
	if lv, ok := logrusLevels[level]; ok {
		l.base.SetLevel(lv)
	}
}

// Level returns the current logging level.
func (l *Logger) Level() LogLevel {
	current := l.base.GetLevel()
	for level, lv := range logrusLevels {
		if lv == current {
			return level
		}
	}
	return LevelError
}

// SetFormat selects the record format: "text" or "json".
func (l *Logger) SetFormat(format string) error {
	switch strings.ToLower(format) {
	case "", "text":
		l.base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000000Z07:00",
		})
	case "json":
		l.base.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

// SetOutput redirects records to w.
func (l *Logger) SetOutput(w io.Writer) {
	l.base.SetOutput(w)
}

// Configure applies level, format and output in one step. Output is
// "stdout", "stderr" or a file path, which is opened for appending; the
// returned closer releases that file.
func (l *Logger) Configure(level, format, output string) (io.Closer, error) {
	parsed, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if err := l.SetFormat(format); err != nil {
		return nil, err
	}

	var closer io.Closer = nopCloser{}
	switch output {
	case "", "stdout":
		l.SetOutput(os.Stdout)
	case "stderr":
		l.SetOutput(os.Stderr)
	default:
		f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", output, err)
		}
		l.SetOutput(f)
		closer = f
	}
	l.SetLevel(parsed)
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// enabled determines if a message at the given level should be logged
func (l *Logger) enabled(level LogLevel) bool {
	return l.base.IsLevelEnabled(logrusLevels[level])
}

// log performs the actual logging
func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if !l.enabled(level) {
		return
	}
	l.entry.Logf(logrusLevels[level], format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// Trace logs a trace message
func (l *Logger) Trace(format string, args ...interface{}) {
	l.log(LevelTrace, format, args...)
}

// WithPrefix creates a new logger with an additional prefix
func (l *Logger) WithPrefix(prefix string) *Logger {
	return &Logger{
		base:  l.base,
		entry: l.base.WithField("component", prefix),
	}
}
