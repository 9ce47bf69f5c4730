package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents logging verbosity
type Level int

const (
	ErrorLevel Level = iota
	InfoLevel
	DebugLevel
	TraceLevel
)

var levelNames = map[Level]string{
	ErrorLevel: "error",
	InfoLevel:  "info",
	DebugLevel: "debug",
	TraceLevel: "trace",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Logger writes human oriented progress to the console and a structured
// record of the same messages to an optional log file.
type Logger struct {
	level   Level
	name    string
	mu      *sync.Mutex
	stdout  io.Writer
	stderr  io.Writer
	logFile *os.File
	file    *zap.Logger
}

// New creates a new logger. When logDir is set, every message that passes
// the level filter is also written to css-coverage-<timestamp>.log there.
func New(level Level, logDir string) (*Logger, error) {
	l := &Logger{
		level:  level,
		mu:     &sync.Mutex{},
		stdout: os.Stdout,
		stderr: os.Stderr,
		file:   zap.NewNop(),
	}

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}

		logPath := filepath.Join(logDir, fmt.Sprintf("css-coverage-%s.log", time.Now().Format("20060102-150405")))
		f, err := os.Create(logPath)
		if err != nil {
			return nil, fmt.Errorf("create log file: %w", err)
		}
		l.logFile = f

		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(ec), zapcore.Lock(f), zap.DebugLevel)
		l.file = zap.New(core)
	}

	return l, nil
}

// SetOutput redirects console output.
func (l *Logger) SetOutput(stdout, stderr io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stdout = stdout
	l.stderr = stderr
}

// Named returns a logger that shares l's outputs and prefixes console
// messages with component.
func (l *Logger) Named(component string) *Logger {
	child := *l
	if l.name != "" {
		child.name = l.name + "." + component
	} else {
		child.name = component
	}
	child.file = l.file.Named(component)
	return &child
}

// Level returns the verbosity of l.
func (l *Logger) Level() Level {
	return l.level
}

// Close flushes and closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile == nil {
		return nil
	}
	_ = l.file.Sync()
	err := l.logFile.Close()
	l.logFile = nil
	return err
}

func (l *Logger) prefix(msg string) string {
	if l.name == "" {
		return msg
	}
	return "[" + l.name + "] " + msg
}

// log writes a levelled message
func (l *Logger) log(level Level, format string, args ...interface{}) {
	if level > l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)

	switch level {
	case ErrorLevel:
		l.file.Error(msg)
		fmt.Fprintf(l.stderr, "❌ %s\n", l.prefix(msg))
	case InfoLevel:
		l.file.Info(msg)
		fmt.Fprintf(l.stdout, "%s\n", l.prefix(msg))
	default:
		l.file.Debug(msg, zap.Stringer("verbosity", level))
		fmt.Fprintf(l.stdout, "%s\n", l.prefix(msg))
	}
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ErrorLevel, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(InfoLevel, format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DebugLevel, format, args...)
}

// Trace logs a trace message
func (l *Logger) Trace(format string, args ...interface{}) {
	l.log(TraceLevel, format, args...)
}

// status writes a message that is shown at every verbosity.
func (l *Logger) status(kind, emoji string, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	if kind == "warning" {
		l.file.Warn(msg)
	} else {
		l.file.Info(msg, zap.String("status", kind))
	}
	fmt.Fprintf(l.stdout, "%s %s\n", emoji, l.prefix(msg))
}

// Progress logs a progress message (always shown)
func (l *Logger) Progress(format string, args ...interface{}) {
	l.status("progress", "⏳", format, args...)
}

// Success logs a success message (always shown)
func (l *Logger) Success(format string, args ...interface{}) {
	l.status("success", "✅", format, args...)
}

// Warning logs a warning message (always shown)
func (l *Logger) Warning(format string, args ...interface{}) {
	l.status("warning", "⚠️ ", format, args...)
}

// ParseLevel parses a string into a log level
func ParseLevel(s string) (Level, error) {
	switch s {
	case "error":
		return ErrorLevel, nil
	case "info":
		return InfoLevel, nil
	case "debug":
		return DebugLevel, nil
	case "trace":
		return TraceLevel, nil
	default:
		return InfoLevel, fmt.Errorf("invalid log level: %s (valid: error, info, debug, trace)", s)
	}
}
