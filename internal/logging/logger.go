package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// Logger defines a minimal, printf-style logging contract. Core packages
// depend on this interface rather than on a concrete logger so tests can
// silence or capture output.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}

// Level represents the severity of a log message.
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
	default:
		return "ERROR"
	}
}

type stdLogger struct {
	mu        sync.Mutex
	out       *log.Logger
	level     Level
	component string
}

// NewComponentLogger returns a stderr logger scoped to a component.
func NewComponentLogger(component string) Logger {
	return NewWriterLogger(os.Stderr, component, LevelInfo)
}

// NewWriterLogger returns a logger writing to the given writer at the given
// minimum level.
func NewWriterLogger(w io.Writer, component string, level Level) Logger {
	return &stdLogger{
		out:       log.New(w, "", 0),
		level:     level,
		component: component,
	}
}

func (l *stdLogger) log(level Level, format string, args ...any) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	msg := fmt.Sprintf(format, args...)
	if l.component != "" {
		l.out.Printf("[%s] [%s] [%s] %s", ts, level, l.component, msg)
		return
	}
	l.out.Printf("[%s] [%s] %s", ts, level, msg)
}

func (l *stdLogger) Debug(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *stdLogger) Info(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *stdLogger) Warn(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *stdLogger) Error(format string, args ...any) { l.log(LevelError, format, args...) }
