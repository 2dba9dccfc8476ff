// Package kernlog is a minimal level-gated logger. The kernel core it
// backs never pulls in a structured logging library (the teacher's
// kernel packages report state through returned errors and a
// DebugEnabled/LogLevel config pair instead), so this wraps the
// standard library logger rather than introducing one.
package kernlog

import (
	"log"
	"os"
)

// Level mirrors kernel.KernelConfig.LogLevel: higher is noisier.
type Level int

const (
	LevelError Level = iota
	LevelInfo
	LevelDebug
)

// Logger is a level-gated wrapper around *log.Logger.
type Logger struct {
	level Level
	l     *log.Logger
}

// New returns a Logger writing to stderr at the given level.
func New(level Level) *Logger {
	return &Logger{level: level, l: log.New(os.Stderr, "", log.LstdFlags)}
}

func (lg *Logger) Errorf(format string, args ...any) {
	if lg == nil {
		return
	}
	lg.l.Printf("ERROR "+format, args...)
}

func (lg *Logger) Infof(format string, args ...any) {
	if lg == nil || lg.level < LevelInfo {
		return
	}
	lg.l.Printf("INFO  "+format, args...)
}

func (lg *Logger) Debugf(format string, args ...any) {
	if lg == nil || lg.level < LevelDebug {
		return
	}
	lg.l.Printf("DEBUG "+format, args...)
}
