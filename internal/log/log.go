// Package log provides the process-wide logger used outside the decoder.
package log

import (
	"io"
	"os"
	"sync"

	"firestige.xyz/hdrview/internal/config"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	Panic(args ...interface{})
	Panicf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

var (
	mu     sync.RWMutex
	logger Logger
)

// GetLogger returns the process-wide logger. Before Init it writes text at
// info level to stderr.
func GetLogger() Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger, _ = newLogrusAdapter(config.LogConfig{Level: "info", Format: "text"}, os.Stderr)
	}
	return logger
}

// Init replaces the process-wide logger. Logs go to stderr, which keeps
// stdout free for decode reports, and to a rotating file when enabled.
func Init(cfg config.LogConfig) error {
	return InitWriter(cfg, os.Stderr)
}

// InitWriter is Init with console output sent to w.
func InitWriter(cfg config.LogConfig, console io.Writer) error {
	l, err := newLogrusAdapter(cfg, console)
	if err != nil {
		return err
	}
	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}
