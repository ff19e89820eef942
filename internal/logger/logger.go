// Package logger provides leveled logging on top of the standard log
// package, optionally teeing output to a rotating file.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is the severity of a log message.
type Level string

const (
	Debug Level = "DEBUG"
	Info  Level = "INFO"
	Warn  Level = "WARN"
	Error Level = "ERROR"
)

var (
	mu         sync.Mutex
	minLevel   = Info
	fileLogger *lumberjack.Logger
)

func priority(l Level) int {
	switch l {
	case Debug:
		return 0
	case Info:
		return 1
	case Warn:
		return 2
	case Error:
		return 3
	default:
		return 1
	}
}

// ParseLevel maps "debug", "info", "warn" and "error" to a Level.
// Anything else is Info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

// SetLevel sets the minimum level that is written.
func SetLevel(l Level) {
	mu.Lock()
	minLevel = l
	mu.Unlock()
}

// Init tees log output to dir/bread-timer.log with rotation.
// An empty dir keeps stderr only.
func Init(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	fileLogger = &lumberjack.Logger{
		Filename:   filepath.Join(dir, "bread-timer.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	log.SetOutput(io.MultiWriter(os.Stderr, fileLogger))
	return nil
}

// Close flushes and closes the rotating file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if fileLogger == nil {
		return nil
	}
	err := fileLogger.Close()
	fileLogger = nil
	log.SetOutput(os.Stderr)
	return err
}

// Logf writes a message at the given level.
func Logf(l Level, format string, v ...interface{}) {
	mu.Lock()
	skip := priority(l) < priority(minLevel)
	mu.Unlock()
	if skip {
		return
	}
	log.Printf("%-5s %s", l, fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...interface{}) { Logf(Debug, format, v...) }
func Infof(format string, v ...interface{})  { Logf(Info, format, v...) }
func Warnf(format string, v ...interface{})  { Logf(Warn, format, v...) }
func Errorf(format string, v ...interface{}) { Logf(Error, format, v...) }
