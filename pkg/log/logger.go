package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	scierrors "github.com/YuminosukeSato/casebook/pkg/errors"
)

var (
	globalMu     sync.RWMutex
	globalLogger Logger = NewZerologLogger(os.Stderr, LevelInfo)
)

// GetLogger returns the process-wide logger.
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// SetLogger replaces the process-wide logger.
func SetLogger(l Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// SetupLogger installs a zerolog logger as the process-wide logger and routes library
// warnings through it. console selects the human-readable writer.
func SetupLogger(w io.Writer, level Level, console bool) *ZerologLogger {
	var zl *ZerologLogger
	if console {
		zl = NewConsoleLogger(w, level)
	} else {
		zl = NewZerologLogger(w, level)
	}
	SetLogger(zl)
	scierrors.SetZerologWarnFunc(zl.warn)
	return zl
}

// ParseLevel converts "debug", "info", "warn" or "error" into a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level: %q", level)
	}
}
