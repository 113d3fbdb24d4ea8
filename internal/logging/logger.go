// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Log is the process-wide logger configured by Init. The zero value
// discards everything, which keeps packages usable in tests without setup.
var Log zerolog.Logger

// Init configures the global logger and returns a cleanup func. Output
// always goes to stdout; when logFilePath is set, a copy is appended there
// as well. Unknown level strings fall back to info.
func Init(logFilePath, level string) (func(), error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	out := []io.Writer{os.Stdout}
	cleanup := func() {}
	if logFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(logFilePath), 0o700); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		// 0640 keeps forwarded notification content out of world-readable logs
		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		out = append(out, f)
		cleanup = func() { _ = f.Close() }
	}

	Log = zerolog.New(io.MultiWriter(out...)).With().Timestamp().Logger()
	return cleanup, nil
}

// Get returns the package-global logger.
func Get() *zerolog.Logger {
	return &Log
}
