// Package debuglog provides the engine's optional diagnostics logger. A TUI
// owns the terminal, so diagnostics go to a file under the temp dir.
package debuglog

import (
	"io"
	"os"
	"path/filepath"

	"github.com/oarkflow/log"
)

// New returns a debug-level file logger when enabled, otherwise a logger
// that discards everything.
func New(enabled bool) *log.Logger {
	if !enabled {
		return &log.Logger{
			Level:  log.PanicLevel,
			Writer: log.IOWriter{Writer: io.Discard},
		}
	}
	return &log.Logger{
		Level: log.DebugLevel,
		Writer: &log.FileWriter{
			Filename: Path(),
			MaxSize:  10 << 20,
		},
	}
}

// Path returns the debug log location.
func Path() string {
	return filepath.Join(os.TempDir(), "loghew-debug.log")
}
