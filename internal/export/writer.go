// Package export writes the current view out to a file, so a filtered
// subset can be reopened or shared.
package export

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LineSource is the slice of the engine the exporter needs: the visible
// (possibly filtered) lines in order.
type LineSource interface {
	VisibleCount() int
	ActualLine(visIdx int) int
	Line(i int) (string, bool)
}

// WriteView writes every visible line to a temp file and returns its path.
func WriteView(src LineSource, baseName string) (string, error) {
	if baseName == "" {
		baseName = "stdin"
	}
	path := filepath.Join(os.TempDir(),
		fmt.Sprintf("loghew-%s-%d.log", filepath.Base(baseName), time.Now().Unix()))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	w := bufio.NewWriter(f)

	count := src.VisibleCount()
	for i := 0; i < count; i++ {
		line, ok := src.Line(src.ActualLine(i))
		if !ok {
			continue
		}
		if _, err := w.WriteString(line); err != nil {
			f.Close()
			os.Remove(path)
			return "", fmt.Errorf("write line %d: %w", i, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			f.Close()
			os.Remove(path)
			return "", fmt.Errorf("write line %d: %w", i, err)
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	return path, f.Close()
}
