// Package source owns raw log bytes: memory-mapped for large files,
// heap-buffered for small files and streams. Growth is detected purely by
// size comparison; bytes already read are never rewritten.
package source

import (
	"bytes"
	"io"
	"os"
	"strings"
)

// MmapThreshold selects the memory-mapped variant at open time.
const MmapThreshold = 10 * 1024 * 1024

// LineCap bounds per-line cost on pathological input.
const LineCap = 2000

// Data is read-only random access to raw log bytes. Implementations are
// immutable after publication and safe for concurrent readers.
type Data interface {
	Size() int64
	// Range returns the bytes in [start, end), clamped to size. The result
	// must be treated as read-only and may alias internal storage.
	Range(start, end int64) []byte
}

// Source is an open log file or stream.
type Source interface {
	Data

	// Snapshot returns the current immutable data view. A later Reload
	// publishes a new view; snapshots held by in-flight work stay valid.
	Snapshot() Data

	// Reload reports whether the underlying file grew and, if so, makes the
	// new suffix visible. Shrinking (rotation, truncation) is a no-op.
	Reload() (bool, error)

	Close() error
}

// Open chooses the variant by file size.
func Open(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MmapThreshold {
		return OpenMapped(path)
	}
	return OpenBuffered(path)
}

// OpenStream fully buffers a piped stream such as stdin.
func OpenStream(r io.Reader) (Source, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &BufferedSource{content: content}, nil
}

// LineText slices line i out of d using the offset table, strips the trailing
// terminator, caps the length, and decodes leniently. Control bytes other
// than the terminator are kept intact; sanitization is the renderer's job.
func LineText(d Data, offsets []int64, i int) (string, bool) {
	size := d.Size()
	if i < 0 || i >= len(offsets) {
		return "", false
	}
	start := offsets[i]
	if start >= size {
		return "", false
	}
	end := size
	if i+1 < len(offsets) {
		end = offsets[i+1]
	}
	if end > size {
		end = size
	}
	b := d.Range(start, end)
	if len(b) > LineCap {
		b = b[:LineCap]
	}
	s := string(bytes.TrimRight(b, "\r\n"))
	return strings.ToValidUTF8(s, ""), true
}
