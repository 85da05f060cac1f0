package source

import (
	"io"
	"os"
)

// byteView is an immutable view over heap bytes.
type byteView []byte

func (b byteView) Size() int64 {
	return int64(len(b))
}

func (b byteView) Range(start, end int64) []byte {
	if end > int64(len(b)) {
		end = int64(len(b))
	}
	if start < 0 || start >= end {
		return nil
	}
	return b[start:end]
}

// BufferedSource holds the whole file (or stream) on the heap. Used for
// small files, where every scan is cheap enough to run on the UI thread.
type BufferedSource struct {
	path    string // empty for streams; streams cannot grow
	content []byte
}

// OpenBuffered reads the whole file into memory.
func OpenBuffered(path string) (*BufferedSource, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &BufferedSource{path: path, content: content}, nil
}

func (s *BufferedSource) Size() int64 {
	return int64(len(s.content))
}

func (s *BufferedSource) Range(start, end int64) []byte {
	return byteView(s.content).Range(start, end)
}

// Snapshot captures the current contents. Appends never touch bytes below
// the snapshot's length, so readers of an old snapshot stay consistent.
func (s *BufferedSource) Snapshot() Data {
	return byteView(s.content)
}

// Reload appends exactly the new suffix when the file grew.
func (s *BufferedSource) Reload() (bool, error) {
	if s.path == "" {
		return false, nil
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return false, err
	}
	oldSize := int64(len(s.content))
	if info.Size() <= oldSize {
		return false, nil
	}
	f, err := os.Open(s.path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	if _, err := f.Seek(oldSize, io.SeekStart); err != nil {
		return false, err
	}
	suffix, err := io.ReadAll(f)
	if err != nil {
		return false, err
	}
	if len(suffix) == 0 {
		return false, nil
	}
	s.content = append(s.content, suffix...)
	return true, nil
}

func (s *BufferedSource) Close() error {
	return nil
}

// Path returns the file path, empty for streams.
func (s *BufferedSource) Path() string {
	return s.path
}
