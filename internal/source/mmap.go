package source

import (
	"os"

	"golang.org/x/exp/mmap"
)

// Mapping is one immutable memory-mapped view of the file. mmap.ReaderAt
// installs a finalizer, so retired mappings unmap once the last reference
// (typically an in-flight worker batch) is dropped.
type Mapping struct {
	reader *mmap.ReaderAt
	size   int64
}

// Size returns the mapped length.
func (m *Mapping) Size() int64 {
	return m.size
}

// Range copies the bytes in [start, end) out of the mapping.
func (m *Mapping) Range(start, end int64) []byte {
	if end > m.size {
		end = m.size
	}
	if start < 0 || start >= end {
		return nil
	}
	buf := make([]byte, end-start)
	if _, err := m.reader.ReadAt(buf, start); err != nil {
		return nil
	}
	return buf
}

// MappedSource provides memory-mapped access to a large file. Reload
// publishes a whole new Mapping rather than mutating in place.
type MappedSource struct {
	path string
	cur  *Mapping
}

// OpenMapped opens a file with memory mapping.
func OpenMapped(path string) (*MappedSource, error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		reader.Close()
		return nil, err
	}
	return &MappedSource{
		path: path,
		cur:  &Mapping{reader: reader, size: info.Size()},
	}, nil
}

func (s *MappedSource) Size() int64 {
	return s.cur.size
}

func (s *MappedSource) Range(start, end int64) []byte {
	return s.cur.Range(start, end)
}

// Snapshot returns the current mapping.
func (s *MappedSource) Snapshot() Data {
	return s.cur
}

// Reload remaps the file if it has grown. The previous mapping is left for
// readers that still hold it.
func (s *MappedSource) Reload() (bool, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return false, err
	}
	newSize := info.Size()
	if newSize <= s.cur.size {
		return false, nil
	}
	reader, err := mmap.Open(s.path)
	if err != nil {
		return false, err
	}
	s.cur = &Mapping{reader: reader, size: newSize}
	return true, nil
}

// Close releases the current mapping.
func (s *MappedSource) Close() error {
	return s.cur.reader.Close()
}

// Path returns the file path.
func (s *MappedSource) Path() string {
	return s.path
}
