package index

import (
	"bytes"

	"github.com/TimelordUK/loghew/internal/source"
	"github.com/TimelordUK/loghew/pkg/logformat"
)

// metaPrefixBytes bounds how much of a line is read for metadata parsing.
const metaPrefixBytes = 200

// scanWindow is the read size for the forward offset scan.
const scanWindow = 256 * 1024

// sampleLines bounds timestamp format detection.
const sampleLines = 20

// Chunk is a freshly scanned run of lines, merged into the index as a single
// update.
type Chunk struct {
	Offsets    []int64
	Timestamps []int64
	Levels     []logformat.Level
	EntryStart []bool
}

// BuildChunk scans forward from startByte for line starts, stopping after
// maxLines lines (<=0 means to end of data) or at limitByte (<=0 means end).
// startByte itself is registered only if it is file start or immediately
// follows a terminator, so a resumed scan never duplicates a line. Levels are
// always computed; timestamps are computed inline unless skipTimestamps, the
// first-pass mode that makes huge files navigable before metadata exists.
func BuildChunk(d source.Data, startByte, limitByte int64, maxLines int, format *logformat.TimestampFormat, skipTimestamps bool) *Chunk {
	size := d.Size()
	if limitByte <= 0 || limitByte > size {
		limitByte = size
	}

	var offsets []int64
	if startByte == 0 {
		if size > 0 {
			offsets = append(offsets, 0)
		}
	} else if startByte <= limitByte {
		if prev := d.Range(startByte-1, startByte); len(prev) == 1 && prev[0] == '\n' {
			offsets = append(offsets, startByte)
		}
	}

	// Phase 1: forward scan for terminators in bounded windows.
scan:
	for pos := startByte; pos < limitByte; {
		winEnd := pos + scanWindow
		if winEnd > limitByte {
			winEnd = limitByte
		}
		window := d.Range(pos, winEnd)
		rel := 0
		for {
			i := bytes.IndexByte(window[rel:], '\n')
			if i < 0 {
				break
			}
			abs := pos + int64(rel) + int64(i)
			if abs+1 < limitByte {
				offsets = append(offsets, abs+1)
			}
			rel += i + 1
			if maxLines > 0 && len(offsets) >= maxLines+1 {
				break scan
			}
		}
		pos = winEnd
	}

	// Phase 2: per-line metadata from a bounded prefix.
	timestamps := make([]int64, 0, len(offsets))
	levels := make([]logformat.Level, 0, len(offsets))
	entryStart := make([]bool, 0, len(offsets))
	lastTS := TSNone

	for i, off := range offsets {
		lineEnd := limitByte
		if i+1 < len(offsets) {
			lineEnd = offsets[i+1] - 1
		}
		checkEnd := off + metaPrefixBytes
		if checkEnd > lineEnd {
			checkEnd = lineEnd
		}
		prefix := d.Range(off, checkEnd)

		levels = append(levels, logformat.DetectLevel(prefix))

		switch {
		case skipTimestamps || format == nil:
			timestamps = append(timestamps, TSNone)
			entryStart = append(entryStart, true)
		default:
			if ms, ok := format.ParseEpochMs(string(prefix)); ok {
				timestamps = append(timestamps, ms)
				entryStart = append(entryStart, true)
				lastTS = ms
			} else {
				// Continuation line: inherit the nearest preceding entry's
				// timestamp.
				timestamps = append(timestamps, lastTS)
				entryStart = append(entryStart, false)
			}
		}
	}

	return &Chunk{
		Offsets:    offsets,
		Timestamps: timestamps,
		Levels:     levels,
		EntryStart: entryStart,
	}
}

// DeferredSlice is the outcome of parsing metadata for a run of already
// offset-known lines.
type DeferredSlice struct {
	Timestamps  []int64
	Levels      []logformat.Level
	EntryStart  []bool
	CountsDelta LevelCounts
	LastTS      int64
}

// ParseDeferredRange computes metadata for count lines. offsets may carry one
// extra trailing entry bounding the last line; without it the last line runs
// to end of data. levels holds the current known levels so counts only grow
// for newly classified lines. Shared by the synchronous path and the worker
// so both produce identical index state.
func ParseDeferredRange(d source.Data, offsets []int64, count int, levels []logformat.Level, format *logformat.TimestampFormat, lastTS int64) DeferredSlice {
	size := d.Size()
	out := DeferredSlice{
		Timestamps: make([]int64, 0, count),
		Levels:     make([]logformat.Level, 0, count),
		EntryStart: make([]bool, 0, count),
	}

	for i := 0; i < count; i++ {
		off := offsets[i]
		if off >= size {
			out.Timestamps = append(out.Timestamps, TSNone)
			out.Levels = append(out.Levels, levels[i])
			out.EntryStart = append(out.EntryStart, true)
			continue
		}
		lineEnd := size
		if i+1 < len(offsets) {
			lineEnd = offsets[i+1] - 1
		}
		checkEnd := off + metaPrefixBytes
		if checkEnd > lineEnd {
			checkEnd = lineEnd
		}
		prefix := d.Range(off, checkEnd)

		level := levels[i]
		if level == logformat.LevelUnknown {
			if det := logformat.DetectLevel(prefix); det != logformat.LevelUnknown {
				level = det
				out.CountsDelta.count(det)
			}
		}
		out.Levels = append(out.Levels, level)

		if format == nil {
			out.Timestamps = append(out.Timestamps, TSNone)
			out.EntryStart = append(out.EntryStart, true)
			continue
		}
		if ms, ok := format.ParseEpochMs(string(prefix)); ok {
			out.Timestamps = append(out.Timestamps, ms)
			out.EntryStart = append(out.EntryStart, true)
			lastTS = ms
		} else {
			out.Timestamps = append(out.Timestamps, lastTS)
			out.EntryStart = append(out.EntryStart, false)
		}
	}

	out.LastTS = lastTS
	return out
}

// DetectTimestampFormat samples up to 20 lines from the start of the data
// and picks the dominant pattern. The choice is fixed for the session.
func DetectTimestampFormat(d source.Data) *logformat.TimestampFormat {
	head := d.Range(0, 64*1024)
	var lines []string
	for len(head) > 0 && len(lines) < sampleLines {
		var line []byte
		if i := bytes.IndexByte(head, '\n'); i >= 0 {
			line, head = head[:i], head[i+1:]
		} else {
			line, head = head, nil
		}
		if len(line) > metaPrefixBytes {
			line = line[:metaPrefixBytes]
		}
		lines = append(lines, string(line))
	}
	return logformat.DetectTimestampFormat(lines)
}
