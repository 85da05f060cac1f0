// Package index maintains the progressive line index: line-start byte
// offsets, per-line timestamps with continuation-line carry-forward, per-line
// levels, entry-start flags, and incrementally maintained level counts.
package index

import (
	"math"

	"github.com/TimelordUK/loghew/internal/source"
	"github.com/TimelordUK/loghew/pkg/logformat"
)

// TSNone marks a line with no known timestamp. It sorts below every real
// timestamp, which the lower-bound search relies on.
const TSNone = int64(math.MinInt64)

// LevelCounts is a running aggregate of per-line levels. It always equals a
// full recount over indexed lines; maintenance is strictly incremental.
type LevelCounts struct {
	Error int
	Warn  int
	Info  int
	Debug int
	Trace int
}

// Add accumulates another count set.
func (c *LevelCounts) Add(o LevelCounts) {
	c.Error += o.Error
	c.Warn += o.Warn
	c.Info += o.Info
	c.Debug += o.Debug
	c.Trace += o.Trace
}

func (c *LevelCounts) count(l logformat.Level) {
	switch l {
	case logformat.LevelError:
		c.Error++
	case logformat.LevelWarn:
		c.Warn++
	case logformat.LevelInfo:
		c.Info++
	case logformat.LevelDebug:
		c.Debug++
	case logformat.LevelTrace:
		c.Trace++
	}
}

// Index holds the parallel per-line arrays. It is owned and mutated by a
// single goroutine; background work only ever sees immutable snapshots of
// the offset table (safe to share because it is append-only).
type Index struct {
	offsets    []int64
	timestamps []int64
	levels     []logformat.Level
	entryStart []bool

	// Format is chosen once at open; nil disables timestamp features.
	Format *logformat.TimestampFormat

	counts LevelCounts

	// parseCursor is the first line whose timestamp/entry metadata is not
	// yet known; lastParsedTS carries continuation inheritance across batch
	// boundaries.
	parseCursor  int
	lastParsedTS int64
}

// New returns an empty index.
func New() *Index {
	return &Index{lastParsedTS: TSNone}
}

// TotalLines reflects only offset-known lines.
func (x *Index) TotalLines() int {
	return len(x.offsets)
}

// Offsets returns the offset table. Append-only: holders may read freely up
// to their captured length while the owner keeps appending.
func (x *Index) Offsets() []int64 {
	return x.offsets
}

// Offset returns the byte offset of line i, or -1.
func (x *Index) Offset(i int) int64 {
	if i < 0 || i >= len(x.offsets) {
		return -1
	}
	return x.offsets[i]
}

// Timestamp returns line i's epoch-millisecond timestamp.
func (x *Index) Timestamp(i int) (int64, bool) {
	if i < 0 || i >= len(x.timestamps) || x.timestamps[i] == TSNone {
		return 0, false
	}
	return x.timestamps[i], true
}

// Level returns line i's detected level.
func (x *Index) Level(i int) logformat.Level {
	if i < 0 || i >= len(x.levels) {
		return logformat.LevelUnknown
	}
	return x.levels[i]
}

// EntryStart reports whether line i starts a logical entry.
func (x *Index) EntryStart(i int) bool {
	if i < 0 || i >= len(x.entryStart) {
		return true
	}
	return x.entryStart[i]
}

// Counts returns the current level aggregate.
func (x *Index) Counts() LevelCounts {
	return x.counts
}

// ParseCursor returns the first line with unparsed metadata.
func (x *Index) ParseCursor() int {
	return x.parseCursor
}

// LastParsedTS returns the carried timestamp at the parse cursor.
func (x *Index) LastParsedTS() int64 {
	return x.lastParsedTS
}

// MetadataReady reports whether every indexed line has parsed metadata.
func (x *Index) MetadataReady() bool {
	return x.parseCursor >= len(x.offsets)
}

// LevelsRange returns the levels for [start, end).
func (x *Index) LevelsRange(start, end int) []logformat.Level {
	return x.levels[start:end]
}

// MergeChunk appends a chunk to the index. Level counts grow by summing only
// the new levels. parsed marks chunks whose timestamps were computed inline,
// which lets the parse cursor skip over them.
func (x *Index) MergeChunk(c *Chunk, parsed bool) {
	for _, l := range c.Levels {
		x.counts.count(l)
	}
	oldTotal := len(x.offsets)
	x.offsets = append(x.offsets, c.Offsets...)
	x.timestamps = append(x.timestamps, c.Timestamps...)
	x.levels = append(x.levels, c.Levels...)
	x.entryStart = append(x.entryStart, c.EntryStart...)

	if parsed && x.parseCursor == oldTotal {
		x.parseCursor = len(x.offsets)
		for i := len(c.Timestamps) - 1; i >= 0; i-- {
			if c.Timestamps[i] != TSNone {
				x.lastParsedTS = c.Timestamps[i]
				break
			}
		}
	}
}

// ParseDeferredBatch fills in metadata for the next batchSize lines past the
// parse cursor, synchronously. Reports whether work remains. Inheritance is
// identical regardless of batch size because lastParsedTS carries across
// calls.
func (x *Index) ParseDeferredBatch(d source.Data, batchSize int) bool {
	if x.MetadataReady() {
		return false
	}
	start := x.parseCursor
	end := start + batchSize
	if end > len(x.offsets) {
		end = len(x.offsets)
	}
	bound := end + 1
	if bound > len(x.offsets) {
		bound = len(x.offsets)
	}
	s := ParseDeferredRange(d, x.offsets[start:bound], end-start, x.levels[start:end], x.Format, x.lastParsedTS)
	x.ApplyDeferred(start, s)
	return !x.MetadataReady()
}

// ApplyDeferred merges a deferred-parse result starting at line start. A
// result that does not line up with the parse cursor is stale and dropped.
func (x *Index) ApplyDeferred(start int, s DeferredSlice) bool {
	if start != x.parseCursor || start+len(s.Timestamps) > len(x.offsets) {
		return false
	}
	copy(x.timestamps[start:], s.Timestamps)
	copy(x.levels[start:], s.Levels)
	copy(x.entryStart[start:], s.EntryStart)
	x.counts.Add(s.CountsDelta)
	x.parseCursor = start + len(s.Timestamps)
	x.lastParsedTS = s.LastTS
	return true
}

// FirstTimestamp returns the earliest known timestamp, used as the base
// date for time-of-day jumps.
func (x *Index) FirstTimestamp() (int64, bool) {
	for _, ts := range x.timestamps {
		if ts != TSNone {
			return ts, true
		}
	}
	return 0, false
}

// LowerBoundTimestamp returns the smallest line index whose timestamp is
// >= target, or the last line if every timestamp is smaller. Lines without
// timestamps sort first.
func (x *Index) LowerBoundTimestamp(target int64) int {
	lo, hi := 0, len(x.timestamps)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if x.timestamps[mid] < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if last := len(x.offsets) - 1; lo > last && last >= 0 {
		return last
	}
	return lo
}
