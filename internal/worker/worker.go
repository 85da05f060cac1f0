// Package worker runs batched index, search, and filter work on one
// dedicated goroutine, used only for memory-mapped sources. The protocol is
// a strict request/reply loop over two channels: at most one request in
// flight, exactly one result per request, and the worker never initiates
// communication. No shared mutable state crosses the boundary — requests
// carry immutable data snapshots and append-only offset tables, and all
// index mutation happens on the requester after a result returns.
package worker

import (
	"regexp"
	"sync/atomic"

	"github.com/TimelordUK/loghew/internal/index"
	"github.com/TimelordUK/loghew/internal/search"
	"github.com/TimelordUK/loghew/internal/source"
	"github.com/TimelordUK/loghew/pkg/logformat"
)

// Generation tags asynchronous work so stale results can be discarded.
type Generation uint64

// cancelStride is how often (in lines) a batch polls its cancel flag.
// Cancellation latency is bounded, not immediate.
const cancelStride = 1024

// Request is one unit of work. Exactly one Result is sent per Request.
type Request interface {
	isRequest()
}

// ScanBatch extends the offset/level index over raw bytes with timestamps
// skipped, so freshly opened huge files become navigable early.
type ScanBatch struct {
	Data      source.Data
	StartByte int64
	Limit     int64
	MaxLines  int
	Format    *logformat.TimestampFormat
}

// DeferredParseBatch computes timestamp and level metadata for lines whose
// offsets are already known. Offsets may carry one extra bounding entry past
// Count.
type DeferredParseBatch struct {
	Data       source.Data
	Offsets    []int64
	Count      int
	Levels     []logformat.Level
	StartIndex int
	Format     *logformat.TimestampFormat
	LastTS     int64
}

// SearchBatch scans a frozen offsets snapshot for regex matches. The
// snapshot is captured at search start so concurrent file growth cannot
// disturb in-flight arithmetic.
type SearchBatch struct {
	Data       source.Data
	Regex      *regexp.Regexp
	Offsets    []int64
	StartLine  int
	BatchSize  int
	Generation Generation
	Cancel     *atomic.Bool
}

// FilterBatch evaluates an AND of conditions over a frozen offsets snapshot.
type FilterBatch struct {
	Data       source.Data
	Conditions []search.Condition
	Offsets    []int64
	StartLine  int
	BatchSize  int
	Generation Generation
	Cancel     *atomic.Bool
}

// Quit terminates the loop. The owner must join the goroutine on shutdown.
type Quit struct{}

func (ScanBatch) isRequest()          {}
func (DeferredParseBatch) isRequest() {}
func (SearchBatch) isRequest()        {}
func (FilterBatch) isRequest()        {}
func (Quit) isRequest()               {}

// Result is the reply to one Request.
type Result interface {
	isResult()
}

// ScanResult carries a scanned chunk and where the next scan resumes.
type ScanResult struct {
	Chunk      *index.Chunk
	NextOffset int64
	DataLen    int64
}

// DeferredResult carries parsed metadata for lines starting at StartIndex.
type DeferredResult struct {
	StartIndex int
	Slice      index.DeferredSlice
}

// SearchResult carries matches found in one batch. A cancelled batch reports
// a truncated cursor and Done=false; its stale result is discarded by
// generation mismatch on delivery.
type SearchResult struct {
	Matches    []int
	Cursor     int
	Done       bool
	Generation Generation
}

// FilterResult mirrors SearchResult for filters.
type FilterResult struct {
	Matches    []int
	Cursor     int
	Done       bool
	Generation Generation
}

func (ScanResult) isResult()     {}
func (DeferredResult) isResult() {}
func (SearchResult) isResult()   {}
func (FilterResult) isResult()   {}

// Loop services requests until Quit or channel close, then closes results so
// the owner can detect worker death.
func Loop(reqs <-chan Request, results chan<- Result) {
	defer close(results)
	for req := range reqs {
		switch r := req.(type) {
		case Quit:
			return
		case ScanBatch:
			results <- runScan(r)
		case DeferredParseBatch:
			results <- runDeferredParse(r)
		case SearchBatch:
			results <- runSearch(r)
		case FilterBatch:
			results <- runFilter(r)
		}
	}
}

func runScan(r ScanBatch) ScanResult {
	limit := r.Limit
	if limit <= 0 || limit > r.Data.Size() {
		limit = r.Data.Size()
	}
	chunk := index.BuildChunk(r.Data, r.StartByte, limit, r.MaxLines, r.Format, true)
	next := limit
	if n := len(chunk.Offsets); n > 0 {
		next = chunk.Offsets[n-1] + 1
	}
	return ScanResult{Chunk: chunk, NextOffset: next, DataLen: limit}
}

func runDeferredParse(r DeferredParseBatch) DeferredResult {
	s := index.ParseDeferredRange(r.Data, r.Offsets, r.Count, r.Levels, r.Format, r.LastTS)
	return DeferredResult{StartIndex: r.StartIndex, Slice: s}
}

func runSearch(r SearchBatch) SearchResult {
	total := len(r.Offsets)
	end := r.StartLine + r.BatchSize
	if end > total {
		end = total
	}
	var matches []int
	cursor := end
	cancelled := false
	for i := r.StartLine; i < end; i++ {
		if i%cancelStride == 0 && r.Cancel.Load() {
			cursor = i
			cancelled = true
			break
		}
		if line, ok := source.LineText(r.Data, r.Offsets, i); ok && r.Regex.MatchString(line) {
			matches = append(matches, i)
		}
	}
	return SearchResult{
		Matches:    matches,
		Cursor:     cursor,
		Done:       cursor >= total && !cancelled,
		Generation: r.Generation,
	}
}

func runFilter(r FilterBatch) FilterResult {
	total := len(r.Offsets)
	end := r.StartLine + r.BatchSize
	if end > total {
		end = total
	}
	var matches []int
	cursor := end
	cancelled := false
	for i := r.StartLine; i < end; i++ {
		if i%cancelStride == 0 && r.Cancel.Load() {
			cursor = i
			cancelled = true
			break
		}
		line, ok := source.LineText(r.Data, r.Offsets, i)
		if !ok {
			continue
		}
		pass := true
		for _, c := range r.Conditions {
			if !c.Pass(line) {
				pass = false
				break
			}
		}
		if pass {
			matches = append(matches, i)
		}
	}
	return FilterResult{
		Matches:    matches,
		Cursor:     cursor,
		Done:       cursor >= total && !cancelled,
		Generation: r.Generation,
	}
}
