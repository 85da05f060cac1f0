// Package engine coordinates the indexing, search, and filter machinery
// behind the interactive frontend. Execution mode is fixed per session by
// file size at open: small files run everything on the UI goroutine in
// bounded time-sliced batches; large memory-mapped files delegate to exactly
// one background worker via a strict request/reply channel pair. The host
// loop calls Tick once per frame; each tick drains worker results and
// advances at most one unit of work.
package engine

import (
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/oarkflow/log"

	"github.com/TimelordUK/loghew/internal/debuglog"
	"github.com/TimelordUK/loghew/internal/index"
	"github.com/TimelordUK/loghew/internal/search"
	"github.com/TimelordUK/loghew/internal/source"
	"github.com/TimelordUK/loghew/internal/worker"
)

const (
	defaultScanBatchLines  = 500_000
	defaultParseBatchLines = 50_000
	defaultMatchBatchLines = 100_000
)

// Options tunes an engine. Zero values pick defaults.
type Options struct {
	Follow bool
	Debug  bool

	// WorkerThreshold is the file size above which the background worker is
	// used. Defaults to source.MmapThreshold.
	WorkerThreshold int64

	ScanBatchLines  int
	ParseBatchLines int
	MatchBatchLines int
}

func (o Options) withDefaults() Options {
	if o.WorkerThreshold == 0 {
		o.WorkerThreshold = source.MmapThreshold
	}
	if o.ScanBatchLines == 0 {
		o.ScanBatchLines = defaultScanBatchLines
	}
	if o.ParseBatchLines == 0 {
		o.ParseBatchLines = defaultParseBatchLines
	}
	if o.MatchBatchLines == 0 {
		o.MatchBatchLines = defaultMatchBatchLines
	}
	return o
}

// matchRun freezes everything an in-flight search or filter needs: the data
// snapshot and offsets captured at start (so concurrent growth cannot
// corrupt arithmetic), the generation token, and the shared cancel flag.
type matchRun struct {
	data    source.Data
	offsets []int64
	cancel  *atomic.Bool
	gen     worker.Generation
}

// Engine owns the source, the index, and all in-flight work. All mutation
// happens on the goroutine calling Tick; the worker only sees immutable
// snapshots.
type Engine struct {
	path string
	src  source.Source
	idx  *index.Index
	log  *log.Logger
	opts Options

	useWorker  bool
	reqs       chan worker.Request
	results    chan worker.Result
	wg         sync.WaitGroup
	busy       bool
	workerDown bool

	scanCursor int64
	scanDone   bool
	scanNotify bool

	srch    *search.State
	srchRun *matchRun
	fltr    *search.Filter
	fltrRun *matchRun

	searchGen worker.Generation
	filterGen worker.Generation

	follow bool
}

// Open opens a log file, failing on I/O errors. Files above the worker
// threshold are memory-mapped and indexed in the background; everything else
// is buffered and indexed inline.
func Open(path string, opts Options) (*Engine, error) {
	opts = opts.withDefaults()
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if info.Size() > opts.WorkerThreshold {
		src, err := source.OpenMapped(path)
		if err != nil {
			return nil, err
		}
		e := newEngine(path, src, opts)
		e.useWorker = true
		e.reqs = make(chan worker.Request, 1)
		e.results = make(chan worker.Result, 1)
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			worker.Loop(e.reqs, e.results)
		}()
		e.log.Debug().Str("path", path).Int64("size", info.Size()).Msg("opened mapped")
		return e, nil
	}

	src, err := source.OpenBuffered(path)
	if err != nil {
		return nil, err
	}
	e := newEngine(path, src, opts)
	e.scanAll()
	e.log.Debug().Str("path", path).Int("lines", e.idx.TotalLines()).Msg("opened buffered")
	return e, nil
}

// OpenStream fully buffers a piped stream. Streams never grow.
func OpenStream(r io.Reader, opts Options) (*Engine, error) {
	opts = opts.withDefaults()
	src, err := source.OpenStream(r)
	if err != nil {
		return nil, err
	}
	e := newEngine("", src, opts)
	e.scanAll()
	return e, nil
}

func newEngine(path string, src source.Source, opts Options) *Engine {
	e := &Engine{
		path:   path,
		src:    src,
		idx:    index.New(),
		log:    debuglog.New(opts.Debug),
		opts:   opts,
		follow: opts.Follow,
	}
	e.idx.Format = index.DetectTimestampFormat(src)
	return e
}

// scanAll indexes a buffered source in one pass, timestamps included.
func (e *Engine) scanAll() {
	chunk := index.BuildChunk(e.src, 0, 0, 0, e.idx.Format, false)
	e.idx.MergeChunk(chunk, true)
	e.scanCursor = e.src.Size()
	e.scanDone = true
}

// Tick drives one frame of background progress: a growth probe, a drain of
// worker results, and at most one submitted (or synchronously executed) unit
// of work. Reload errors are ignored for the tick and retried on the next.
// Returns whether anything observable changed.
func (e *Engine) Tick() bool {
	changed := false

	if grew, err := e.src.Reload(); err == nil && grew {
		changed = true
		if e.useWorker {
			e.scanDone = false
		} else {
			e.appendSuffix()
		}
	}

	if e.useWorker {
		if e.drainResults() {
			changed = true
		}
		if !e.busy && !e.workerDown {
			e.submitNext()
		}
	} else if e.stepSync() {
		changed = true
	}

	return changed
}

// appendSuffix indexes freshly appended bytes of a buffered source inline.
// Metadata is skipped and backfilled by the deferred parser so inheritance
// stays consistent with the carried timestamp.
func (e *Engine) appendSuffix() {
	chunk := index.BuildChunk(e.src, e.scanCursor, 0, 0, e.idx.Format, true)
	if len(chunk.Offsets) > 0 {
		e.idx.MergeChunk(chunk, false)
	}
	e.scanCursor = e.src.Size()
}

// drainResults applies every pending worker result. Results tagged with a
// superseded generation are discarded. A closed result channel means the
// worker died; the engine degrades to no further background progress.
func (e *Engine) drainResults() bool {
	changed := false
	for {
		select {
		case res, ok := <-e.results:
			if !ok {
				e.workerDown = true
				e.busy = false
				return changed
			}
			e.busy = false
			if e.apply(res) {
				changed = true
			}
		default:
			return changed
		}
	}
}

func (e *Engine) apply(res worker.Result) bool {
	switch r := res.(type) {
	case worker.ScanResult:
		e.idx.MergeChunk(r.Chunk, false)
		e.scanCursor = r.NextOffset
		if e.scanCursor >= e.src.Size() {
			if !e.scanDone {
				e.scanDone = true
				e.scanNotify = true
				e.log.Debug().Int("lines", e.idx.TotalLines()).Msg("scan complete")
			}
		}
		return len(r.Chunk.Offsets) > 0

	case worker.DeferredResult:
		return e.idx.ApplyDeferred(r.StartIndex, r.Slice)

	case worker.SearchResult:
		if e.srch == nil || e.srchRun == nil || r.Generation != e.srchRun.gen {
			return false
		}
		e.srch.ApplyBatch(r.Matches, r.Cursor, r.Done)
		if r.Done {
			e.log.Debug().Int("matches", e.srch.MatchCount()).Msg("search complete")
		}
		return true

	case worker.FilterResult:
		if e.fltr == nil || e.fltrRun == nil || r.Generation != e.fltrRun.gen {
			return false
		}
		e.fltr.ApplyBatch(r.Matches, r.Cursor, r.Done)
		return true
	}
	return false
}

// submitNext submits at most one request by strict priority: active search,
// active filter, unfinished initial scan, deferred metadata backfill.
func (e *Engine) submitNext() {
	switch {
	case e.srch != nil && e.srch.Active():
		r := e.srchRun
		e.send(worker.SearchBatch{
			Data:       r.data,
			Regex:      e.srch.Regexp(),
			Offsets:    r.offsets,
			StartLine:  e.srch.Cursor(),
			BatchSize:  e.opts.MatchBatchLines,
			Generation: r.gen,
			Cancel:     r.cancel,
		})

	case e.fltr != nil && e.fltr.Active():
		r := e.fltrRun
		e.send(worker.FilterBatch{
			Data:       r.data,
			Conditions: e.fltr.Conditions,
			Offsets:    r.offsets,
			StartLine:  e.fltr.Cursor(),
			BatchSize:  e.opts.MatchBatchLines,
			Generation: r.gen,
			Cancel:     r.cancel,
		})

	case !e.scanDone:
		e.send(worker.ScanBatch{
			Data:      e.src.Snapshot(),
			StartByte: e.scanCursor,
			MaxLines:  e.opts.ScanBatchLines,
			Format:    e.idx.Format,
		})

	case !e.idx.MetadataReady():
		start := e.idx.ParseCursor()
		end := start + e.opts.ParseBatchLines
		if end > e.idx.TotalLines() {
			end = e.idx.TotalLines()
		}
		bound := end + 1
		if bound > e.idx.TotalLines() {
			bound = e.idx.TotalLines()
		}
		e.send(worker.DeferredParseBatch{
			Data:       e.src.Snapshot(),
			Offsets:    e.idx.Offsets()[start:bound],
			Count:      end - start,
			Levels:     e.idx.LevelsRange(start, end),
			StartIndex: start,
			Format:     e.idx.Format,
			LastTS:     e.idx.LastParsedTS(),
		})
	}
}

func (e *Engine) send(r worker.Request) {
	e.busy = true
	e.reqs <- r
}

// stepSync executes one bounded batch on the calling goroutine, same
// priority order as the worker path.
func (e *Engine) stepSync() bool {
	switch {
	case e.srch != nil && e.srch.Active():
		r := e.srchRun
		e.srch.StepSync(e.opts.MatchBatchLines, func(i int) (string, bool) {
			return source.LineText(r.data, r.offsets, i)
		})
		return true

	case e.fltr != nil && e.fltr.Active():
		r := e.fltrRun
		e.fltr.StepSync(e.opts.MatchBatchLines, func(i int) (string, bool) {
			return source.LineText(r.data, r.offsets, i)
		})
		return true

	case !e.idx.MetadataReady():
		e.idx.ParseDeferredBatch(e.src, e.opts.ParseBatchLines)
		return true
	}
	return false
}

// Close shuts down the worker and releases the source. Safe when the worker
// already died.
func (e *Engine) Close() error {
	if e.useWorker {
		close(e.reqs)
		// Unblock a worker mid-send so the join cannot deadlock.
		go func() {
			for range e.results {
			}
		}()
	}
	e.wg.Wait()
	return e.src.Close()
}
