package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/TimelordUK/loghew/internal/index"
	"github.com/TimelordUK/loghew/internal/search"
	"github.com/TimelordUK/loghew/internal/source"
	"github.com/TimelordUK/loghew/pkg/logformat"
)

// LineInfo is everything the presentation layer needs for one visible line.
type LineInfo struct {
	Text       string
	Original   int
	Level      logformat.Level
	Timestamp  int64
	HasTime    bool
	EntryStart bool
}

// Path returns the opened file path, empty for streams.
func (e *Engine) Path() string {
	return e.path
}

// TotalLines reflects only offset-known lines.
func (e *Engine) TotalLines() int {
	return e.idx.TotalLines()
}

// Line returns the capped, terminator-stripped text of line i.
func (e *Engine) Line(i int) (string, bool) {
	return source.LineText(e.src, e.idx.Offsets(), i)
}

// Level returns line i's detected level.
func (e *Engine) Level(i int) logformat.Level {
	return e.idx.Level(i)
}

// Timestamp returns line i's epoch-millisecond timestamp.
func (e *Engine) Timestamp(i int) (int64, bool) {
	return e.idx.Timestamp(i)
}

// EntryStart reports whether line i starts a logical entry.
func (e *Engine) EntryStart(i int) bool {
	return e.idx.EntryStart(i)
}

// LevelCounts returns the running level aggregate.
func (e *Engine) LevelCounts() index.LevelCounts {
	return e.idx.Counts()
}

// Format returns the session's timestamp format, nil if none was detected.
func (e *Engine) Format() *logformat.TimestampFormat {
	return e.idx.Format
}

// VisibleCount is the line count after the active filter, or the total when
// no filter is set.
func (e *Engine) VisibleCount() int {
	if e.fltr != nil {
		return e.fltr.MatchCount()
	}
	return e.idx.TotalLines()
}

// ActualLine maps a visible index back to the original line number.
func (e *Engine) ActualLine(visIdx int) int {
	if e.fltr != nil {
		m := e.fltr.Matches()
		if visIdx >= 0 && visIdx < len(m) {
			return m[visIdx]
		}
		return 0
	}
	return visIdx
}

// VisibleLine resolves one visible index to its line info.
func (e *Engine) VisibleLine(i int) (LineInfo, bool) {
	if i < 0 || i >= e.VisibleCount() {
		return LineInfo{}, false
	}
	orig := e.ActualLine(i)
	text, _ := e.Line(orig)
	ts, hasTS := e.idx.Timestamp(orig)
	return LineInfo{
		Text:       text,
		Original:   orig,
		Level:      e.idx.Level(orig),
		Timestamp:  ts,
		HasTime:    hasTS,
		EntryStart: e.idx.EntryStart(orig),
	}, true
}

// Scanning reports whether the initial offset scan is still running.
func (e *Engine) Scanning() bool {
	return !e.scanDone
}

// ScanProgress returns scan completion in [0, 1].
func (e *Engine) ScanProgress() float64 {
	size := e.src.Size()
	if size == 0 || e.scanDone {
		return 1
	}
	return float64(e.scanCursor) / float64(size)
}

// Parsing reports whether deferred metadata backfill is still pending.
func (e *Engine) Parsing() bool {
	return !e.idx.MetadataReady()
}

// ParseProgress returns metadata backfill completion in [0, 1].
func (e *Engine) ParseProgress() float64 {
	total := e.idx.TotalLines()
	if total == 0 {
		return 1
	}
	return float64(e.idx.ParseCursor()) / float64(total)
}

// ConsumeScanComplete reports, once, that the initial scan just finished.
// The presentation layer uses it to auto-scroll in follow mode.
func (e *Engine) ConsumeScanComplete() bool {
	v := e.scanNotify
	e.scanNotify = false
	return v
}

// Follow reports whether follow mode is active.
func (e *Engine) Follow() bool {
	return e.follow
}

// SetFollow toggles follow mode.
func (e *Engine) SetFollow(on bool) {
	e.follow = on
}

// StartSearch compiles and starts a new search, superseding any prior one:
// the generation is bumped, in-flight work is signal-cancelled, and
// accumulators reset. A bad pattern returns an error and leaves existing
// search state untouched. An empty pattern clears the search.
func (e *Engine) StartSearch(pattern string, literal bool) error {
	var st *search.State
	var err error
	if literal {
		st, err = search.NewLiteral(pattern)
	} else {
		st, err = search.NewRegex(pattern)
	}
	if err != nil {
		return err
	}

	e.searchGen++
	if e.srchRun != nil {
		e.srchRun.cancel.Store(true)
	}
	e.srch = st
	e.srchRun = nil
	if st == nil {
		return nil
	}

	run := &matchRun{
		data:    e.src.Snapshot(),
		offsets: e.idx.Offsets(),
		cancel:  &atomic.Bool{},
		gen:     e.searchGen,
	}
	e.srchRun = run
	st.Start(len(run.offsets))
	return nil
}

// ClearSearch drops the current search and cancels in-flight work.
func (e *Engine) ClearSearch() {
	e.searchGen++
	if e.srchRun != nil {
		e.srchRun.cancel.Store(true)
	}
	e.srch = nil
	e.srchRun = nil
}

// Search exposes the live search state, nil when none.
func (e *Engine) Search() *search.State {
	return e.srch
}

// Searching reports whether a search is still accumulating matches.
func (e *Engine) Searching() bool {
	return e.srch != nil && e.srch.Active()
}

// StartFilter parses and starts a new filter with the same supersession
// discipline as StartSearch. An empty expression clears the filter.
func (e *Engine) StartFilter(expr string) error {
	f, err := search.NewFilter(expr)
	if err != nil {
		return err
	}

	e.filterGen++
	if e.fltrRun != nil {
		e.fltrRun.cancel.Store(true)
	}
	e.fltr = f
	e.fltrRun = nil
	if f == nil {
		return nil
	}

	run := &matchRun{
		data:    e.src.Snapshot(),
		offsets: e.idx.Offsets(),
		cancel:  &atomic.Bool{},
		gen:     e.filterGen,
	}
	e.fltrRun = run
	f.Start(len(run.offsets))
	return nil
}

// ClearFilter removes the filter, restoring the unfiltered view.
func (e *Engine) ClearFilter() {
	e.filterGen++
	if e.fltrRun != nil {
		e.fltrRun.cancel.Store(true)
	}
	e.fltr = nil
	e.fltrRun = nil
}

// Filter exposes the live filter, nil when none.
func (e *Engine) Filter() *search.Filter {
	return e.fltr
}

// Filtering reports whether a filter is still accumulating matches.
func (e *Engine) Filtering() bool {
	return e.fltr != nil && e.fltr.Active()
}

// JumpToTime resolves a time expression to a line via lower-bound search
// over the timestamp index. Absolute forms: "15:04", "15:04:05",
// "2006-01-02 15:04", "2006-01-02 15:04:05" (time-only forms borrow the date
// of the file's first timestamp). Relative forms: +/- then a number and an
// s/m/h suffix, anchored at fromLine.
func (e *Engine) JumpToTime(input string, fromLine int) (int, error) {
	if e.idx.Format == nil {
		return 0, errors.New("no timestamps detected in file")
	}
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "+") || strings.HasPrefix(input, "-") {
		return e.jumpRelative(input, fromLine)
	}

	var target int64
	switch {
	case tryClock(input, "15:04:05", e, &target):
	case tryClock(input, "15:04", e, &target):
	case tryStamp(input, "2006-01-02 15:04:05", &target):
	case tryStamp(input, "2006-01-02 15:04", &target):
	default:
		return 0, fmt.Errorf("cannot parse time %q", input)
	}
	return e.idx.LowerBoundTimestamp(target), nil
}

func tryClock(input, layout string, e *Engine, target *int64) bool {
	t, err := time.Parse(layout, input)
	if err != nil {
		return false
	}
	base, _ := e.idx.FirstTimestamp()
	bt := time.UnixMilli(base).UTC()
	*target = time.Date(bt.Year(), bt.Month(), bt.Day(),
		t.Hour(), t.Minute(), t.Second(), 0, time.UTC).UnixMilli()
	return true
}

func tryStamp(input, layout string, target *int64) bool {
	t, err := time.Parse(layout, input)
	if err != nil {
		return false
	}
	*target = t.UnixMilli()
	return true
}

func (e *Engine) jumpRelative(input string, fromLine int) (int, error) {
	cur, _ := e.idx.Timestamp(fromLine)

	sign := int64(1)
	if input[0] == '-' {
		sign = -1
	}
	rest := input[1:]
	if len(rest) < 2 {
		return 0, fmt.Errorf("invalid time offset %q", input)
	}
	unit := rest[len(rest)-1]
	num, err := strconv.ParseInt(rest[:len(rest)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid time offset %q", input)
	}
	var ms int64
	switch unit {
	case 's':
		ms = num * 1000
	case 'm':
		ms = num * 60_000
	case 'h':
		ms = num * 3_600_000
	default:
		return 0, errors.New("use s/m/h suffix (e.g. -5m, +30s, -1h)")
	}
	return e.idx.LowerBoundTimestamp(cur + sign*ms), nil
}
