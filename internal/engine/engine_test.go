package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/TimelordUK/loghew/pkg/logformat"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.log")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
}

// settle ticks until all background work drains.
func settle(t *testing.T, e *Engine) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for e.Scanning() || e.Parsing() || e.Searching() || e.Filtering() {
		if time.Now().After(deadline) {
			t.Fatal("engine did not settle")
		}
		e.Tick()
		time.Sleep(time.Millisecond)
	}
}

const sampleLog = "2024-03-01T10:00:00 INFO start\n" +
	"2024-03-01T10:00:10 WARN slow request\n" +
	"  caused by: backlog\n" +
	"2024-03-01T10:00:20 ERROR request failed\n" +
	"2024-03-01T10:00:30 INFO recovered\n"

func TestOpenBufferedIndexesImmediately(t *testing.T) {
	e, err := Open(writeLog(t, sampleLog), Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if e.Scanning() || e.Parsing() {
		t.Error("buffered open should index inline")
	}
	if e.TotalLines() != 5 {
		t.Fatalf("lines = %d, want 5", e.TotalLines())
	}
	if line, _ := e.Line(0); line != "2024-03-01T10:00:00 INFO start" {
		t.Errorf("line 0 = %q", line)
	}
	if e.Level(3) != logformat.LevelError {
		t.Errorf("level[3] = %v, want LevelError", e.Level(3))
	}
	if e.EntryStart(2) {
		t.Error("continuation line flagged as entry start")
	}

	counts := e.LevelCounts()
	if counts.Info != 2 || counts.Warn != 1 || counts.Error != 1 {
		t.Errorf("counts = %+v", counts)
	}

	// Continuation inherits the preceding entry's timestamp.
	ts1, _ := e.Timestamp(1)
	ts2, ok := e.Timestamp(2)
	if !ok || ts2 != ts1 {
		t.Errorf("continuation timestamp = %d, want %d", ts2, ts1)
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "absent.log"), Options{}); err == nil {
		t.Fatal("opening a missing file must fail")
	}
}

func TestOpenStream(t *testing.T) {
	e, err := OpenStream(strings.NewReader("INFO a\nERROR b\n"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if e.Path() != "" {
		t.Errorf("stream path = %q, want empty", e.Path())
	}
	if e.TotalLines() != 2 {
		t.Errorf("lines = %d, want 2", e.TotalLines())
	}
	// A stream never grows; ticking is a no-op.
	if e.Tick() {
		t.Error("tick on settled stream reported a change")
	}
}

func TestWorkerModeIndexing(t *testing.T) {
	var content strings.Builder
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&content, "2024-03-01T10:%02d:%02d INFO line %d\n", i/60, i%60, i)
	}
	path := writeLog(t, content.String())

	e, err := Open(path, Options{
		WorkerThreshold: 1,
		ScanBatchLines:  10,
		ParseBatchLines: 7,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if !e.Scanning() {
		t.Error("worker-mode open should leave scanning to the background")
	}
	settle(t, e)

	if e.TotalLines() != 100 {
		t.Fatalf("lines = %d, want 100", e.TotalLines())
	}
	if !e.ConsumeScanComplete() {
		t.Error("scan completion was not signalled")
	}
	if e.ConsumeScanComplete() {
		t.Error("scan completion signalled twice")
	}
	if got := e.LevelCounts().Info; got != 100 {
		t.Errorf("info count = %d, want 100", got)
	}
	if line, _ := e.Line(99); line != "2024-03-01T10:01:39 INFO line 99" {
		t.Errorf("last line = %q", line)
	}
	if _, ok := e.Timestamp(50); !ok {
		t.Error("deferred parse left line 50 without a timestamp")
	}
}

func TestWorkerModeMatchesSync(t *testing.T) {
	var content strings.Builder
	for i := 0; i < 60; i++ {
		level := "INFO"
		if i%5 == 0 {
			level = "ERROR"
		}
		fmt.Fprintf(&content, "2024-03-01T10:00:%02d %s line %d\n", i%60, level, i)
		if i%9 == 0 {
			content.WriteString("  stack detail\n")
		}
	}
	path := writeLog(t, content.String())

	sync, err := Open(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer sync.Close()

	bg, err := Open(path, Options{WorkerThreshold: 1, ScanBatchLines: 13, ParseBatchLines: 5})
	if err != nil {
		t.Fatal(err)
	}
	defer bg.Close()
	settle(t, bg)

	if sync.TotalLines() != bg.TotalLines() {
		t.Fatalf("lines: sync %d, worker %d", sync.TotalLines(), bg.TotalLines())
	}
	for i := 0; i < sync.TotalLines(); i++ {
		sts, sok := sync.Timestamp(i)
		bts, bok := bg.Timestamp(i)
		if sts != bts || sok != bok {
			t.Errorf("timestamp[%d]: sync %d,%v worker %d,%v", i, sts, sok, bts, bok)
		}
		if sync.Level(i) != bg.Level(i) {
			t.Errorf("level[%d]: sync %v worker %v", i, sync.Level(i), bg.Level(i))
		}
		if sync.EntryStart(i) != bg.EntryStart(i) {
			t.Errorf("entryStart[%d] differs", i)
		}
	}
	if sync.LevelCounts() != bg.LevelCounts() {
		t.Errorf("counts: sync %+v worker %+v", sync.LevelCounts(), bg.LevelCounts())
	}
}

func TestGrowthReindexesSuffixOnly(t *testing.T) {
	path := writeLog(t, sampleLog)
	e, err := Open(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	appendLog(t, path, "2024-03-01T10:00:40 ERROR late failure\n  late detail\n")
	e.Tick()
	settle(t, e)

	if e.TotalLines() != 7 {
		t.Fatalf("lines after growth = %d, want 7", e.TotalLines())
	}
	if line, _ := e.Line(5); line != "2024-03-01T10:00:40 ERROR late failure" {
		t.Errorf("appended line = %q", line)
	}
	if got := e.LevelCounts().Error; got != 2 {
		t.Errorf("error count after growth = %d, want 2", got)
	}
	ts5, _ := e.Timestamp(5)
	ts6, ok := e.Timestamp(6)
	if !ok || ts6 != ts5 {
		t.Errorf("appended continuation timestamp = %d, want %d", ts6, ts5)
	}
}

func TestSearchLiteralAndNav(t *testing.T) {
	e, err := Open(writeLog(t, sampleLog), Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if err := e.StartSearch("request", true); err != nil {
		t.Fatal(err)
	}
	settle(t, e)

	s := e.Search()
	if s == nil {
		t.Fatal("no search state")
	}
	if want := []int{1, 3}; !reflect.DeepEqual(s.Matches(), want) {
		t.Errorf("matches = %v, want %v", s.Matches(), want)
	}

	if line, _ := s.Next(); line != 1 {
		t.Errorf("first Next = %d, want 1", line)
	}
	if line, _ := s.Next(); line != 3 {
		t.Errorf("second Next = %d, want 3", line)
	}
	if line, _ := s.Next(); line != 1 {
		t.Errorf("wrapped Next = %d, want 1", line)
	}
}

func TestSearchInvalidRegexKeepsState(t *testing.T) {
	e, err := Open(writeLog(t, sampleLog), Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if err := e.StartSearch("request", true); err != nil {
		t.Fatal(err)
	}
	settle(t, e)

	if err := e.StartSearch("[bad", false); err == nil {
		t.Fatal("invalid regex should error")
	}
	if e.Search() == nil || e.Search().Pattern != "request" {
		t.Error("failed search start must leave the previous search untouched")
	}
}

func TestSearchSupersession(t *testing.T) {
	var content strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&content, "alpha %d\nbeta %d\n", i, i)
	}
	e, err := Open(writeLog(t, content.String()), Options{
		WorkerThreshold: 1,
		MatchBatchLines: 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	settle(t, e)

	if err := e.StartSearch("alpha", true); err != nil {
		t.Fatal(err)
	}
	// Let a few alpha batches go out, then supersede mid-flight.
	for i := 0; i < 4; i++ {
		e.Tick()
		time.Sleep(time.Millisecond)
	}
	if err := e.StartSearch("beta", true); err != nil {
		t.Fatal(err)
	}
	settle(t, e)

	s := e.Search()
	if s.MatchCount() != 200 {
		t.Fatalf("match count = %d, want 200", s.MatchCount())
	}
	for _, m := range s.Matches() {
		if m%2 != 1 {
			t.Fatalf("match %d is an alpha line; stale results leaked in", m)
		}
	}
}

func TestClearSearch(t *testing.T) {
	e, err := Open(writeLog(t, sampleLog), Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if err := e.StartSearch("request", true); err != nil {
		t.Fatal(err)
	}
	e.ClearSearch()
	if e.Search() != nil || e.Searching() {
		t.Error("cleared search still present")
	}

	// Empty pattern also clears.
	if err := e.StartSearch("request", true); err != nil {
		t.Fatal(err)
	}
	if err := e.StartSearch("", true); err != nil {
		t.Fatal(err)
	}
	if e.Search() != nil {
		t.Error("empty pattern did not clear the search")
	}
}

func TestFilterVisibility(t *testing.T) {
	e, err := Open(writeLog(t, sampleLog), Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if err := e.StartFilter("info"); err != nil {
		t.Fatal(err)
	}
	settle(t, e)

	if e.VisibleCount() != 2 {
		t.Fatalf("visible = %d, want 2", e.VisibleCount())
	}
	if e.ActualLine(1) != 4 {
		t.Errorf("ActualLine(1) = %d, want 4", e.ActualLine(1))
	}
	info, ok := e.VisibleLine(1)
	if !ok || info.Original != 4 || info.Level != logformat.LevelInfo {
		t.Errorf("VisibleLine(1) = %+v, %v", info, ok)
	}
	if _, ok := e.VisibleLine(2); ok {
		t.Error("visible index past filter reported a line")
	}

	e.ClearFilter()
	if e.VisibleCount() != 5 {
		t.Errorf("visible after clear = %d, want 5", e.VisibleCount())
	}
}

func TestFilterRestartYieldsOnlyNewMatches(t *testing.T) {
	var content strings.Builder
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&content, "one %d\ntwo %d\n", i, i)
	}
	e, err := Open(writeLog(t, content.String()), Options{
		WorkerThreshold: 1,
		MatchBatchLines: 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	settle(t, e)

	if err := e.StartFilter("one"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		e.Tick()
		time.Sleep(time.Millisecond)
	}
	if err := e.StartFilter("two"); err != nil {
		t.Fatal(err)
	}
	settle(t, e)

	f := e.Filter()
	if f.MatchCount() != 300 {
		t.Fatalf("filter count = %d, want 300", f.MatchCount())
	}
	for _, m := range f.Matches() {
		if m%2 != 1 {
			t.Fatalf("match %d is from the superseded filter", m)
		}
	}
}

func TestJumpToTime(t *testing.T) {
	e, err := Open(writeLog(t, sampleLog), Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	tests := []struct {
		name  string
		input string
		from  int
		want  int
	}{
		{"absolute clock", "10:00:10", 0, 1},
		{"absolute clock between", "10:00:15", 0, 3},
		{"absolute stamp", "2024-03-01 10:00:20", 0, 3},
		{"relative forward", "+15s", 0, 3},
		{"relative back", "-10s", 3, 1},
		{"past end clamps to last", "11:00:00", 0, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.JumpToTime(tt.input, tt.from)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("JumpToTime(%q, %d) = %d, want %d", tt.input, tt.from, got, tt.want)
			}
		})
	}
}

func TestJumpToTimeErrors(t *testing.T) {
	e, err := Open(writeLog(t, sampleLog), Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	for _, input := range []string{"not a time", "+5x", "-", "+"} {
		if _, err := e.JumpToTime(input, 0); err == nil {
			t.Errorf("JumpToTime(%q) should fail", input)
		}
	}

	plain, err := Open(writeLog(t, "no timestamps here\nat all\n"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer plain.Close()
	if _, err := plain.JumpToTime("10:00:00", 0); err == nil {
		t.Error("JumpToTime without a detected format should fail")
	}
}

func TestFollowToggle(t *testing.T) {
	e, err := Open(writeLog(t, sampleLog), Options{Follow: true})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if !e.Follow() {
		t.Error("follow option not honored")
	}
	e.SetFollow(false)
	if e.Follow() {
		t.Error("SetFollow(false) ignored")
	}
}

func TestCloseAfterWork(t *testing.T) {
	var content strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&content, "line %d\n", i)
	}
	e, err := Open(writeLog(t, content.String()), Options{WorkerThreshold: 1, ScanBatchLines: 5})
	if err != nil {
		t.Fatal(err)
	}
	// Close with a request possibly in flight must not deadlock.
	e.Tick()
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
}
