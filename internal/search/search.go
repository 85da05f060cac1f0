// Package search holds the incremental match accumulators for search and
// filter. Both operate over line indices and can be stepped synchronously in
// bounded batches or fed results from the background worker.
package search

import (
	"fmt"
	"regexp"
)

// State is one search: a compiled pattern, the ascending match list, the
// current-match cursor, and progress counters.
type State struct {
	Pattern string

	re      *regexp.Regexp
	matches []int
	current int // index into matches, -1 for none

	cursor    int
	total     int
	searching bool
}

// NewLiteral compiles a case-insensitive escaped-literal search. An empty
// pattern yields a nil state.
func NewLiteral(pattern string) (*State, error) {
	if pattern == "" {
		return nil, nil
	}
	return compile(pattern, "(?i)"+regexp.QuoteMeta(pattern))
}

// NewRegex compiles a user-supplied regex search. A bad pattern returns an
// error without touching any existing state.
func NewRegex(pattern string) (*State, error) {
	if pattern == "" {
		return nil, nil
	}
	return compile(pattern, pattern)
}

func compile(display, expr string) (*State, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", display, err)
	}
	return &State{Pattern: display, re: re, current: -1}, nil
}

// Regexp exposes the compiled pattern for worker submission.
func (s *State) Regexp() *regexp.Regexp {
	return s.re
}

// Start resets progress against a fixed total captured at search start.
func (s *State) Start(total int) {
	s.matches = s.matches[:0]
	s.current = -1
	s.cursor = 0
	s.total = total
	s.searching = total > 0
}

// Active reports whether the search still has lines to examine.
func (s *State) Active() bool {
	return s.searching
}

// Cursor returns the next line to examine.
func (s *State) Cursor() int {
	return s.cursor
}

// Progress returns completion in [0, 1].
func (s *State) Progress() float64 {
	if s.total == 0 {
		return 1
	}
	return float64(s.cursor) / float64(s.total)
}

// StepSync examines up to batchSize lines on the calling goroutine. Reports
// whether the search is still running.
func (s *State) StepSync(batchSize int, getLine func(int) (string, bool)) bool {
	if !s.searching {
		return false
	}
	end := s.cursor + batchSize
	if end > s.total {
		end = s.total
	}
	for i := s.cursor; i < end; i++ {
		if line, ok := getLine(i); ok && s.re.MatchString(line) {
			s.matches = append(s.matches, i)
		}
	}
	s.cursor = end
	if end >= s.total {
		s.searching = false
	}
	return s.searching
}

// ApplyBatch merges a worker batch: matches are already ascending and start
// at the previous cursor.
func (s *State) ApplyBatch(matches []int, cursor int, done bool) {
	s.matches = append(s.matches, matches...)
	s.cursor = cursor
	if done {
		s.searching = false
	}
}

// Matches returns the ascending match-line list.
func (s *State) Matches() []int {
	return s.matches
}

// MatchCount returns the number of matches found so far.
func (s *State) MatchCount() int {
	return len(s.matches)
}

// CurrentLine returns the line of the current match.
func (s *State) CurrentLine() (int, bool) {
	if s.current < 0 || s.current >= len(s.matches) {
		return 0, false
	}
	return s.matches[s.current], true
}

// Next advances to the next match, wrapping circularly.
func (s *State) Next() (int, bool) {
	if len(s.matches) == 0 {
		return 0, false
	}
	if s.current < 0 {
		s.current = 0
	} else {
		s.current = (s.current + 1) % len(s.matches)
	}
	return s.matches[s.current], true
}

// Prev steps back to the previous match, wrapping circularly.
func (s *State) Prev() (int, bool) {
	if len(s.matches) == 0 {
		return 0, false
	}
	if s.current <= 0 {
		s.current = len(s.matches) - 1
	} else {
		s.current--
	}
	return s.matches[s.current], true
}

// JumpToNearest selects the first match at or after fromLine, defaulting to
// the first match when none qualify.
func (s *State) JumpToNearest(fromLine int) (int, bool) {
	if len(s.matches) == 0 {
		return 0, false
	}
	pos := 0
	for i, m := range s.matches {
		if m >= fromLine {
			pos = i
			break
		}
	}
	s.current = pos
	return s.matches[pos], true
}
