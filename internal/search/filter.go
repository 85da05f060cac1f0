package search

import (
	"fmt"
	"regexp"
	"strings"
)

// Condition is one filter term. A negated condition passes when its regex
// does not match.
type Condition struct {
	Regex   *regexp.Regexp
	Negated bool
}

// Pass evaluates the condition against a line.
func (c Condition) Pass(line string) bool {
	return c.Regex.MatchString(line) != c.Negated
}

// ParseConditions turns a filter expression into an ordered condition list:
// space-separated terms, `!`-prefixed negation, implicit AND, case-insensitive
// substring matching. An empty expression yields no conditions, which means
// "no filter" rather than "filter matched zero lines".
func ParseConditions(expr string) ([]Condition, error) {
	var conds []Condition
	for _, term := range strings.Fields(expr) {
		negated := false
		if strings.HasPrefix(term, "!") {
			negated = true
			term = term[1:]
			if term == "" {
				continue
			}
		}
		re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(term))
		if err != nil {
			return nil, fmt.Errorf("invalid filter term %q: %w", term, err)
		}
		conds = append(conds, Condition{Regex: re, Negated: negated})
	}
	return conds, nil
}

// Filter accumulates the ascending subsequence of original line indices
// satisfying every condition.
type Filter struct {
	Expr       string
	Conditions []Condition

	matches []int

	cursor    int
	total     int
	filtering bool
}

// NewFilter builds a filter from an expression. An empty expression returns a
// nil filter.
func NewFilter(expr string) (*Filter, error) {
	conds, err := ParseConditions(expr)
	if err != nil {
		return nil, err
	}
	if len(conds) == 0 {
		return nil, nil
	}
	return &Filter{Expr: expr, Conditions: conds}, nil
}

// Start resets progress against a fixed total captured at filter start.
func (f *Filter) Start(total int) {
	f.matches = f.matches[:0]
	f.cursor = 0
	f.total = total
	f.filtering = total > 0
}

// Active reports whether the filter still has lines to examine.
func (f *Filter) Active() bool {
	return f.filtering
}

// Cursor returns the next line to examine.
func (f *Filter) Cursor() int {
	return f.cursor
}

// Progress returns completion in [0, 1].
func (f *Filter) Progress() float64 {
	if f.total == 0 {
		return 1
	}
	return float64(f.cursor) / float64(f.total)
}

// StepSync examines up to batchSize lines on the calling goroutine. A line
// passes iff every condition passes.
func (f *Filter) StepSync(batchSize int, getLine func(int) (string, bool)) bool {
	if !f.filtering {
		return false
	}
	end := f.cursor + batchSize
	if end > f.total {
		end = f.total
	}
	for i := f.cursor; i < end; i++ {
		line, ok := getLine(i)
		if !ok {
			continue
		}
		pass := true
		for _, c := range f.Conditions {
			if !c.Pass(line) {
				pass = false
				break
			}
		}
		if pass {
			f.matches = append(f.matches, i)
		}
	}
	f.cursor = end
	if end >= f.total {
		f.filtering = false
	}
	return f.filtering
}

// ApplyBatch merges a worker batch.
func (f *Filter) ApplyBatch(matches []int, cursor int, done bool) {
	f.matches = append(f.matches, matches...)
	f.cursor = cursor
	if done {
		f.filtering = false
	}
}

// Matches returns the ascending filtered line indices.
func (f *Filter) Matches() []int {
	return f.matches
}

// MatchCount returns the filtered line count so far.
func (f *Filter) MatchCount() int {
	return len(f.matches)
}
