package search

import (
	"reflect"
	"testing"
)

func linesGetter(lines []string) func(int) (string, bool) {
	return func(i int) (string, bool) {
		if i < 0 || i >= len(lines) {
			return "", false
		}
		return lines[i], true
	}
}

func runToCompletion(t *testing.T, s *State, lines []string, batch int) {
	t.Helper()
	s.Start(len(lines))
	for s.Active() {
		s.StepSync(batch, linesGetter(lines))
	}
}

func TestNewLiteral(t *testing.T) {
	lines := []string{"Alpha one", "beta two", "ALPHA three", "a.b literal"}

	s, err := NewLiteral("alpha")
	if err != nil {
		t.Fatal(err)
	}
	runToCompletion(t, s, lines, 2)
	if want := []int{0, 2}; !reflect.DeepEqual(s.Matches(), want) {
		t.Errorf("case-insensitive matches = %v, want %v", s.Matches(), want)
	}

	// Metacharacters are escaped: "a.b" must not match "axb".
	s, err = NewLiteral("a.b")
	if err != nil {
		t.Fatal(err)
	}
	runToCompletion(t, s, []string{"axb no", "a.b yes"}, 10)
	if want := []int{1}; !reflect.DeepEqual(s.Matches(), want) {
		t.Errorf("escaped literal matches = %v, want %v", s.Matches(), want)
	}
}

func TestNewLiteralEmpty(t *testing.T) {
	s, err := NewLiteral("")
	if err != nil || s != nil {
		t.Errorf("empty pattern = %v, %v; want nil, nil", s, err)
	}
}

func TestNewRegex(t *testing.T) {
	s, err := NewRegex(`err(or)?`)
	if err != nil {
		t.Fatal(err)
	}
	runToCompletion(t, s, []string{"error here", "no match", "err short"}, 10)
	if want := []int{0, 2}; !reflect.DeepEqual(s.Matches(), want) {
		t.Errorf("regex matches = %v, want %v", s.Matches(), want)
	}
}

func TestNewRegexInvalid(t *testing.T) {
	if _, err := NewRegex("[unclosed"); err == nil {
		t.Error("invalid regex should return an error")
	}
}

func TestStepSyncBatchIndependence(t *testing.T) {
	lines := []string{"x", "match", "x", "match", "match", "x", "x", "match"}

	var results [][]int
	for _, batch := range []int{1, 3, 100} {
		s, err := NewLiteral("match")
		if err != nil {
			t.Fatal(err)
		}
		runToCompletion(t, s, lines, batch)
		results = append(results, append([]int(nil), s.Matches()...))
	}
	for i := 1; i < len(results); i++ {
		if !reflect.DeepEqual(results[i], results[0]) {
			t.Errorf("batch sizes disagree: %v vs %v", results[i], results[0])
		}
	}
}

func TestNextPrevCircular(t *testing.T) {
	lines := []string{"m", "x", "m", "x", "m"}
	s, err := NewLiteral("m")
	if err != nil {
		t.Fatal(err)
	}
	runToCompletion(t, s, lines, 10)

	// First Next lands on the first match.
	seq := []int{0, 2, 4, 0} // wraps
	for _, want := range seq {
		got, ok := s.Next()
		if !ok || got != want {
			t.Fatalf("Next = %d, %v; want %d, true", got, ok, want)
		}
	}

	// Prev wraps backwards from the first match.
	got, _ := s.Prev()
	if got != 4 {
		t.Errorf("Prev from first = %d, want 4", got)
	}
	got, _ = s.Prev()
	if got != 2 {
		t.Errorf("Prev = %d, want 2", got)
	}
}

func TestNextPrevNoMatches(t *testing.T) {
	s, err := NewLiteral("nope")
	if err != nil {
		t.Fatal(err)
	}
	runToCompletion(t, s, []string{"a", "b"}, 10)
	if _, ok := s.Next(); ok {
		t.Error("Next with zero matches should report none")
	}
	if _, ok := s.Prev(); ok {
		t.Error("Prev with zero matches should report none")
	}
}

func TestJumpToNearest(t *testing.T) {
	lines := []string{"m", "x", "m", "x", "m"}
	s, err := NewLiteral("m")
	if err != nil {
		t.Fatal(err)
	}
	runToCompletion(t, s, lines, 10)

	tests := []struct {
		from int
		want int
	}{
		{0, 0},
		{1, 2},
		{3, 4},
		{99, 0}, // nothing at or after: default to first
	}
	for _, tt := range tests {
		got, ok := s.JumpToNearest(tt.from)
		if !ok || got != tt.want {
			t.Errorf("JumpToNearest(%d) = %d, %v; want %d, true", tt.from, got, ok, tt.want)
		}
	}
}

func TestApplyBatch(t *testing.T) {
	s, err := NewLiteral("m")
	if err != nil {
		t.Fatal(err)
	}
	s.Start(10)
	s.ApplyBatch([]int{1, 4}, 5, false)
	if s.MatchCount() != 2 || !s.Active() || s.Cursor() != 5 {
		t.Errorf("after first batch: count=%d active=%v cursor=%d", s.MatchCount(), s.Active(), s.Cursor())
	}
	s.ApplyBatch([]int{7}, 10, true)
	if s.Active() {
		t.Error("search should finish on done batch")
	}
	if want := []int{1, 4, 7}; !reflect.DeepEqual(s.Matches(), want) {
		t.Errorf("matches = %v, want %v", s.Matches(), want)
	}
}

func TestParseConditions(t *testing.T) {
	conds, err := ParseConditions("error !timeout")
	if err != nil {
		t.Fatal(err)
	}
	if len(conds) != 2 {
		t.Fatalf("conditions = %d, want 2", len(conds))
	}
	if conds[0].Negated || !conds[1].Negated {
		t.Errorf("negation flags = %v, %v", conds[0].Negated, conds[1].Negated)
	}

	tests := []struct {
		line string
		want bool
	}{
		{"ERROR something", true},
		{"ERROR timeout waiting", false},
		{"all fine", false},
		{"timeout only", false},
	}
	for _, tt := range tests {
		pass := true
		for _, c := range conds {
			if !c.Pass(tt.line) {
				pass = false
				break
			}
		}
		if pass != tt.want {
			t.Errorf("%q pass = %v, want %v", tt.line, pass, tt.want)
		}
	}
}

func TestParseConditionsEdgeCases(t *testing.T) {
	if conds, _ := ParseConditions(""); len(conds) != 0 {
		t.Errorf("empty expression parsed %d conditions", len(conds))
	}
	// A bare "!" has nothing to negate and is skipped.
	if conds, _ := ParseConditions("! x"); len(conds) != 1 {
		t.Errorf("bare negation parsed %d conditions, want 1", len(conds))
	}
}

func TestNewFilterEmpty(t *testing.T) {
	f, err := NewFilter("   ")
	if err != nil || f != nil {
		t.Errorf("blank filter = %v, %v; want nil, nil", f, err)
	}
}

func TestFilterStepSync(t *testing.T) {
	lines := []string{
		"ERROR timeout on request",
		"ERROR disk failure",
		"INFO all good",
		"error retry worked",
	}
	f, err := NewFilter("error !timeout")
	if err != nil {
		t.Fatal(err)
	}
	f.Start(len(lines))
	for f.Active() {
		f.StepSync(1, linesGetter(lines))
	}
	if want := []int{1, 3}; !reflect.DeepEqual(f.Matches(), want) {
		t.Errorf("filter matches = %v, want %v", f.Matches(), want)
	}
	if f.MatchCount() != 2 {
		t.Errorf("MatchCount = %d, want 2", f.MatchCount())
	}
}
