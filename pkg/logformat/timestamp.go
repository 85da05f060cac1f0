package logformat

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimestampKind identifies one of the recognized timestamp shapes.
type TimestampKind int

const (
	KindISO8601 TimestampKind = iota
	KindISO8601Space
	KindSyslog
	KindApache
	KindUnixEpoch
	KindSlashDate
)

// TimestampFormat is the single pattern chosen for a session. Immutable once
// detected; a nil format means timestamp features are disabled.
type TimestampFormat struct {
	Regex *regexp.Regexp
	Kind  TimestampKind
}

// Candidate patterns, tried in declaration order. Ties go to the earlier
// entry.
var timestampPatterns = []struct {
	kind    TimestampKind
	pattern string
}{
	{KindISO8601, `\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`},
	{KindISO8601Space, `\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`},
	{KindSyslog, `[A-Z][a-z]{2}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}`},
	{KindApache, `\d{2}/[A-Z][a-z]{2}/\d{4}:\d{2}:\d{2}:\d{2}`},
	{KindUnixEpoch, `\b\d{10}(?:\.\d{1,6})?\b`},
	{KindSlashDate, `\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}`},
}

// DetectTimestampFormat picks the candidate pattern matching the most sample
// lines. Returns nil when nothing matches.
func DetectTimestampFormat(lines []string) *TimestampFormat {
	var best *TimestampFormat
	bestCount := 0

	for _, cand := range timestampPatterns {
		re := regexp.MustCompile(cand.pattern)
		count := 0
		for _, l := range lines {
			if re.MatchString(l) {
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			best = &TimestampFormat{Regex: re, Kind: cand.kind}
		}
	}

	return best
}

// ParseEpochMs extracts this format's timestamp from a line and converts it
// to epoch milliseconds. A malformed match returns ok=false so the caller can
// fall back to the carried timestamp.
func (f *TimestampFormat) ParseEpochMs(line string) (int64, bool) {
	s := f.Regex.FindString(line)
	if s == "" {
		return 0, false
	}

	switch f.Kind {
	case KindISO8601:
		t, err := time.Parse("2006-01-02T15:04:05", s)
		if err != nil {
			return 0, false
		}
		return t.UnixMilli(), true
	case KindISO8601Space:
		t, err := time.Parse("2006-01-02 15:04:05", s)
		if err != nil {
			return 0, false
		}
		return t.UnixMilli(), true
	case KindSyslog:
		// Syslog lines carry no year; inject the current one.
		normalized := strings.Join(strings.Fields(s), " ")
		year := time.Now().UTC().Year()
		t, err := time.Parse("2006 Jan 2 15:04:05", strconv.Itoa(year)+" "+normalized)
		if err != nil {
			return 0, false
		}
		return t.UnixMilli(), true
	case KindApache:
		t, err := time.Parse("02/Jan/2006:15:04:05", s)
		if err != nil {
			return 0, false
		}
		return t.UnixMilli(), true
	case KindUnixEpoch:
		sec, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return int64(sec * 1000.0), true
	case KindSlashDate:
		t, err := time.Parse("2006/01/02 15:04:05", s)
		if err != nil {
			return 0, false
		}
		return t.UnixMilli(), true
	}
	return 0, false
}

// FormatEpochMs renders an epoch-millisecond timestamp for display.
func FormatEpochMs(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("15:04:05")
}
