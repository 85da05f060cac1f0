package logformat

import (
	"regexp"
	"strings"
)

// Level is the severity detected on a log line.
type Level int

const (
	LevelUnknown Level = iota
	LevelTrace
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the short display name for a level.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "?"
	}
}

// levelPrefixBytes bounds how far into a line the classifier looks.
const levelPrefixBytes = 100

// Whole-word boundaries are mandatory: "INFORMATION" must not classify as
// Info. FATAL and CRITICAL collapse into Error.
var levelRegex = regexp.MustCompile(`(?i)\b(ERROR|FATAL|CRITICAL|WARN|WARNING|INFO|DEBUG|TRACE)\b`)

// DetectLevel classifies a line's severity from its leading bytes.
func DetectLevel(line []byte) Level {
	if len(line) > levelPrefixBytes {
		line = line[:levelPrefixBytes]
	}
	m := levelRegex.Find(line)
	if m == nil {
		return LevelUnknown
	}
	switch strings.ToUpper(string(m)) {
	case "ERROR", "FATAL", "CRITICAL":
		return LevelError
	case "WARN", "WARNING":
		return LevelWarn
	case "INFO":
		return LevelInfo
	case "DEBUG":
		return LevelDebug
	case "TRACE":
		return LevelTrace
	}
	return LevelUnknown
}
