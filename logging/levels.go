package logging

import (
	"fmt"
	"strings"
)

// LogLevel is a severity rank. Lower values are more severe.
type LogLevel int

const (
	ERROR LogLevel = iota
	WARN
	INFO
	DEBUG
	TRACE
)

var levelNames = [...]string{"error", "warn", "info", "debug", "trace"}

// Levels lists every level from most to least severe.
func Levels() []LogLevel {
	return []LogLevel{ERROR, WARN, INFO, DEBUG, TRACE}
}

func (l LogLevel) String() string {
	if l < ERROR || l > TRACE {
		return "unknown"
	}
	return levelNames[l]
}

func (l LogLevel) Valid() bool {
	return l >= ERROR && l <= TRACE
}

// ShouldLog reports whether an entry at level l passes a configured floor of min.
func (l LogLevel) ShouldLog(min LogLevel) bool {
	return l <= min
}

// LookupLevel parses a level name. "warning" is accepted as an alias of warn.
func LookupLevel(s string) (LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return ERROR, true
	case "warn", "warning":
		return WARN, true
	case "info":
		return INFO, true
	case "debug":
		return DEBUG, true
	case "trace":
		return TRACE, true
	}
	return DEBUG, false
}

func (l LogLevel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid log level %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *LogLevel) UnmarshalText(text []byte) error {
	level, ok := LookupLevel(string(text))
	if !ok {
		return fmt.Errorf("unknown log level %q", text)
	}
	*l = level
	return nil
}
