package logging

import (
	"log/slog"
	"strings"
)

var levelAliases = map[string]slog.Level{
	"TRACE":   slog.LevelDebug,
	"WARNING": slog.LevelWarn,
	"FATAL":   slog.LevelError,
}

// ParseLevel reads a level name the way slog prints it, offsets such as
// "WARN+2" included, and also accepts TRACE, WARNING and FATAL.
func ParseLevel(name string) (slog.Level, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if l, ok := levelAliases[name]; ok {
		return l, true
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, false
	}
	return l, true
}

// LevelOrInfo is ParseLevel for optional config values. Missing and
// unreadable names give INFO.
func LevelOrInfo(name *string) slog.Level {
	if name == nil {
		return slog.LevelInfo
	}
	l, _ := ParseLevel(*name)
	return l
}
