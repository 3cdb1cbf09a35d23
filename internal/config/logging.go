package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// LevelTrace sits below [slog.LevelDebug] and gates wire-level payload
// logging in the Gemini client (full request and response JSON). The
// value -8 matches the convention other slog-extending Go projects use
// for a Trace level.
const LevelTrace = slog.Level(-8)

// logLevels maps config file values to slog levels. The empty string is
// accepted so an unset log_level key means Info.
var logLevels = map[string]slog.Level{
	"":        slog.LevelInfo,
	"trace":   LevelTrace,
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// ParseLogLevel converts the config file's log_level string to an
// [slog.Level]. Matching is case-insensitive and ignores surrounding
// whitespace.
func ParseLogLevel(s string) (slog.Level, error) {
	level, ok := logLevels[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (valid: trace, debug, info, warn, error)", s)
	}
	return level, nil
}

// ReplaceLogLevelNames labels [LevelTrace] records as "TRACE". slog has
// no name for custom levels and would print "DEBUG-4" otherwise. Install
// it as the handler's ReplaceAttr.
func ReplaceLogLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if level, ok := a.Value.Any().(slog.Level); ok && level == LevelTrace {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}
